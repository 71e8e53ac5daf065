// Package poller implements the contract value poller.
//
// A Subscription bridges a slow or unreliable on-chain Source into a sequence
// of FetchState transitions:
//   - Idle -> Loading on Subscribe
//   - Loading -> Ready | Failed on the first read
//   - Ready -> Ready on every change notification (watch mode)
//   - any -> Idle on Release, which is terminal for the handle
//
// Failures are never retried; the owner decides whether to resubscribe.
// Poller runs one subscription per configured watch and forwards transitions
// to a StateHandler.
package poller
