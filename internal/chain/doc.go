// Package chain reads contract values over Ethereum JSON-RPC.
//
// A ContractReader calls a view function that takes no arguments and returns
// a single integer, and reports a change on every new block. Endpoints that
// support notifications are followed with eth_subscribe("newHeads"); plain
// HTTP endpoints are polled with eth_blockNumber.
package chain
