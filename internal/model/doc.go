// Package model defines the data types shared across poolwatch.
//
// Conventions:
//   - Raw on-chain quantities stay arbitrary precision (*big.Int) until a
//     metric is derived from them.
//   - Derived values are float64 and only used for display.
//   - Ratios are percentages in [0, 100].
//   - IDs: uuid.UUID for subscriptions and stored readings.
package model
