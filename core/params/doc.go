// Package params validates fleet, activity and price data and exposes it as
// an immutable Snapshot. Snapshots are passed explicitly to the model builder
// so concurrent sweep points never share mutable state.
package params
