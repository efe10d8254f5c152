// Package connection implements the connection layer of the gateway.
//
// The Registry:
//   - Admits persistent client connections keyed by client id
//   - Enforces identity uniqueness and a configurable capacity limit
//   - Owns every transport exclusively and exposes send/evict primitives
//
// The Monitor runs a periodic staleness sweep, probing silent
// connections and evicting those past the heartbeat timeout.
package connection
