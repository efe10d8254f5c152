// Package router maps task identifiers to the connections that own them
// and delivers typed lifecycle events (start, progress, complete, error)
// through the connection registry.
//
// The Bridge is the one entry point the synthesis worker pool is allowed
// to call: a bounded, timeout-guarded handoff into the routing layer.
package router
