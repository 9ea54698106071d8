// Package cache provides an LRU cache for immutable blob blocks.
//
// Block sizes are accounted against an optional resource.Controller so the
// cache shares a memory limit with other readers.
package cache
