// Package conv provides checked integer conversions for values read from
// container manifests.
//
// Offsets, lengths and counts in a manifest come from the blob itself and
// must be bounds checked before they size a buffer or address a backend
// read. For conversions that are provably safe (loop indices, bounded
// counters), use direct type casts instead.
package conv
