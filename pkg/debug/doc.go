// Package debug provides real-time safety assertions for the process path.
//
// The assertions are only active when building with the 'debug' build tag:
//
//	go test -tags debug ./...
//
// A Sentinel panics when Process is re-entered or runs concurrently with a
// lifecycle transition, and counts heap allocations made while a block is
// being processed. Without the tag every method is a no-op with zero
// overhead.
package debug
