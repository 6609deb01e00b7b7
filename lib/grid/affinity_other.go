//go:build !linux

package grid

import "runtime"

// coresAvailable falls back to the logical CPU count on platforms without
// sched_getaffinity; only used for a sanity-check log line, never for
// correctness.
func coresAvailable() (int, error) {
	return runtime.NumCPU(), nil
}
