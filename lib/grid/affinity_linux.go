//go:build linux

package grid

import (
	"golang.org/x/sys/unix"
)

// coresAvailable returns the number of CPUs this process may actually run
// on, honoring cgroup/taskset pinning - used to sanity-check a configured
// NUMA ranks-per-domain count against the hardware the job landed on.
func coresAvailable() (int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0, err
	}
	return set.Count(), nil
}
