/*Package thread holds the one multi-threading knob the communication engine
exposes: how many OS threads Go's scheduler may spread goroutines across on
this rank.
*/
package thread

import (
	"runtime"

	"github.com/mansfield-lab/mdcomm/lib/errs"
)

// SetThreads sets GOMAXPROCS for this rank. Passing -1 uses every core the
// process can see; any other n greater than the core count is rejected
// rather than silently clamped, since oversubscribing a rank usually means a
// config file was copied from a bigger node.
func SetThreads(n int) error {
	cores := runtime.NumCPU()
	if n == -1 {
		runtime.GOMAXPROCS(cores)
		return nil
	}
	if n <= 0 {
		return errs.NewLocal(errs.Configuration, "threads must be -1 or a positive count, got %d", n)
	}
	if n > cores {
		return errs.NewLocal(errs.Configuration,
			"%d threads requested, but this rank only has %d cores; set threads=-1 to use every core", n, cores)
	}
	runtime.GOMAXPROCS(n)
	return nil
}
