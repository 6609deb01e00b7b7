/*Package errs classifies the ways the communication engine can fail and
reports the ones that reach the top of the call stack.

The engine itself never calls os.Exit or panics on a routine failure -
component functions return a *Error like any other Go error. Only the
outermost driver (cmd/mdcommd) decides, based on Kind and AllRanks, whether
to abort the whole run or just this rank.
*/
package errs

import (
	"fmt"
	"log"
	"os"
	"runtime/debug"
)

// Kind classifies a communication-engine failure.
type Kind int

const (
	// Configuration covers a bad config token, an unknown group, or a
	// negative cutoff - things a user can fix by editing input.
	Configuration Kind = iota
	// Topology covers an unsatisfiable grid factorization, a 2D
	// constraint violation, or a NUMA precondition failure with no
	// fallback available.
	Topology
	// Transport covers a messaging failure. The model assumes reliable
	// delivery, so any transport error is fatal.
	Transport
	// Capacity covers a buffer growth failure. There is no backpressure
	// in the protocol, so this is fatal too.
	Capacity
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration error"
	case Topology:
		return "topology error"
	case Transport:
		return "transport error"
	case Capacity:
		return "capacity error"
	default:
		return "unknown error"
	}
}

// Error is a typed, inspectable error returned by engine components.
type Error struct {
	Kind Kind
	// AllRanks is true if every rank can detect this failure identically
	// (e.g. a bad grid factorization), meaning the caller should trigger
	// an all-abort rather than a one-rank abort.
	AllRanks bool
	msg      string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// New creates a Kind-tagged error detected identically by every rank.
func New(kind Kind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, AllRanks: true, msg: fmt.Sprintf(format, a...)}
}

// NewLocal creates a Kind-tagged error detected only on this rank (e.g. a
// message this rank alone failed to receive).
func NewLocal(kind Kind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, AllRanks: false, msg: fmt.Sprintf(format, a...)}
}

// External reports an error to stderr and kills the process. It should be
// used when an error is something a user could reasonably be expected to
// fix through changes in configuration, data, or environment.
func External(format string, a ...interface{}) {
	log.Printf("mdcomm exited early with the following error:\n"+format, a...)
	os.Exit(1)
}

// Internal reports an error to stderr along with a stack trace and kills
// the process. It should be used when the error requires a code dive to
// fix rather than a configuration change.
func Internal(format string, a ...interface{}) {
	log.Println("mdcomm exited early with the following error:")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n\n")
	debug.PrintStack()
	os.Exit(1)
}

// Abort reports err through External or Internal depending on its Kind and
// terminates the process. Configuration errors are always considered
// user-fixable; the rest are code-dive territory.
func Abort(rank int, err error) {
	e, ok := err.(*Error)
	if !ok {
		Internal("rank %d: %v", rank, err)
		return
	}

	scope := "one rank"
	if e.AllRanks {
		scope = "all ranks"
	}

	if e.Kind == Configuration {
		External("rank %d (%s abort): %v", rank, scope, e)
	} else {
		Internal("rank %d (%s abort): %v", rank, scope, e)
	}
}
