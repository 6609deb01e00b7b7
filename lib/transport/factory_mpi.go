//go:build mpi

package transport

// New returns the production, MPI-backed Transport. Every rank in the job
// must call it.
func New() (Transport, error) {
	return NewMPI()
}
