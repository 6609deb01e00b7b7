package comm

import (
	"github.com/mansfield-lab/mdcomm/lib/domain"
	"github.com/mansfield-lab/mdcomm/lib/errs"
	"github.com/mansfield-lab/mdcomm/lib/particle"
	"github.com/mansfield-lab/mdcomm/lib/transport"
)

// Engine drives the four communication phases (Borders, forward, reverse,
// Exchange) for one worker, holding the state a Comm object owns in the
// grounding source: the swap schedule, the owned/ghost boundary into the
// particle store, and a pair of reusable wire buffers.
type Engine struct {
	t     transport.Transport
	store particle.Store
	box   domain.Box

	procgrid  [3]int
	procneigh [3][2]int
	myloc     [3]int

	plan   *Plan
	nlocal int

	ghostVelocity bool

	// firstGroupLen restricts the owned portion of the first two border
	// swaps in each dimension (ineed < 2) to the prefix [0, firstGroupLen)
	// instead of the full owned range, when > 0. Ghosts already gathered
	// by earlier dimensions are still scanned in full.
	firstGroupLen int

	sendBuf *Buffer
	recvBuf *Buffer
}

// NewEngine builds an Engine from a rank's placement, box geometry and swap
// configuration. store.Len() at construction time is taken as the initial
// owned-particle count; any particles already present are assumed local, not
// ghosts.
func NewEngine(t transport.Transport, store particle.Store, box domain.Box,
	procgrid, myloc [3]int, procneigh [3][2]int, cfg Config,
	ghostVelocity, compress bool, compressThreshold int) *Engine {

	return &Engine{
		t:             t,
		store:         store,
		box:           box,
		procgrid:      procgrid,
		procneigh:     procneigh,
		myloc:         myloc,
		plan:          Setup(box, procgrid, myloc, procneigh, cfg),
		nlocal:        store.Len(),
		ghostVelocity: ghostVelocity,
		sendBuf:       NewBuffer(compress, compressThreshold),
		recvBuf:       NewBuffer(compress, compressThreshold),
	}
}

// NLocal returns the number of owned particles; ghosts occupy
// [NLocal, store.Len()).
func (e *Engine) NLocal() int { return e.nlocal }

// Plan returns the current swap schedule, primarily for tests.
func (e *Engine) Plan() *Plan { return e.plan }

// Resetup rebuilds the swap schedule, e.g. after the sub-box bounds changed
// following a load rebalance.
func (e *Engine) Resetup(cfg Config) {
	e.plan = Setup(e.box, e.procgrid, e.myloc, e.procneigh, cfg)
}

// SetBorderGroup restricts Borders' first two swaps per dimension to only
// the leading n owned particles, letting a caller that keeps a "first
// group" of atoms sorted to the front of the store skip re-checking the
// rest of its owned particles against the border window every step. n <= 0
// disables the restriction.
func (e *Engine) SetBorderGroup(n int) {
	e.firstGroupLen = n
}

func classifyErr(rank int, err error) error {
	if err == nil {
		return nil
	}
	return errs.NewLocal(errs.Transport, "rank %d: %v", rank, err)
}
