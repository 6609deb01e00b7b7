package grid

import (
	"github.com/mansfield-lab/mdcomm/lib/errs"
	"github.com/mansfield-lab/mdcomm/lib/transport"
)

// Placement is the concrete outcome of mapping a factored process grid onto
// real worker ranks: this worker's coordinate, its six face neighbors, and
// the inverse map from every grid cell to its owning rank.
type Placement struct {
	Me        int
	MyLoc     [3]int
	ProcGrid  [3]int
	ProcNeigh [3][2]int
	Grid2Proc map[[3]int]int
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// rankToCoord decodes a rank into a row-major (ix,iy,iz) coordinate over
// procgrid, the inverse of coordToRank.
func rankToCoord(rank int, procgrid [3]int) [3]int {
	pz := procgrid[2]
	py := procgrid[1]
	iz := rank % pz
	iy := (rank / pz) % py
	ix := rank / (py * pz)
	return [3]int{ix, iy, iz}
}

func coordToRank(c, procgrid [3]int) int {
	return c[0]*(procgrid[1]*procgrid[2]) + c[1]*procgrid[2] + c[2]
}

// PlacePlain builds a Placement by row-major decomposition of the rank
// space onto procgrid. The process-grid topology always wraps (periods=1
// on every axis) regardless of the domain's own periodicity flags, exactly
// as the source's Cartesian communicator does - domain periodicity only
// affects which swaps carry a pbc_flag, not which ranks are neighbors.
func PlacePlain(t transport.Transport, procgrid [3]int) (*Placement, error) {
	p := t.Size()
	if procgrid[0]*procgrid[1]*procgrid[2] != p {
		return nil, errs.New(errs.Topology,
			"process grid %v does not account for all %d workers", procgrid, p)
	}

	me := t.Rank()
	myloc := rankToCoord(me, procgrid)

	var neigh [3][2]int
	for d := 0; d < 3; d++ {
		lo, hi := myloc, myloc
		lo[d] = mod(myloc[d]-1, procgrid[d])
		hi[d] = mod(myloc[d]+1, procgrid[d])
		neigh[d][0] = coordToRank(lo, procgrid)
		neigh[d][1] = coordToRank(hi, procgrid)
	}

	g2p := make(map[[3]int]int, p)
	for ix := 0; ix < procgrid[0]; ix++ {
		for iy := 0; iy < procgrid[1]; iy++ {
			for iz := 0; iz < procgrid[2]; iz++ {
				c := [3]int{ix, iy, iz}
				g2p[c] = coordToRank(c, procgrid)
			}
		}
	}

	return &Placement{Me: me, MyLoc: myloc, ProcGrid: procgrid, ProcNeigh: neigh, Grid2Proc: g2p}, nil
}
