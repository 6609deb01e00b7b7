/*Package grid factors a worker count into a 3D process grid that minimizes
inter-process sub-box surface area, and places workers onto that grid either
plainly or NUMA-aware.

Grounded on the comm.cpp procs2box/numa_set_procs pair: enumerate every
factorization of P, weight each by the box's cross-sectional areas, and keep
the cheapest one; ties break in ascending (ipx,ipy) enumeration order.
*/
package grid

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mansfield-lab/mdcomm/lib/errs"
)

// Areas holds the three cross-sectional face areas of the simulation box:
// XY, XZ, and YZ. For an orthogonal box these are pairwise edge-length
// products; for a triclinic box they are magnitudes of edge-vector cross
// products.
type Areas struct {
	XY, XZ, YZ float64
}

// Factorize chooses (Px,Py,Pz) with Px*Py*Pz == p that minimizes the total
// inter-process surface area per worker, honoring any non-zero entries in
// pin (0 means "choose this dimension"). dimension must be 2 or 3; when it
// is 2, Pz is forced to 1.
func Factorize(p int, pin [3]int, dimension int, areas Areas) ([3]int, error) {
	if p <= 0 {
		return [3]int{}, errs.New(errs.Topology, "worker count must be positive, got %d", p)
	}
	if dimension != 2 && dimension != 3 {
		return [3]int{}, errs.New(errs.Topology, "dimension must be 2 or 3, got %d", dimension)
	}

	grid := pin

	// All three pinned.
	if grid[0] != 0 && grid[1] != 0 && grid[2] != 0 {
		if grid[0]*grid[1]*grid[2] != p {
			return [3]int{}, badGrid(grid, p)
		}
		return grid, nil
	}

	// Two pinned: the third is forced.
	switch {
	case grid[0] != 0 && grid[1] != 0:
		grid[2] = divExact(p, grid[0]*grid[1])
	case grid[0] != 0 && grid[2] != 0:
		grid[1] = divExact(p, grid[0]*grid[2])
	case grid[1] != 0 && grid[2] != 0:
		grid[0] = divExact(p, grid[1]*grid[2])
	}
	if grid[0] != 0 && grid[1] != 0 && grid[2] != 0 {
		if grid[0]*grid[1]*grid[2] != p {
			return [3]int{}, badGrid(grid, p)
		}
		return grid, nil
	}

	// Enumerate every factorization, keep the cheapest.
	areaVec := mat.NewVecDense(3, []float64{areas.XY, areas.XZ, areas.YZ})
	best := [3]int{}
	bestSurf := 2.0 * (areas.XY + areas.XZ + areas.YZ)
	found := false

	for ipx := 1; ipx <= p; ipx++ {
		if p%ipx != 0 {
			continue
		}
		if pin[0] != 0 && ipx != pin[0] {
			continue
		}
		remX := p / ipx
		for ipy := 1; ipy <= remX; ipy++ {
			if remX%ipy != 0 {
				continue
			}
			if pin[1] != 0 && ipy != pin[1] {
				continue
			}
			ipz := remX / ipy
			if pin[2] != 0 && ipz != pin[2] {
				continue
			}
			if dimension == 2 && ipz != 1 {
				continue
			}

			invVec := mat.NewVecDense(3, []float64{
				1.0 / float64(ipx*ipy),
				1.0 / float64(ipx*ipz),
				1.0 / float64(ipy*ipz),
			})
			surf := mat.Dot(areaVec, invVec)

			if !found || surf < bestSurf {
				found = true
				bestSurf = surf
				best = [3]int{ipx, ipy, ipz}
			}
		}
	}

	if !found {
		return [3]int{}, errs.New(errs.Topology,
			"no factorization of %d workers satisfies the requested pins/dimension", p)
	}
	return best, nil
}

func divExact(total, denom int) int {
	if denom == 0 {
		return 0
	}
	return total / denom
}

func badGrid(grid [3]int, p int) *errs.Error {
	return errs.New(errs.Topology,
		"bad grid: %dx%dx%d != %d workers", grid[0], grid[1], grid[2], p)
}
