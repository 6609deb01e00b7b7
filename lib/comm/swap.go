/*Package comm implements the six-directional spatial-decomposition
communication engine: it plans, per neighbor direction, which particles a
worker must exchange, then drives ghost creation, forward/reverse comm and
particle migration across a Transport using an external Store's pack/unpack
capability.
*/
package comm

import (
	"github.com/mansfield-lab/mdcomm/lib/domain"
)

// big stands in for the source's BIG sentinel: a slab bound wide enough that
// every particle in a legally-sized box falls inside it.
const big = 1e20

// Style selects whether ghost cutoffs are uniform (Single) or vary by
// particle type (Multi).
type Style int

const (
	Single Style = iota
	Multi
)

// Swap describes one directional exchange with a neighbor rank: which slots
// to send, where received ghosts land, and the periodic image shift to
// apply while packing.
type Swap struct {
	SendProc, RecvProc int

	// PbcFlag is 0 if this swap never crosses a periodic boundary, 1 if it
	// might; Pbc holds the per-axis image shift counts (orthogonal: axes
	// 0-2; triclinic tilt terms occupy axes 3-5) to apply when packing.
	PbcFlag int
	Pbc     [6]int

	// SlabLo/SlabHi bound the eligible coordinate range along Dim for
	// Style == Single.
	SlabLo, SlabHi float64
	// MultiLo/MultiHi are the same bound, per particle type, for
	// Style == Multi. Index 0 is unused; types are 1-indexed as in the
	// grounding source.
	MultiLo, MultiHi []float64

	Dim int

	// SendList, populated by the Borders phase, holds the slot indices to
	// pack for this swap.
	SendList []int
	SendNum  int
	RecvNum  int
	// FirstRecv is the slot index newly received ghosts land at.
	FirstRecv int
}

// Plan is the full, ordered swap schedule produced by Setup: forward and
// border communication walk it ascending, reverse communication walks it
// descending.
type Plan struct {
	Need  [3]int
	Style Style
	Swaps []Swap
}

// Config parameterizes Setup.
type Config struct {
	Style Style
	// Cut is the ghost cutoff distance for Style == Single.
	Cut float64
	// CutByType is the per-type ghost cutoff for Style == Multi, 1-indexed
	// (index 0 unused, matching particle types 1..ntypes).
	CutByType []float64
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Setup builds the swap schedule for this rank, following the grounding
// source's exact slab-endpoint construction: for each dimension, need[dim]
// layers of neighbors are visited on both sides, alternating which side
// sends first, with -big/big sentinels widening the first swap in a
// direction to catch every local particle and a midpoint bound narrowing
// subsequent swaps to just what arrived in the previous one.
func Setup(box domain.Box, procgrid, myloc [3]int, procneigh [3][2]int, cfg Config) *Plan {
	triclinic := box.Triclinic()
	prd := box.Prd()
	sublo := box.SubLo()
	subhi := box.SubHi()
	periodic := box.Periodic()

	var cutghost [3]float64
	var cutghostByType [][3]float64
	cut := cfg.Cut
	if cfg.Style == Multi {
		for _, c := range cfg.CutByType {
			cut = maxFloat(cut, c)
		}
	}

	if !triclinic {
		cutghost = [3]float64{cut, cut, cut}
		if cfg.Style == Multi {
			cutghostByType = make([][3]float64, len(cfg.CutByType))
			for i, c := range cfg.CutByType {
				cutghostByType[i] = [3]float64{c, c, c}
			}
		}
	} else {
		cutghost = domain.CutghostLambda(box.HInv(), cut)
		if cfg.Style == Multi {
			cutghostByType = make([][3]float64, len(cfg.CutByType))
			for i, c := range cfg.CutByType {
				cutghostByType[i] = domain.CutghostLambda(box.HInv(), c)
			}
		}
	}

	var need [3]int
	for d := 0; d < 3; d++ {
		need[d] = int(cutghost[d]*float64(procgrid[d])/prd[d]) + 1
	}
	if box.Dimension() == 2 {
		need[2] = 0
	}
	for d := 0; d < 3; d++ {
		if !periodic[d] {
			if need[d] > procgrid[d]-1 {
				need[d] = procgrid[d] - 1
			}
		}
	}

	plan := &Plan{Need: need, Style: cfg.Style}

	for dim := 0; dim < 3; dim++ {
		for ineed := 0; ineed < 2*need[dim]; ineed++ {
			sw := Swap{Dim: dim}

			sendFirst := ineed%2 == 0
			if sendFirst {
				sw.SendProc = procneigh[dim][0]
				sw.RecvProc = procneigh[dim][1]
			} else {
				sw.SendProc = procneigh[dim][1]
				sw.RecvProc = procneigh[dim][0]
			}

			if cfg.Style == Single {
				if sendFirst {
					if ineed < 2 {
						sw.SlabLo = -big
					} else {
						sw.SlabLo = 0.5 * (sublo[dim] + subhi[dim])
					}
					sw.SlabHi = sublo[dim] + cutghost[dim]
				} else {
					sw.SlabLo = subhi[dim] - cutghost[dim]
					if ineed < 2 {
						sw.SlabHi = big
					} else {
						sw.SlabHi = 0.5 * (sublo[dim] + subhi[dim])
					}
				}
			} else {
				ntypes := len(cfg.CutByType) - 1
				sw.MultiLo = make([]float64, ntypes+1)
				sw.MultiHi = make([]float64, ntypes+1)
				for i := 1; i <= ntypes; i++ {
					cg := cutghostByType[i][dim]
					if sendFirst {
						if ineed < 2 {
							sw.MultiLo[i] = -big
						} else {
							sw.MultiLo[i] = 0.5 * (sublo[dim] + subhi[dim])
						}
						sw.MultiHi[i] = sublo[dim] + cg
					} else {
						sw.MultiLo[i] = subhi[dim] - cg
						if ineed < 2 {
							sw.MultiHi[i] = big
						} else {
							sw.MultiHi[i] = 0.5 * (sublo[dim] + subhi[dim])
						}
					}
				}
			}

			atFace := (sendFirst && myloc[dim] == 0) || (!sendFirst && myloc[dim] == procgrid[dim]-1)
			if atFace {
				if !periodic[dim] {
					if cfg.Style == Single {
						sw.SlabHi = sw.SlabLo - 1.0
					} else {
						for i := range sw.MultiHi {
							sw.MultiHi[i] = sw.MultiLo[i] - 1.0
						}
					}
				} else {
					sw.PbcFlag = 1
					if sendFirst {
						sw.Pbc[dim] = 1
						if triclinic {
							if dim == 1 {
								sw.Pbc[5] = 1
							} else if dim == 2 {
								sw.Pbc[4], sw.Pbc[3] = 1, 1
							}
						}
					} else {
						sw.Pbc[dim] = -1
						if triclinic {
							if dim == 1 {
								sw.Pbc[5] = -1
							} else if dim == 2 {
								sw.Pbc[4], sw.Pbc[3] = -1, -1
							}
						}
					}
				}
			}

			plan.Swaps = append(plan.Swaps, sw)
		}
	}

	return plan
}
