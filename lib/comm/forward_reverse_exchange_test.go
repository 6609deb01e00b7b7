package comm

import (
	"sync"
	"testing"

	"github.com/mansfield-lab/mdcomm/lib/grid"
	"github.com/mansfield-lab/mdcomm/lib/particle"
	"github.com/mansfield-lab/mdcomm/lib/transport"
)

// twoRankChain builds a periodic-in-x, non-periodic-in-y/z 2x1x1 chain: rank
// 0 owns [0,5), rank 1 owns [5,10), each seeded with one particle sitting
// just inside its shared boundary with the other rank so a single dim-0
// border swap ghosts it across.
func twoRankChain(t *testing.T) (*Engine, *Engine, *particle.Container, *particle.Container) {
	t.Helper()
	world := transport.NewWorld(2, nil)
	prd := [3]float64{10, 10, 10}

	var engines [2]*Engine
	var stores [2]*particle.Container
	var wg sync.WaitGroup
	wg.Add(2)
	for r := 0; r < 2; r++ {
		go func(rank int) {
			defer wg.Done()
			tr := world.Rank(rank)
			placement, err := grid.PlacePlain(tr, [3]int{2, 1, 1})
			if err != nil {
				t.Errorf("rank %d: PlacePlain failed: %v", rank, err)
				return
			}
			sublo := [3]float64{5 * float64(placement.MyLoc[0]), 0, 0}
			subhi := [3]float64{5 * float64(placement.MyLoc[0]+1), 10, 10}
			box := cubicBox([3]bool{true, false, false}, sublo, subhi)

			store := particle.NewContainer(prd)
			store.Grow(1)
			if rank == 0 {
				store.Pos[0] = [3]float64{4.5, 5, 5}
				store.ID[0] = 1
			} else {
				store.Pos[0] = [3]float64{5.5, 5, 5}
				store.ID[0] = 2
			}
			store.Type[0] = 1

			cfg := Config{Style: Single, Cut: 2}
			engines[rank] = NewEngine(tr, store, box, placement.ProcGrid, placement.MyLoc, placement.ProcNeigh, cfg, false, false, 0)
			stores[rank] = store
		}(r)
	}
	wg.Wait()
	return engines[0], engines[1], stores[0], stores[1]
}

func runOnBoth(t *testing.T, e0, e1 *Engine, fn func(e *Engine) error) {
	t.Helper()
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = fn(e0) }()
	go func() { defer wg.Done(); errs[1] = fn(e1) }()
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", i, err)
		}
	}
}

func TestBordersTwoRankChainGhostsBoundaryParticle(t *testing.T) {
	e0, e1, s0, s1 := twoRankChain(t)
	runOnBoth(t, e0, e1, func(e *Engine) error { return e.Borders() })

	if e0.NLocal() != 1 || s0.Len() != 2 {
		t.Fatalf("rank 0: expected 1 owned + 1 ghost, got NLocal=%d Len=%d", e0.NLocal(), s0.Len())
	}
	if e1.NLocal() != 1 || s1.Len() != 2 {
		t.Fatalf("rank 1: expected 1 owned + 1 ghost, got NLocal=%d Len=%d", e1.NLocal(), s1.Len())
	}
	if s0.ID[1] != 2 {
		t.Errorf("rank 0's ghost should be an image of rank 1's particle (id 2), got id %d", s0.ID[1])
	}
	if s1.ID[1] != 1 {
		t.Errorf("rank 1's ghost should be an image of rank 0's particle (id 1), got id %d", s1.ID[1])
	}
}

func TestForwardCommRefreshesGhostPosition(t *testing.T) {
	e0, e1, s0, s1 := twoRankChain(t)
	runOnBoth(t, e0, e1, func(e *Engine) error { return e.Borders() })

	s0.Pos[0][0] = 4.6
	s1.Pos[0][0] = 5.6

	runOnBoth(t, e0, e1, func(e *Engine) error { return e.ForwardComm() })

	if s0.Pos[1][0] != 5.6 {
		t.Errorf("rank 0's ghost of rank 1's particle should track its new position 5.6, got %g", s0.Pos[1][0])
	}
	if s1.Pos[1][0] != 4.6 {
		t.Errorf("rank 1's ghost of rank 0's particle should track its new position 4.6, got %g", s1.Pos[1][0])
	}
}

func TestReverseCommAccumulatesForceOntoOwner(t *testing.T) {
	e0, e1, s0, s1 := twoRankChain(t)
	runOnBoth(t, e0, e1, func(e *Engine) error { return e.Borders() })

	s0.Force[1] = [3]float64{5, 0, 0} // rank 0's ghost of particle 2
	s1.Force[1] = [3]float64{7, 0, 0} // rank 1's ghost of particle 1

	runOnBoth(t, e0, e1, func(e *Engine) error { return e.ReverseComm() })

	if s1.Force[0] != [3]float64{5, 0, 0} {
		t.Errorf("rank 1's owned particle should receive [5 0 0] folded home from rank 0's ghost, got %v", s1.Force[0])
	}
	if s0.Force[0] != [3]float64{7, 0, 0} {
		t.Errorf("rank 0's owned particle should receive [7 0 0] folded home from rank 1's ghost, got %v", s0.Force[0])
	}
}

func TestExchangeMigratesParticleAcrossBoundary(t *testing.T) {
	e0, e1, s0, s1 := twoRankChain(t)
	runOnBoth(t, e0, e1, func(e *Engine) error { return e.Borders() })

	// Push rank 0's particle across the shared boundary into rank 1's
	// sub-box.
	s0.Pos[0][0] = 5.5

	runOnBoth(t, e0, e1, func(e *Engine) error { return e.Exchange() })

	if e0.NLocal() != 0 {
		t.Errorf("rank 0: expected 0 local particles after its only one migrated away, got %d", e0.NLocal())
	}
	if e1.NLocal() != 2 {
		t.Fatalf("rank 1: expected 2 local particles (original + migrant), got %d", e1.NLocal())
	}
	sawMigrant := false
	for i := 0; i < e1.NLocal(); i++ {
		if s1.ID[i] == 1 {
			sawMigrant = true
			if s1.Pos[i][0] != 5.5 {
				t.Errorf("migrated particle should keep its position 5.5, got %g", s1.Pos[i][0])
			}
		}
	}
	if !sawMigrant {
		t.Errorf("rank 1 does not own the migrated particle (id 1) after Exchange")
	}
}
