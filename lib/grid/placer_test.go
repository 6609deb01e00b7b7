package grid

import (
	"testing"

	"github.com/mansfield-lab/mdcomm/lib/transport"
)

func makeConstHostnames(n int) *transport.World {
	return transport.NewWorld(n, nil)
}

func TestPlaceNUMAFallsBackWhenPreconditionsFail(t *testing.T) {
	// A single simulated hostname with only 4 ranks and 2 NUMA nodes gives
	// 2 ranks per domain, below the minimum of 3 - PlaceNUMA should fall
	// back to a plain Cartesian placement rather than error out.
	// Every rank must take part, since PlaceNUMA all-gathers hostnames.
	world := makeConstHostnames(4)
	placements := make([]*Placement, 4)
	errs := make([]error, 4)
	done := make(chan int, 4)
	for r := 0; r < 4; r++ {
		go func(rank int) {
			placements[rank], errs[rank] = PlaceNUMA(world.Rank(rank), NUMAConfig{NumaNodes: 2}, 3, Areas{XY: 1, XZ: 1, YZ: 1})
			done <- rank
		}(r)
	}
	for r := 0; r < 4; r++ {
		<-done
	}
	for r, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: PlaceNUMA should fall back instead of failing, got: %v", r, err)
		}
	}
	for r, p := range placements {
		if p.ProcGrid[0]*p.ProcGrid[1]*p.ProcGrid[2] != 4 {
			t.Errorf("rank %d: expected the fallback grid to account for all 4 workers, got %v", r, p.ProcGrid)
		}
	}
}

func TestPlaceNUMAGroupsRanksByHostnameAndDomain(t *testing.T) {
	hostnames := []string{
		"nodeA", "nodeA", "nodeA", "nodeA", "nodeA", "nodeA",
		"nodeB", "nodeB", "nodeB", "nodeB", "nodeB", "nodeB",
	}
	world := transport.NewWorld(len(hostnames), hostnames)

	placements := make([]*Placement, len(hostnames))
	errs := make([]error, len(hostnames))
	done := make(chan int, len(hostnames))
	for r := range hostnames {
		go func(rank int) {
			placements[rank], errs[rank] = PlaceNUMA(world.Rank(rank), NUMAConfig{NumaNodes: 2}, 3, Areas{XY: 1, XZ: 1, YZ: 1})
			done <- rank
		}(r)
	}
	for range hostnames {
		<-done
	}
	for r, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: PlaceNUMA failed: %v", r, err)
		}
	}

	seen := map[[3]int]int{}
	for r, p := range placements {
		if p.ProcGrid[0]*p.ProcGrid[1]*p.ProcGrid[2] != len(hostnames) {
			t.Fatalf("rank %d: grid %v does not account for %d workers", r, p.ProcGrid, len(hostnames))
		}
		if other, dup := seen[p.MyLoc]; dup {
			t.Fatalf("rank %d and rank %d were both placed at %v", r, other, p.MyLoc)
		}
		seen[p.MyLoc] = r
	}
}
