package grid

import (
	"log"

	"github.com/mansfield-lab/mdcomm/lib/errs"
	"github.com/mansfield-lab/mdcomm/lib/transport"
)

// NUMAConfig parameterizes the NUMA-aware rank placer.
type NUMAConfig struct {
	// NumaNodes is the number of NUMA domains per physical node.
	NumaNodes int
	// UserGrid pins the outer (inter-node) grid dimensions, 0 meaning
	// "choose". It has no effect on the inner, intra-NUMA factorization.
	UserGrid [3]int
}

const hostnameFieldWidth = 64

func encodeHostname(s string) []int {
	out := make([]int, hostnameFieldWidth)
	for i := 0; i < hostnameFieldWidth && i < len(s); i++ {
		out[i] = int(s[i])
	}
	return out
}

func decodeHostname(v []int) string {
	b := make([]byte, 0, len(v))
	for _, c := range v {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(b)
}

// PlaceNUMA attempts a NUMA-aware placement: ranks sharing a hostname are
// grouped into a node, each node splits evenly into cfg.NumaNodes
// sub-groups, and the outer (inter-node) and inner (intra-NUMA) grids are
// each factored to minimize surface area, with the outer factorization
// weighted by the inner one and then refined.
//
// If the even-split preconditions the algorithm needs aren't met, it logs a
// notice and falls back to PlacePlain deterministically - the source this
// is grounded on left that fallback disabled, producing an unspecified
// grid on precondition failure; this reimplementation always produces a
// valid one.
func PlaceNUMA(t transport.Transport, cfg NUMAConfig, dimension int, areas Areas) (*Placement, error) {
	p := t.Size()
	me := t.Rank()

	myHost, err := t.Hostname()
	if err != nil {
		return nil, errs.NewLocal(errs.Topology, "could not determine hostname: %v", err)
	}

	gathered, err := t.AllGatherInts(encodeHostname(myHost))
	if err != nil {
		return nil, errs.New(errs.Topology, "hostname all-gather failed: %v", err)
	}
	hostnames := make([]string, p)
	for r := 0; r < p; r++ {
		hostnames[r] = decodeHostname(gathered[r*hostnameFieldWidth : (r+1)*hostnameFieldWidth])
	}

	if fallback := checkNUMAPreconditions(hostnames, cfg); fallback != "" {
		log.Printf("mdcomm: NUMA placement unavailable (%s); falling back to plain Cartesian placement", fallback)
		return PlacePlain(t, computePlainGridForFallback(t, cfg, dimension, areas))
	}

	countsByHost := map[string]int{}
	for _, h := range hostnames {
		countsByHost[h]++
	}
	rNode := countsByHost[myHost]
	rNuma := rNode / cfg.NumaNodes

	if cores, err := coresAvailable(); err == nil && cores < rNuma {
		log.Printf("mdcomm: rank %d sees %d usable cores but %d ranks share its NUMA domain; oversubscribed", me, cores, rNuma)
	}

	// node_rank: this rank's ordinal among ranks sharing its hostname,
	// ordered by ascending original rank - mirrors MPI_Comm_split's
	// rank ordering when every member uses key=0.
	nodeRank := 0
	for r := 0; r < me; r++ {
		if hostnames[r] == myHost {
			nodeRank++
		}
	}
	numaRank := nodeRank % rNuma

	// leader_index: this rank's ordinal among all ranks with numaRank==0,
	// i.e. its position in the "numa_leaders" communicator.
	isLeader := numaRank == 0
	leaderIndex := -1
	if isLeader {
		leaderIndex = 0
		for r := 0; r < me; r++ {
			if isNumaLeader(r, hostnames, countsByHost, cfg) {
				leaderIndex++
			}
		}
	}

	outerCount := p / rNuma

	numaGrid, err := Factorize(rNuma, [3]int{}, dimension, areas)
	if err != nil {
		return nil, err
	}
	weighted := Areas{
		XY: areas.XY / float64(numaGrid[0]*numaGrid[1]),
		XZ: areas.XZ / float64(numaGrid[0]*numaGrid[2]),
		YZ: areas.YZ / float64(numaGrid[1]*numaGrid[2]),
	}
	outerGrid, err := Factorize(outerCount, cfg.UserGrid, dimension, weighted)
	if err != nil {
		return nil, err
	}
	weighted2 := Areas{
		XY: areas.XY / float64(outerGrid[0]*outerGrid[1]),
		XZ: areas.XZ / float64(outerGrid[0]*outerGrid[2]),
		YZ: areas.YZ / float64(outerGrid[1]*outerGrid[2]),
	}
	numaGrid, err = Factorize(rNuma, [3]int{}, dimension, weighted2)
	if err != nil {
		return nil, err
	}
	if dimension == 2 && (outerGrid[2] != 1 || numaGrid[2] != 1) {
		return nil, errs.New(errs.Topology, "processor count in z must be 1 for a 2D simulation")
	}

	finalGrid := [3]int{
		outerGrid[0] * numaGrid[0],
		outerGrid[1] * numaGrid[1],
		outerGrid[2] * numaGrid[2],
	}

	var outerCoord [3]int
	if isLeader {
		outerCoord = rankToCoord(leaderIndex, outerGrid)
	} else {
		// Find my group's leader (same hostname, same local NUMA
		// group) and reuse its outer coordinate - deterministic from
		// data every rank already has, no extra communication.
		for r := 0; r < p; r++ {
			if hostnames[r] != myHost {
				continue
			}
			if nodeRankOf(r, hostnames, myHost) == numaGroupStart(nodeRank, rNuma) {
				// This is the leader rank of my numa group.
				leaderPos := 0
				for q := 0; q < r; q++ {
					if isNumaLeader(q, hostnames, countsByHost, cfg) {
						leaderPos++
					}
				}
				outerCoord = rankToCoord(leaderPos, outerGrid)
				break
			}
		}
	}

	offset := deinterleave(numaRank, numaGrid)
	myloc := [3]int{
		outerCoord[0]*numaGrid[0] + offset[0],
		outerCoord[1]*numaGrid[1] + offset[1],
		outerCoord[2]*numaGrid[2] + offset[2],
	}

	gathered2, err := t.AllGatherInts(myloc[:])
	if err != nil {
		return nil, errs.New(errs.Topology, "coordinate all-gather failed: %v", err)
	}
	g2p := make(map[[3]int]int, p)
	for r := 0; r < p; r++ {
		c := [3]int{gathered2[r*3], gathered2[r*3+1], gathered2[r*3+2]}
		if _, dup := g2p[c]; dup {
			return nil, errs.New(errs.Topology, "duplicate grid cell %v in NUMA mapping", c)
		}
		g2p[c] = r
	}

	var neigh [3][2]int
	for d := 0; d < 3; d++ {
		lo, hi := myloc, myloc
		lo[d] = mod(myloc[d]-1, finalGrid[d])
		hi[d] = mod(myloc[d]+1, finalGrid[d])
		neigh[d][0] = g2p[lo]
		neigh[d][1] = g2p[hi]
	}

	return &Placement{Me: me, MyLoc: myloc, ProcGrid: finalGrid, ProcNeigh: neigh, Grid2Proc: g2p}, nil
}

func nodeRankOf(r int, hostnames []string, host string) int {
	n := 0
	for q := 0; q < r; q++ {
		if hostnames[q] == host {
			n++
		}
	}
	return n
}

func numaGroupStart(nodeRank, rNuma int) int {
	return (nodeRank / rNuma) * rNuma
}

func deinterleave(numaRank int, numaGrid [3]int) [3]int {
	nx, ny := numaGrid[0], numaGrid[1]
	z := numaRank / (nx * ny)
	y := (numaRank % (nx * ny)) / nx
	x := numaRank % nx
	return [3]int{x, y, z}
}

func isNumaLeader(r int, hostnames []string, countsByHost map[string]int, cfg NUMAConfig) bool {
	host := hostnames[r]
	rNuma := countsByHost[host] / cfg.NumaNodes
	nodeRank := nodeRankOf(r, hostnames, host)
	return nodeRank%rNuma == 0
}

// checkNUMAPreconditions returns a human-readable reason to fall back, or
// "" if NUMA placement can proceed: every node must host the same number
// of ranks, that count must split evenly into cfg.NumaNodes groups of at
// least 3, and there must be at least 2 NUMA domains total.
func checkNUMAPreconditions(hostnames []string, cfg NUMAConfig) string {
	if cfg.NumaNodes < 1 {
		return "numa_nodes not configured"
	}
	counts := map[string]int{}
	for _, h := range hostnames {
		counts[h]++
	}
	first := -1
	for _, c := range counts {
		if first == -1 {
			first = c
		} else if c != first {
			return "uneven rank count across nodes"
		}
	}
	if first%cfg.NumaNodes != 0 {
		return "ranks per node do not split evenly into numa_nodes groups"
	}
	rNuma := first / cfg.NumaNodes
	if rNuma < 3 {
		return "fewer than 3 ranks per numa domain"
	}
	totalNumaDomains := len(counts) * cfg.NumaNodes
	if totalNumaDomains < 2 {
		return "fewer than 2 numa domains total"
	}
	if len(hostnames)%rNuma != 0 {
		return "worker count does not divide evenly by ranks-per-numa-domain"
	}
	return ""
}

// computePlainGridForFallback picks a plain process grid honoring the
// user's outer-grid pins when NUMA placement isn't viable.
func computePlainGridForFallback(t transport.Transport, cfg NUMAConfig, dimension int, areas Areas) [3]int {
	grid, err := Factorize(t.Size(), cfg.UserGrid, dimension, areas)
	if err != nil {
		// A failure here means the pins are infeasible for t.Size(),
		// which PlacePlain will reject with a clear error.
		return cfg.UserGrid
	}
	return grid
}
