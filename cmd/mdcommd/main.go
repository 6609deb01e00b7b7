/*Command mdcommd is a reference driver for the communication engine: it
parses a config file and a handful of command-line overrides, places this
rank on a process grid, seeds a Container with randomly scattered local
particles, and runs the Borders/forward/reverse/Exchange cycle for a fixed
number of steps, logging what moved at each one.

It exists to exercise every package in this module end to end, the way the
teacher's guppy.go exercises lib's convert/confirm/check modes end to end;
it is not itself a molecular dynamics program.
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/mansfield-lab/mdcomm/lib/comm"
	"github.com/mansfield-lab/mdcomm/lib/config"
	"github.com/mansfield-lab/mdcomm/lib/domain"
	"github.com/mansfield-lab/mdcomm/lib/errs"
	"github.com/mansfield-lab/mdcomm/lib/grid"
	"github.com/mansfield-lab/mdcomm/lib/particle"
	"github.com/mansfield-lab/mdcomm/lib/thread"
	"github.com/mansfield-lab/mdcomm/lib/transport"
)

func main() {
	configFile := flag.String("config", "", "path to a comm.ini-style config file (optional)")
	boxLen := flag.Float64("box", 20.0, "edge length of the (cubic, periodic) simulation box")
	cutoff := flag.Float64("cutoff", 2.5, "ghost cutoff distance")
	nparticles := flag.Int("particles", 200, "particles to scatter across this rank's initial sub-box")
	steps := flag.Int("steps", 5, "number of forward/reverse/exchange cycles to run")
	threads := flag.Int("threads", -1, "GOMAXPROCS for this rank, or -1 for every core")
	seed := flag.Int64("seed", 1, "random seed for particle placement and drift")
	flag.Parse()

	cmdArgs := &config.RawArgs{}
	rawArgs := cmdArgs
	if *configFile != "" {
		fileArgs, err := config.ParseConfigFile(*configFile)
		if err != nil {
			errs.Abort(0, err)
		}
		fileArgs.Overwrite(cmdArgs)
		rawArgs = fileArgs
	}
	args, err := rawArgs.Process()
	if err != nil {
		errs.Abort(0, err)
	}

	if err := thread.SetThreads(*threads); err != nil {
		errs.Abort(0, err)
	}

	t, err := transport.New()
	if err != nil {
		errs.Abort(0, err)
	}
	me := t.Rank()

	areas := grid.Areas{XY: *boxLen * *boxLen, XZ: *boxLen * *boxLen, YZ: *boxLen * *boxLen}
	var placement *grid.Placement
	if args.NumaNodes > 0 {
		placement, err = grid.PlaceNUMA(t, grid.NUMAConfig{NumaNodes: args.NumaNodes}, 3, areas)
	} else {
		var procgrid [3]int
		procgrid, err = grid.Factorize(t.Size(), [3]int{}, 3, areas)
		if err == nil {
			placement, err = grid.PlacePlain(t, procgrid)
		}
	}
	if err != nil {
		errs.Abort(me, err)
	}

	prd := [3]float64{*boxLen, *boxLen, *boxLen}
	var sublo, subhi [3]float64
	for d := 0; d < 3; d++ {
		sublo[d] = *boxLen * float64(placement.MyLoc[d]) / float64(placement.ProcGrid[d])
		subhi[d] = *boxLen * float64(placement.MyLoc[d]+1) / float64(placement.ProcGrid[d])
	}
	box := domain.NewOrthogonal(3, [3]bool{true, true, true}, sublo, subhi, prd)

	store := particle.NewContainer(prd)
	store.GhostVelocity = args.GhostVelocity
	if err := store.AddField(particle.NewUint32Field("molecule", true, true)); err != nil {
		errs.Abort(me, err)
	}

	rng := rand.New(rand.NewSource(*seed + int64(me)))
	seedLocalParticles(store, sublo, subhi, *nparticles, rng)

	cfg := buildCommConfig(args, *cutoff)
	compressThreshold := 1 << 16
	engine := comm.NewEngine(t, store, box, placement.ProcGrid, placement.MyLoc, placement.ProcNeigh,
		cfg, args.GhostVelocity, true, compressThreshold)
	if args.Group != "" {
		// Reference convention: the group's members are the particles
		// seeded into the leading half of this rank's owned slots.
		engine.SetBorderGroup(*nparticles / 2)
	}

	log.Printf("rank %d: placed at %v on grid %v, %d local particles", me, placement.MyLoc, placement.ProcGrid, engine.NLocal())

	if err := engine.Borders(); err != nil {
		errs.Abort(me, err)
	}
	log.Printf("rank %d: after Borders, %d owned + %d ghost = %d slots", me, engine.NLocal(), store.Len()-engine.NLocal(), store.Len())

	for step := 0; step < *steps; step++ {
		if err := engine.ForwardComm(); err != nil {
			errs.Abort(me, err)
		}

		drift(store, engine.NLocal(), rng)

		for i := 0; i < engine.NLocal(); i++ {
			store.Force[i] = [3]float64{}
		}
		accumulateGhostForces(store, engine.NLocal())
		if err := engine.ReverseComm(); err != nil {
			errs.Abort(me, err)
		}

		before := engine.NLocal()
		if err := engine.Exchange(); err != nil {
			errs.Abort(me, err)
		}
		if engine.NLocal() != before {
			log.Printf("rank %d: step %d, local count %d -> %d after exchange", me, step, before, engine.NLocal())
		}

		if err := engine.Borders(); err != nil {
			errs.Abort(me, err)
		}
	}

	fmt.Printf("rank %d: finished %d steps with %d local particles\n", me, *steps, engine.NLocal())
}

// buildCommConfig translates the parsed config's style into a comm.Config:
// StyleUniform becomes a single global cutoff, StyleStratified becomes a
// per-type cutoff table with cliCutoff (or the config's own comm.cutoff,
// whichever is larger) as the floor for any type with no [type "N"] block
// of its own.
func buildCommConfig(args *config.Args, cliCutoff float64) comm.Config {
	floor := cliCutoff
	if args.Cutoff > floor {
		floor = args.Cutoff
	}

	if args.Style != config.StyleStratified {
		return comm.Config{Style: comm.Single, Cut: floor}
	}

	maxType := 0
	for t := range args.TypeCutoff {
		if t > maxType {
			maxType = t
		}
	}
	cutByType := make([]float64, maxType+1)
	for t := 1; t <= maxType; t++ {
		if c, ok := args.TypeCutoff[t]; ok {
			cutByType[t] = c
		} else {
			cutByType[t] = floor
		}
	}
	return comm.Config{Style: comm.Multi, CutByType: cutByType}
}

// seedLocalParticles scatters n particles uniformly through [sublo, subhi)
// and gives every particle a distinct id and an all-zero velocity/force.
func seedLocalParticles(store *particle.Container, sublo, subhi [3]float64, n int, rng *rand.Rand) {
	molecule, _ := store.Field("molecule")
	mol := molecule.(*particle.Uint32Field)
	first := store.Grow(n)
	for k := 0; k < n; k++ {
		slot := first + k
		for d := 0; d < 3; d++ {
			store.Pos[slot][d] = sublo[d] + rng.Float64()*(subhi[d]-sublo[d])
		}
		store.Type[slot] = 1
		store.ID[slot] = uint64(slot) + 1
		mol.Unpack(slot, encodeUint32(uint32(slot/10)))
	}
}

func encodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	return buf
}

// drift nudges every owned particle by a small random step, standing in for
// a real integrator; it is the only place this driver mutates position.
func drift(store *particle.Container, nlocal int, rng *rand.Rand) {
	const step = 0.05
	for i := 0; i < nlocal; i++ {
		for d := 0; d < 3; d++ {
			store.Pos[i][d] += (rng.Float64()*2 - 1) * step
		}
	}
}

// accumulateGhostForces stands in for a real pair force kernel: every ghost
// pushes a unit force back toward its owner, so ReverseComm has something
// nonzero to fold home.
func accumulateGhostForces(store *particle.Container, nlocal int) {
	for i := nlocal; i < store.Len(); i++ {
		store.Force[i] = [3]float64{1, 0, 0}
	}
}
