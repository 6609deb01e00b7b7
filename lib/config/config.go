/*Package config parses the INI-style configuration file that drives a
communication engine instance, following the teacher's two-stage
RawArgs -> Args split: gcfg fills a RawArgs verbatim from the file, then
Process validates it and produces the Args the rest of the module actually
consumes.
*/
package config

import (
	"fmt"
	"strconv"

	"gopkg.in/gcfg.v1"

	"github.com/mansfield-lab/mdcomm/lib/errs"
)

// Style selects the ghost-cutoff geometry Borders classifies particles
// against: a single slab shared by every particle, or one slab per particle
// type.
type Style int

const (
	// StyleUniform uses a single ghost cutoff for every particle,
	// regardless of type (comm.Single).
	StyleUniform Style = iota
	// StyleStratified uses a per-type ghost cutoff, read from the
	// config's [type "N"] blocks, so types with a smaller interaction
	// range don't drag in ghosts a larger-cutoff type would need
	// (comm.Multi).
	StyleStratified
)

func (s Style) String() string {
	switch s {
	case StyleUniform:
		return "uniform"
	case StyleStratified:
		return "stratified"
	default:
		return "unknown"
	}
}

// groupSection is the gcfg shape of a single [group "name"] block.
type groupSection struct {
	Cutoff float64
}

// typeSection is the gcfg shape of a single [type "N"] block, giving
// particle type N its own ghost cutoff under StyleStratified.
type typeSection struct {
	Cutoff float64
}

// commSection is the gcfg shape of the [comm] block.
type commSection struct {
	Style         string
	Cutoff        float64
	GhostVelocity bool
	NumaNodes     int
	Group         string
}

// rawINI is the direct gcfg decoding target: every field is a string,
// string-typed bool, or number pulled straight from the file with no
// validation performed yet.
type rawINI struct {
	Comm  commSection
	Group map[string]*groupSection
	Type  map[string]*typeSection
}

// RawArgs stores the unprocessed values read from a config file, before
// Process has validated them into an Args.
type RawArgs struct {
	raw rawINI
}

// Args is the validated, ready-to-use configuration.
type Args struct {
	Style Style
	// Cutoff is the global ghost-radius floor: under StyleUniform it is
	// the only cutoff there is; under StyleStratified it is the fallback
	// for any type with no [type "N"] block of its own.
	Cutoff        float64
	GhostVelocity bool
	NumaNodes     int
	// Group, if non-empty, names the particle group that Borders treats
	// as the "first group": on each dimension's first two swaps, only the
	// group's owned members (assumed to occupy the container's leading
	// slots) are checked against the border window, not every owned
	// particle.
	Group string
	// GroupCutoff maps each [group "name"] block to its cutoff value.
	// Process validates and records it; the border-group restriction
	// (comm.Engine.SetBorderGroup) takes only a member count and does not
	// read this cutoff.
	GroupCutoff map[string]float64
	// TypeCutoff maps a particle type to its own ghost cutoff, populated
	// from [type "N"] blocks; only meaningful under StyleStratified.
	TypeCutoff map[int]float64
}

// ParseConfigFile reads and decodes a config file into a RawArgs, performing
// no semantic validation.
func ParseConfigFile(fileName string) (*RawArgs, error) {
	var raw rawINI
	if err := gcfg.ReadFileInto(&raw, fileName); err != nil {
		return nil, errs.NewLocal(errs.Configuration, "could not parse config file %q: %v", fileName, err)
	}
	return &RawArgs{raw: raw}, nil
}

// ParseConfigString decodes config text directly, mainly for tests.
func ParseConfigString(text string) (*RawArgs, error) {
	var raw rawINI
	if err := gcfg.ReadStringInto(&raw, text); err != nil {
		return nil, errs.NewLocal(errs.Configuration, "could not parse config text: %v", err)
	}
	return &RawArgs{raw: raw}, nil
}

// Overwrite copies every non-default value set in other onto args, letting a
// command-line override a config-file value the way the teacher's RawArgs
// pattern intends.
func (args *RawArgs) Overwrite(other *RawArgs) {
	if other.raw.Comm.Style != "" {
		args.raw.Comm.Style = other.raw.Comm.Style
	}
	if other.raw.Comm.Cutoff != 0 {
		args.raw.Comm.Cutoff = other.raw.Comm.Cutoff
	}
	if other.raw.Comm.GhostVelocity {
		args.raw.Comm.GhostVelocity = other.raw.Comm.GhostVelocity
	}
	if other.raw.Comm.NumaNodes != 0 {
		args.raw.Comm.NumaNodes = other.raw.Comm.NumaNodes
	}
	if other.raw.Comm.Group != "" {
		args.raw.Comm.Group = other.raw.Comm.Group
	}
	for name, g := range other.raw.Group {
		if args.raw.Group == nil {
			args.raw.Group = map[string]*groupSection{}
		}
		args.raw.Group[name] = g
	}
	for name, ts := range other.raw.Type {
		if args.raw.Type == nil {
			args.raw.Type = map[string]*typeSection{}
		}
		args.raw.Type[name] = ts
	}
}

// Process validates a RawArgs and produces an Args, or a Configuration error
// naming the first thing wrong with it.
func (args *RawArgs) Process() (*Args, error) {
	var style Style
	switch args.raw.Comm.Style {
	case "", "uniform":
		style = StyleUniform
	case "stratified":
		style = StyleStratified
	default:
		return nil, errs.NewLocal(errs.Configuration, "comm.style must be 'uniform' or 'stratified', got %q", args.raw.Comm.Style)
	}

	if args.raw.Comm.Cutoff < 0 {
		return nil, errs.NewLocal(errs.Configuration, "comm.cutoff must be >= 0, got %g", args.raw.Comm.Cutoff)
	}

	out := &Args{
		Style:         style,
		Cutoff:        args.raw.Comm.Cutoff,
		GhostVelocity: args.raw.Comm.GhostVelocity,
		NumaNodes:     args.raw.Comm.NumaNodes,
		Group:         args.raw.Comm.Group,
		GroupCutoff:   map[string]float64{},
		TypeCutoff:    map[int]float64{},
	}
	if out.NumaNodes < 0 {
		return nil, errs.NewLocal(errs.Configuration, "comm.numa_nodes must be >= 0, got %d", out.NumaNodes)
	}
	if out.Group != "" {
		if _, ok := args.raw.Group[out.Group]; !ok {
			return nil, errs.NewLocal(errs.Configuration, "comm.group %q has no matching [group %q] block", out.Group, out.Group)
		}
	}

	for name, g := range args.raw.Group {
		if g.Cutoff < 0 {
			return nil, errs.NewLocal(errs.Configuration, "group %q: cutoff must be >= 0, got %g", name, g.Cutoff)
		}
		out.GroupCutoff[name] = g.Cutoff
	}

	for name, ts := range args.raw.Type {
		typ, err := strconv.Atoi(name)
		if err != nil || typ <= 0 {
			return nil, errs.NewLocal(errs.Configuration, "type %q: must be a positive integer particle type", name)
		}
		if ts.Cutoff < 0 {
			return nil, errs.NewLocal(errs.Configuration, "type %q: cutoff must be >= 0, got %g", name, ts.Cutoff)
		}
		out.TypeCutoff[typ] = ts.Cutoff
	}
	if style == StyleStratified && len(out.TypeCutoff) == 0 {
		return nil, errs.NewLocal(errs.Configuration, "comm.style = stratified requires at least one [type \"N\"] block")
	}

	return out, nil
}

func (args *Args) String() string {
	return fmt.Sprintf("Args{Style: %s, Cutoff: %g, GhostVelocity: %v, NumaNodes: %d, Group: %q, Groups: %d, Types: %d}",
		args.Style, args.Cutoff, args.GhostVelocity, args.NumaNodes, args.Group, len(args.GroupCutoff), len(args.TypeCutoff))
}
