package config

import "testing"

func TestProcessDefaults(t *testing.T) {
	raw, err := ParseConfigString("")
	if err != nil {
		t.Fatalf("ParseConfigString failed: %v", err)
	}
	args, err := raw.Process()
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if args.Style != StyleUniform {
		t.Errorf("expected default style uniform, got %s", args.Style)
	}
	if args.GhostVelocity {
		t.Errorf("expected ghost_velocity to default to false")
	}
}

func TestProcessStratifiedWithGroups(t *testing.T) {
	text := `
[comm]
style = stratified
ghost_velocity = yes
numa_nodes = 2

[group "solvent"]
cutoff = 2.5

[group "solute"]
cutoff = 5.0

[type "1"]
cutoff = 2.0

[type "2"]
cutoff = 4.0
`
	raw, err := ParseConfigString(text)
	if err != nil {
		t.Fatalf("ParseConfigString failed: %v", err)
	}
	args, err := raw.Process()
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if args.Style != StyleStratified {
		t.Errorf("expected style stratified, got %s", args.Style)
	}
	if !args.GhostVelocity {
		t.Errorf("expected ghost_velocity true")
	}
	if args.NumaNodes != 2 {
		t.Errorf("expected numa_nodes 2, got %d", args.NumaNodes)
	}
	if args.GroupCutoff["solvent"] != 2.5 || args.GroupCutoff["solute"] != 5.0 {
		t.Errorf("unexpected group cutoffs: %v", args.GroupCutoff)
	}
	if args.TypeCutoff[1] != 2.0 || args.TypeCutoff[2] != 4.0 {
		t.Errorf("unexpected type cutoffs: %v", args.TypeCutoff)
	}
}

func TestProcessStratifiedWithoutTypesIsRejected(t *testing.T) {
	raw, err := ParseConfigString("[comm]\nstyle = stratified\n")
	if err != nil {
		t.Fatalf("ParseConfigString failed: %v", err)
	}
	if _, err := raw.Process(); err == nil {
		t.Errorf("expected Process to reject stratified style with no [type \"N\"] blocks")
	}
}

func TestProcessRejectsNonIntegerType(t *testing.T) {
	raw, err := ParseConfigString("[comm]\nstyle = stratified\n\n[type \"solvent\"]\ncutoff = 2.0\n")
	if err != nil {
		t.Fatalf("ParseConfigString failed: %v", err)
	}
	if _, err := raw.Process(); err == nil {
		t.Errorf("expected Process to reject a non-integer [type] name")
	}
}

func TestProcessRejectsUnknownStyle(t *testing.T) {
	raw, err := ParseConfigString("[comm]\nstyle = spooky\n")
	if err != nil {
		t.Fatalf("ParseConfigString failed: %v", err)
	}
	if _, err := raw.Process(); err == nil {
		t.Errorf("expected Process to reject an unknown style")
	}
}

func TestProcessReadsGlobalCutoff(t *testing.T) {
	raw, err := ParseConfigString("[comm]\ncutoff = 3.5\n")
	if err != nil {
		t.Fatalf("ParseConfigString failed: %v", err)
	}
	args, err := raw.Process()
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if args.Cutoff != 3.5 {
		t.Errorf("expected comm.cutoff = 3.5, got %g", args.Cutoff)
	}
}

func TestProcessRejectsNegativeGlobalCutoff(t *testing.T) {
	raw, err := ParseConfigString("[comm]\ncutoff = -1\n")
	if err != nil {
		t.Fatalf("ParseConfigString failed: %v", err)
	}
	if _, err := raw.Process(); err == nil {
		t.Errorf("expected Process to reject a negative comm.cutoff")
	}
}

func TestProcessRejectsNegativeCutoff(t *testing.T) {
	raw, err := ParseConfigString("[group \"solvent\"]\ncutoff = -1\n")
	if err != nil {
		t.Fatalf("ParseConfigString failed: %v", err)
	}
	if _, err := raw.Process(); err == nil {
		t.Errorf("expected Process to reject a negative cutoff")
	}
}

func TestProcessAcceptsGroupWithMatchingBlock(t *testing.T) {
	text := `
[comm]
group = solute

[group "solute"]
cutoff = 5.0
`
	raw, err := ParseConfigString(text)
	if err != nil {
		t.Fatalf("ParseConfigString failed: %v", err)
	}
	args, err := raw.Process()
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if args.Group != "solute" {
		t.Errorf("expected Group = \"solute\", got %q", args.Group)
	}
}

func TestProcessRejectsGroupWithNoMatchingBlock(t *testing.T) {
	raw, err := ParseConfigString("[comm]\ngroup = solute\n")
	if err != nil {
		t.Fatalf("ParseConfigString failed: %v", err)
	}
	if _, err := raw.Process(); err == nil {
		t.Errorf("expected Process to reject a comm.group with no matching [group] block")
	}
}

func TestOverwrite(t *testing.T) {
	base, _ := ParseConfigString("[comm]\nstyle = uniform\n")
	override, _ := ParseConfigString("[comm]\nstyle = stratified\n\n[type \"1\"]\ncutoff = 2.0\n")
	base.Overwrite(override)
	args, err := base.Process()
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if args.Style != StyleStratified {
		t.Errorf("expected Overwrite to apply the override style, got %s", args.Style)
	}
	if args.TypeCutoff[1] != 2.0 {
		t.Errorf("expected Overwrite to carry the override's [type] block through, got %v", args.TypeCutoff)
	}
}
