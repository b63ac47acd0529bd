package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Scenario is a validated replay script.
type Scenario struct {
	Instances []InstanceDecl
	Steps     []Step
}

// InstanceDecl declares a constructible instance: a scenario-local name, the
// catalog type to build it from, and the initializer parameters.
type InstanceDecl struct {
	Name   string
	Type   string
	Params map[string]any
}

// Step is one protocol operation.
type Step struct {
	// Op is one of construct, uses, used, destroy, export.
	Op string

	// Actor names the instance the operation applies to.
	Actor string

	// Deps maps local keys to scenario instance names for uses. A value
	// naming no declared instance is passed through as a type reference.
	Deps map[string]string

	// Keys lists the slots to release for used.
	Keys []string

	// Name is the symbol to look up for export.
	Name string
}

type fileScenario struct {
	Instances []fileInstance `toml:"instances"`
	Steps     []fileStep     `toml:"steps"`
}

type fileInstance struct {
	Name   string         `toml:"name"`
	Type   string         `toml:"type"`
	Params map[string]any `toml:"params"`
}

type fileStep struct {
	Op    string            `toml:"op"`
	Actor string            `toml:"actor"`
	Deps  map[string]string `toml:"deps"`
	Keys  []string          `toml:"keys"`
	Name  string            `toml:"name"`
}

var knownOps = map[string]bool{
	"construct": true,
	"uses":      true,
	"used":      true,
	"destroy":   true,
	"export":    true,
}

func loadScenario(path string) (Scenario, error) {
	var raw fileScenario
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return Scenario{}, fmt.Errorf("load scenario: %w", err)
	}

	sc := Scenario{}
	seen := map[string]bool{}
	for i, inst := range raw.Instances {
		name := strings.TrimSpace(inst.Name)
		typ := strings.TrimSpace(inst.Type)
		if name == "" || typ == "" {
			return Scenario{}, fmt.Errorf("instance %d: name and type are required", i+1)
		}
		if seen[name] {
			return Scenario{}, fmt.Errorf("instance %d: duplicate name %q", i+1, name)
		}
		seen[name] = true
		sc.Instances = append(sc.Instances, InstanceDecl{Name: name, Type: typ, Params: inst.Params})
	}

	for i, step := range raw.Steps {
		op := strings.ToLower(strings.TrimSpace(step.Op))
		actor := strings.TrimSpace(step.Actor)
		if !knownOps[op] {
			return Scenario{}, fmt.Errorf("step %d: unknown op %q", i+1, step.Op)
		}
		if actor == "" {
			return Scenario{}, fmt.Errorf("step %d: actor is required", i+1)
		}
		if !seen[actor] {
			return Scenario{}, fmt.Errorf("step %d: actor %q is not a declared instance", i+1, actor)
		}
		if op == "export" && strings.TrimSpace(step.Name) == "" {
			return Scenario{}, fmt.Errorf("step %d: export needs a name", i+1)
		}
		sc.Steps = append(sc.Steps, Step{
			Op:    op,
			Actor: actor,
			Deps:  step.Deps,
			Keys:  step.Keys,
			Name:  strings.TrimSpace(step.Name),
		})
	}
	return sc, nil
}
