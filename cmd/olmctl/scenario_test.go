package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadScenarioExample(t *testing.T) {
	sc, err := loadScenario("ex.scenario.toml")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if len(sc.Instances) != 4 {
		t.Fatalf("unexpected instance count: %d", len(sc.Instances))
	}
	if sc.Instances[0].Name != "a" || sc.Instances[0].Type != "widget" {
		t.Fatalf("unexpected first instance: %+v", sc.Instances[0])
	}
	if got := sc.Instances[0].Params["label"]; got != "user side" {
		t.Fatalf("unexpected label param: %v", got)
	}
	if len(sc.Steps) != 15 {
		t.Fatalf("unexpected step count: %d", len(sc.Steps))
	}
	uses := sc.Steps[2]
	if uses.Op != "uses" || uses.Actor != "a" {
		t.Fatalf("unexpected third step: %+v", uses)
	}
	if uses.Deps["EXAMPLE"] != "b" || uses.Deps["kind"] != "host.Widget" {
		t.Fatalf("unexpected uses deps: %+v", uses.Deps)
	}
	if sc.Steps[3].Op != "export" || sc.Steps[3].Name != "EXAMPLE" {
		t.Fatalf("unexpected export step: %+v", sc.Steps[3])
	}
}

func TestLoadScenarioValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{
			name: "missing type",
			body: "[[instances]]\nname = \"a\"\n",
		},
		{
			name: "duplicate name",
			body: "[[instances]]\nname = \"a\"\ntype = \"t\"\n[[instances]]\nname = \"a\"\ntype = \"t\"\n",
		},
		{
			name: "unknown op",
			body: "[[instances]]\nname = \"a\"\ntype = \"t\"\n[[steps]]\nop = \"explode\"\nactor = \"a\"\n",
		},
		{
			name: "undeclared actor",
			body: "[[instances]]\nname = \"a\"\ntype = \"t\"\n[[steps]]\nop = \"destroy\"\nactor = \"b\"\n",
		},
		{
			name: "export without name",
			body: "[[instances]]\nname = \"a\"\ntype = \"t\"\n[[steps]]\nop = \"export\"\nactor = \"a\"\n",
		},
	}

	for _, tc := range cases {
		path := filepath.Join(t.TempDir(), "scenario.toml")
		if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
			t.Fatalf("%s: write scenario: %v", tc.name, err)
		}
		if _, err := loadScenario(path); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
