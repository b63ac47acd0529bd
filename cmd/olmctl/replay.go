package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sghaida/olm/lifecycle"
)

// recorder collects the finalize order across all scripted instances.
type recorder struct {
	order []string
}

// scripted is the generic instance type replays are built from. Its
// initializer honors two well-known parameters: "label" (stored for the
// report) and "fail" (forces an initializer error, for exercising the
// construct-failure path from a scenario).
type scripted struct {
	lifecycle.Hook

	name  string
	label string
	rec   *recorder
}

func (s *scripted) Initialize(params lifecycle.Params) error {
	if v, ok := params["label"].(string); ok {
		s.label = v
	}
	if fail, ok := params["fail"].(bool); ok && fail {
		return errors.New("scripted initializer failure")
	}
	return nil
}

func (s *scripted) Finalize() error {
	s.rec.order = append(s.rec.order, s.name)
	return nil
}

// report is the replay outcome handed to the printer.
type report struct {
	FinalizeOrder []string
	Remaining     int
	Instances     []instanceReport
}

type instanceReport struct {
	Name          string
	Constructed   bool
	Finalized     bool
	Registrations int
	Dependents    int
}

// engine executes one scenario against one registry.
type engine struct {
	scenario  Scenario
	reg       *lifecycle.Registry
	catalog   *lifecycle.Catalog
	log       zerolog.Logger
	rec       *recorder
	instances map[string]*scripted
}

func newEngine(sc Scenario, reg *lifecycle.Registry, log zerolog.Logger) *engine {
	e := &engine{
		scenario:  sc,
		reg:       reg,
		catalog:   lifecycle.NewCatalog(reg),
		log:       log,
		rec:       &recorder{},
		instances: make(map[string]*scripted),
	}
	for _, decl := range sc.Instances {
		if _, ok := e.catalog.Get(decl.Type); ok {
			continue
		}
		e.catalog.Provide(decl.Type, lifecycle.Factory(func() lifecycle.Instance {
			return &scripted{}
		}))
	}
	return e
}

func (e *engine) run() (report, error) {
	for i, step := range e.scenario.Steps {
		if err := e.apply(step); err != nil {
			return report{}, fmt.Errorf("step %d (%s %s): %w", i+1, step.Op, step.Actor, err)
		}
	}

	rep := report{
		FinalizeOrder: e.rec.order,
		Remaining:     e.reg.Len(),
	}
	for _, decl := range e.scenario.Instances {
		ir := instanceReport{Name: decl.Name}
		if s, ok := e.instances[decl.Name]; ok {
			ir.Constructed = true
			ir.Finalized = s.Destroyed()
			ir.Registrations = e.reg.RegistrationCount(s)
			ir.Dependents = e.reg.Dependents(s)
		}
		rep.Instances = append(rep.Instances, ir)
	}
	return rep, nil
}

func (e *engine) apply(step Step) error {
	switch step.Op {
	case "construct":
		return e.construct(step.Actor)
	case "uses":
		s, err := e.live(step.Actor)
		if err != nil {
			return err
		}
		deps := make(map[lifecycle.Key]any, len(step.Deps))
		for key, ref := range step.Deps {
			if target, ok := e.instances[ref]; ok {
				deps[lifecycle.Key(key)] = target
			} else {
				// not a declared instance: pass through as a type reference
				deps[lifecycle.Key(key)] = ref
			}
		}
		return s.Uses(deps)
	case "used":
		s, err := e.live(step.Actor)
		if err != nil {
			return err
		}
		keys := make([]lifecycle.Key, 0, len(step.Keys))
		for _, k := range step.Keys {
			keys = append(keys, lifecycle.Key(k))
		}
		s.Used(keys...)
		return nil
	case "destroy":
		s, err := e.live(step.Actor)
		if err != nil {
			return err
		}
		finalized, err := s.Destroy()
		e.log.Info().
			Str("actor", step.Actor).
			Bool("finalized", finalized).
			Msg("destroy pass")
		return err
	case "export":
		s, err := e.live(step.Actor)
		if err != nil {
			return err
		}
		val, ok := s.Export("olmctl", step.Name)
		e.log.Info().
			Str("actor", step.Actor).
			Str("name", step.Name).
			Bool("bound", ok).
			Interface("value", describe(val)).
			Msg("export lookup")
		return nil
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func (e *engine) construct(name string) error {
	decl, ok := e.decl(name)
	if !ok {
		return fmt.Errorf("instance %q not declared", name)
	}

	// a repeated construct step layers one more registration on the
	// existing instance instead of building a second one
	if existing, ok := e.instances[name]; ok {
		return lifecycle.Construct(e.reg, existing, lifecycle.Params(decl.Params))
	}

	inst, err := e.catalog.Construct(decl.Type, lifecycle.Params(decl.Params))
	if inst == nil && err == nil {
		return fmt.Errorf("type %q is not constructible", decl.Type)
	}
	if inst != nil {
		s := inst.(*scripted)
		s.name = name
		s.rec = e.rec
		e.instances[name] = s
		e.log.Info().
			Str("actor", name).
			Str("type", decl.Type).
			Stringer("instance", s.ID()).
			Msg("constructed")
	}
	return err
}

func (e *engine) decl(name string) (InstanceDecl, bool) {
	for _, d := range e.scenario.Instances {
		if d.Name == name {
			return d, true
		}
	}
	return InstanceDecl{}, false
}

func (e *engine) live(name string) (*scripted, error) {
	s, ok := e.instances[name]
	if !ok {
		return nil, fmt.Errorf("instance %q was never constructed", name)
	}
	return s, nil
}

// describe keeps exported instances readable in log output.
func describe(val any) any {
	if s, ok := val.(*scripted); ok {
		return s.name
	}
	return val
}

func printReport(w io.Writer, rep report) {
	fmt.Fprintf(w, "finalize order: %s\n", strings.Join(rep.FinalizeOrder, " -> "))
	for _, ir := range rep.Instances {
		if !ir.Constructed {
			fmt.Fprintf(w, "  %-14s never constructed\n", ir.Name)
			continue
		}
		fmt.Fprintf(w, "  %-14s finalized=%-5t registrations=%d dependents=%d\n",
			ir.Name, ir.Finalized, ir.Registrations, ir.Dependents)
	}
	fmt.Fprintf(w, "live entries: %d\n", rep.Remaining)
}
