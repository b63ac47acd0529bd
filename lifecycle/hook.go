package lifecycle

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// Params carries the caller-supplied named construction parameters into a
// user initializer.
type Params map[string]any

// Instance is one live tracked object: an opaque, identity-comparable
// handle. Concrete types obtain it by embedding Hook; identity is pointer
// identity of the embedding value, never value equality.
type Instance interface {
	hook() *Hook
}

// isNil reports whether inst carries no instance at all: either the
// interface itself is nil, or it wraps a typed nil pointer. Both have no
// hook to dereference, and a typed nil must take the same rejection paths
// as a plain one.
func isNil(inst Instance) bool {
	if inst == nil {
		return true
	}
	v := reflect.ValueOf(inst)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// Initializable is implemented by instance types that want a constructor
// body. Initialize runs after registration; its error propagates to the
// Construct caller and the instance stays registered, so callers needing
// cleanup-on-failure destroy explicitly.
type Initializable interface {
	Initialize(params Params) error
}

// Finalizable is implemented by instance types that want a destructor body.
// Finalize runs at most once, strictly before the instance's edges are
// released and its entry removed. A Finalize error (or panic) is reported
// but never blocks that cleanup.
type Finalizable interface {
	Finalize() error
}

// Exporter answers single-name lookups from an external symbol importer.
// The resolution algorithm lives with the importer; instances only supply
// the value to bind, or nothing.
type Exporter interface {
	Export(caller, name string) (any, bool)
}

// Hook is the per-instance lifecycle behavior. Concrete instance types embed
// it and customize construction and destruction solely through the
// Initializable and Finalizable capability interfaces; the registry protocol
// itself is not an extension point.
//
// The zero Hook is inert until the instance goes through Construct.
type Hook struct {
	registry  *Registry
	self      Instance
	namespace string
	id        uuid.UUID
	bag       map[Key]any
	destroyed bool
}

func (h *Hook) hook() *Hook { return h }

// Construct registers inst with reg and runs its initializer, in that order.
//
// On the first call for an instance the hook is bound: it gets a diagnostic
// id and a namespace derived from the concrete type name (a Catalog presets
// the namespace to the symbol name instead). Later calls add one more
// registration and run the initializer again, supporting layered
// construction paths that register more than once; the first registry wins.
// Finalization is terminal: an instance whose destroy pass ran the
// finalizer is rejected with ErrFinalized rather than re-registered.
//
// Initializer errors propagate unmodified and leave the instance
// registered. A recovered initializer panic is returned wrapped in
// ErrInitializePanic.
func Construct(reg *Registry, inst Instance, params Params) error {
	if reg == nil {
		return ErrNilRegistry
	}
	if isNil(inst) {
		return ErrNilInstance
	}
	h := inst.hook()
	if h.destroyed {
		return ErrFinalized
	}
	if h.self == nil {
		h.self = inst
		h.registry = reg
		h.bag = make(map[Key]any)
		h.id = uuid.New()
		if h.namespace == "" {
			h.namespace = strings.TrimPrefix(fmt.Sprintf("%T", inst), "*")
		}
	}
	h.registry.Register(inst)

	if init, ok := inst.(Initializable); ok {
		return initialize(init, params)
	}
	return nil
}

// initialize shields the construction path from panicking user code.
func initialize(init Initializable, params Params) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrInitializePanic, rec)
		}
	}()
	return init.Initialize(params)
}

// finalize shields the destroy pass from panicking user code.
func finalize(fin Finalizable) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrFinalizePanic, rec)
		}
	}()
	return fin.Finalize()
}

// Destroy runs one candidate-destroy pass. The host's reclamation trigger
// calls it once per candidacy point; calling code may also force a pass
// directly.
//
// Outcome of a pass:
//
//   - never constructed, already finalized, or count 0: nothing happens.
//   - registrationCount > 1: one registration is consumed and the pass is
//     deferred, so each construction layer's teardown retires exactly one.
//   - registrationCount == 1 with live dependents: deferred, nothing
//     consumed; the entry stays intact for a later pass.
//   - registrationCount == 1 and no dependents: the finalizer runs, every
//     edge where this instance is the user is released, and the entry is
//     removed, in that order.
//
// finalized reports whether the terminal path ran. err carries the
// finalizer's failure (or its recovered panic wrapped in ErrFinalizePanic);
// cleanup is attempted regardless.
func (h *Hook) Destroy() (finalized bool, err error) {
	if h.registry == nil || h.self == nil || h.destroyed {
		return false, nil
	}
	reg := h.registry
	switch n := reg.RegistrationCount(h.self); {
	case n == 0:
		return false, nil
	case n > 1:
		reg.Deregister(h.self)
		reg.log.Debug().
			Str("namespace", h.namespace).
			Stringer("instance", h.id).
			Msg("destroy deferred: outstanding registrations")
		reg.obs.DestroyDeferred(h.namespace, DeferOutstandingRegistrations)
		return false, nil
	}
	if reg.Dependents(h.self) > 0 {
		reg.log.Debug().
			Str("namespace", h.namespace).
			Stringer("instance", h.id).
			Int("dependents", reg.Dependents(h.self)).
			Msg("destroy deferred: live dependents")
		reg.obs.DestroyDeferred(h.namespace, DeferLiveDependents)
		return false, nil
	}

	if fin, ok := h.self.(Finalizable); ok {
		err = finalize(fin)
	}
	reg.Release(h.self)
	reg.Unregister(h.self)
	h.destroyed = true
	reg.obs.InstanceFinalized(h.namespace)
	return true, err
}

// Uses declares named dependencies for this instance.
//
// Each value in deps is either a live Instance, which becomes a registry
// edge, or anything else (typically a namespace string), which is treated as
// a type reference with no edge accounting. Every accepted target is also
// copied into the instance's state bag under its key, first writer wins:
// a later Uses call with an already-occupied key still updates edge
// bookkeeping but leaves the stored reference alone.
//
// Keys are processed independently; the joined error reports the rejected
// ones (see Registry.Declare).
func (h *Hook) Uses(deps map[Key]any) error {
	if h.registry == nil || h.self == nil {
		return ErrNilInstance
	}
	if len(deps) == 0 {
		return nil
	}

	live := make(map[Key]Instance)
	for key, v := range deps {
		if inst, ok := v.(Instance); ok && inst != nil {
			live[key] = inst
		}
	}

	var err error
	if len(live) > 0 {
		err = h.registry.Declare(h.self, live)
	}

	for key, v := range deps {
		if _, taken := h.bag[key]; taken {
			continue
		}
		if inst, isLive := live[key]; isLive {
			// Only store targets the registry accepted; a rejected key must
			// not leave a dangling reference in the bag either.
			if got, held := h.registry.Dependency(h.self, key); held && got == inst {
				h.bag[key] = inst
			}
			continue
		}
		h.bag[key] = v
	}
	return err
}

// Used releases named dependencies previously declared through Uses.
//
// For each key whose bag slot holds a live Instance, the matching edge is
// released and the slot removed. Keys absent from the bag, or holding a
// type reference rather than an instance, are silently skipped.
func (h *Hook) Used(keys ...Key) {
	if h.registry == nil || h.self == nil {
		return
	}
	for _, key := range keys {
		v, ok := h.bag[key]
		if !ok {
			continue
		}
		if _, isInst := v.(Instance); !isInst {
			continue
		}
		h.registry.Release(h.self, key)
		delete(h.bag, key)
	}
}

// Namespace returns the instance's diagnostic type tag.
func (h *Hook) Namespace() string { return h.namespace }

// ID returns the instance's diagnostic identifier, assigned at first
// construction.
func (h *Hook) ID() uuid.UUID { return h.id }

// Registered reports whether the instance currently holds at least one
// registration.
func (h *Hook) Registered() bool {
	return h.registry != nil && h.registry.RegistrationCount(h.self) > 0
}

// Destroyed reports whether a destroy pass reached the terminal state.
func (h *Hook) Destroyed() bool { return h.destroyed }

// Stash returns the value stored in the instance's state bag under key.
func (h *Hook) Stash(key Key) (any, bool) {
	v, ok := h.bag[key]
	return v, ok
}

// Export is the default symbol-import answer: it exposes the state bag by
// name. Concrete types shadow it for anything richer. The caller context is
// ignored here; it exists for implementations that discriminate importers.
func (h *Hook) Export(_ string, name string) (any, bool) {
	return h.Stash(Key(name))
}
