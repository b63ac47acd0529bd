package lifecycle

import (
	"errors"
	"sort"

	"github.com/rs/zerolog"
)

// Key identifies a named dependency slot on the user side of an edge.
//
// Keys are typically defined as package-level constants to avoid typos.
//
// Example:
//
//	const (
//	  KeyStore  lifecycle.Key = "store"
//	  KeyParent lifecycle.Key = "parent"
//	)
type Key string

// entry is one Registration: the Registry's bookkeeping for one Instance.
type entry struct {
	// registrations counts outstanding Register calls not yet consumed by a
	// deferred destroy pass. Distinct from dependents: layered construction
	// paths register more than once, and that must stay distinguishable
	// from "still in use by someone else".
	registrations int

	// dependents counts edges where this instance is the used side.
	dependents int

	// dependencies holds the edges where this instance is the user side,
	// keyed by the local name under which the user stores the target. At
	// most one current target per key.
	dependencies map[Key]Instance
}

// Registry is the process-wide authority over instance registrations and
// dependency edges.
//
// It is deliberately decision-free: it records, releases and counts, and
// trusts the Hook to decide when finalization is allowed. All operations are
// synchronous bookkeeping steps with no internal locking; the owner of the
// instance graph serializes access (see the package comment).
type Registry struct {
	entries map[Instance]*entry
	log     zerolog.Logger
	obs     Observer
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger attaches a zerolog logger; every mutation is logged at debug
// level. The default is zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithObserver attaches an Observer for lifecycle events.
func WithObserver(obs Observer) Option {
	return func(r *Registry) {
		if obs != nil {
			r.obs = obs
		}
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[Instance]*entry),
		log:     zerolog.Nop(),
		obs:     nopObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register creates the instance's entry, or increments its registration
// count when the instance is already tracked. It never fails; a nil
// instance, typed or not, is ignored.
func (r *Registry) Register(inst Instance) {
	if isNil(inst) {
		return
	}
	e, ok := r.entries[inst]
	if !ok {
		e = &entry{dependencies: make(map[Key]Instance)}
		r.entries[inst] = e
	}
	e.registrations++

	h := inst.hook()
	r.log.Debug().
		Str("namespace", h.namespace).
		Stringer("instance", h.id).
		Int("registrations", e.registrations).
		Msg("instance registered")
	r.obs.InstanceRegistered(h.namespace, e.registrations)
}

// Deregister consumes one outstanding registration. It never removes the
// entry (only Unregister does), and the last registration can only be
// retired together with the entry, so a tracked instance always counts at
// least one. Untracked instances and a count already at one are no-ops.
func (r *Registry) Deregister(inst Instance) {
	if inst == nil {
		return
	}
	e, ok := r.entries[inst]
	if !ok || e.registrations <= 1 {
		return
	}
	e.registrations--

	h := inst.hook()
	r.log.Debug().
		Str("namespace", h.namespace).
		Stringer("instance", h.id).
		Int("registrations", e.registrations).
		Msg("registration consumed")
}

// RegistrationCount reports how many outstanding registrations exist for the
// instance: 0 if it was never registered or already fully unregistered.
func (r *Registry) RegistrationCount(inst Instance) int {
	if inst == nil {
		return 0
	}
	e, ok := r.entries[inst]
	if !ok {
		return 0
	}
	return e.registrations
}

// Dependents reports how many other instances currently declare a dependency
// on inst; 0 when untracked.
func (r *Registry) Dependents(inst Instance) int {
	if inst == nil {
		return 0
	}
	e, ok := r.entries[inst]
	if !ok {
		return 0
	}
	return e.dependents
}

// Len reports the number of live entries.
func (r *Registry) Len() int { return len(r.entries) }

// Declare records one edge per (key, target) pair with user as the user
// side.
//
// Both endpoints must hold live registrations. Keys are processed
// independently: a target with no live registration yields an
// UnregisteredTargetError for that key (all such errors are joined) while
// the remaining keys still take effect. Re-declaring an existing key
// overwrites the edge, releasing the old target's dependent count before
// charging the new one, so counts are never doubled.
func (r *Registry) Declare(user Instance, deps map[Key]Instance) error {
	if user == nil {
		return ErrNilInstance
	}
	ue, ok := r.entries[user]
	if !ok {
		return ErrUnregisteredUser
	}
	uh := user.hook()

	// Deterministic order keeps logs and joined errors stable.
	keys := make([]Key, 0, len(deps))
	for k := range deps {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var errs []error
	for _, key := range keys {
		target := deps[key]
		if isNil(target) {
			errs = append(errs, UnregisteredTargetError{Key: key})
			continue
		}
		te, live := r.entries[target]
		if !live {
			errs = append(errs, UnregisteredTargetError{Key: key, Namespace: target.hook().namespace})
			continue
		}

		if old, exists := ue.dependencies[key]; exists {
			if oe, tracked := r.entries[old]; tracked {
				oe.dependents--
			}
			r.obs.EdgeReleased(uh.namespace, key)
		}
		ue.dependencies[key] = target
		te.dependents++

		r.log.Debug().
			Str("user", uh.namespace).
			Str("key", string(key)).
			Str("target", target.hook().namespace).
			Int("target_dependents", te.dependents).
			Msg("dependency declared")
		r.obs.EdgeDeclared(uh.namespace, key)
	}
	return errors.Join(errs...)
}

// Dependency returns the current target of the (user, key) edge, if any.
func (r *Registry) Dependency(user Instance, key Key) (Instance, bool) {
	if user == nil {
		return nil, false
	}
	e, ok := r.entries[user]
	if !ok {
		return nil, false
	}
	t, ok := e.dependencies[key]
	return t, ok
}

// Release drops edges where user is the user side, decrementing each
// target's dependent count. With no keys it drops every edge the user
// holds. Missing users and missing edges are no-ops.
func (r *Registry) Release(user Instance, keys ...Key) {
	if user == nil {
		return
	}
	e, ok := r.entries[user]
	if !ok {
		return
	}
	if len(keys) == 0 {
		keys = make([]Key, 0, len(e.dependencies))
		for k := range e.dependencies {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	}

	uh := user.hook()
	for _, key := range keys {
		target, held := e.dependencies[key]
		if !held {
			continue
		}
		delete(e.dependencies, key)
		if te, tracked := r.entries[target]; tracked {
			te.dependents--
		}

		r.log.Debug().
			Str("user", uh.namespace).
			Str("key", string(key)).
			Str("target", target.hook().namespace).
			Msg("dependency released")
		r.obs.EdgeReleased(uh.namespace, key)
	}
}

// Unregister removes the instance's entry entirely, regardless of its
// registration count. The caller is trusted to have verified that the
// dependent count is zero and that the instance's own edges were released;
// the decision of when that holds belongs to the Hook, not the Registry.
// Unregistering an untracked instance is a no-op.
func (r *Registry) Unregister(inst Instance) {
	if inst == nil {
		return
	}
	if _, ok := r.entries[inst]; !ok {
		return
	}
	delete(r.entries, inst)

	h := inst.hook()
	r.log.Debug().
		Str("namespace", h.namespace).
		Stringer("instance", h.id).
		Msg("instance unregistered")
	r.obs.InstanceUnregistered(h.namespace)
}
