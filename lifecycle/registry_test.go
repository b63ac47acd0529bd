package lifecycle

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probe is a minimal trackable instance for registry-level tests.
type probe struct{ Hook }

func newProbe(ns string) *probe {
	p := &probe{}
	p.namespace = ns
	return p
}

// recObserver records every event in arrival order.
type recObserver struct {
	registered   []int
	unregistered []string
	declared     []Key
	released     []Key
	finalized    []string
	deferred     []DeferReason
}

func (o *recObserver) InstanceRegistered(_ string, n int) { o.registered = append(o.registered, n) }
func (o *recObserver) InstanceUnregistered(ns string) {
	o.unregistered = append(o.unregistered, ns)
}
func (o *recObserver) EdgeDeclared(_ string, key Key)  { o.declared = append(o.declared, key) }
func (o *recObserver) EdgeReleased(_ string, key Key)  { o.released = append(o.released, key) }
func (o *recObserver) InstanceFinalized(ns string)     { o.finalized = append(o.finalized, ns) }
func (o *recObserver) DestroyDeferred(_ string, r DeferReason) {
	o.deferred = append(o.deferred, r)
}

//
// -----------------------------------------------------------------------------
// NewRegistry / Register / Deregister
// -----------------------------------------------------------------------------

// TestNewRegistry_Empty verifies NewRegistry initializes an empty entry table.
func TestNewRegistry_Empty(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NotNil(t, r)
	require.NotNil(t, r.entries)
	assert.Equal(t, 0, r.Len())
}

// TestRegister_CreatesEntryAndIncrements verifies the first Register creates
// the entry and later calls only bump the registration count.
func TestRegister_CreatesEntryAndIncrements(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	p := newProbe("probe")

	assert.Equal(t, 0, r.RegistrationCount(p))

	r.Register(p)
	assert.Equal(t, 1, r.RegistrationCount(p))
	assert.Equal(t, 1, r.Len())

	r.Register(p)
	assert.Equal(t, 2, r.RegistrationCount(p))
	assert.Equal(t, 1, r.Len(), "re-registration must not add entries")
}

// TestRegister_NilInstance_NoOp verifies Register tolerates nil, both the
// plain interface and a typed nil pointer hiding inside one.
func TestRegister_NilInstance_NoOp(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(nil)
	r.Register((*probe)(nil))
	assert.Equal(t, 0, r.Len())
}

// TestDeregister_ConsumesOneNeverRemoves verifies Deregister decrements but
// leaves the entry in place with at least one registration; only Unregister
// retires the last one.
func TestDeregister_ConsumesOneNeverRemoves(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	p := newProbe("probe")

	r.Register(p)
	r.Register(p)

	r.Deregister(p)
	assert.Equal(t, 1, r.RegistrationCount(p))
	assert.Equal(t, 1, r.Len())

	// the last registration sticks until Unregister
	r.Deregister(p)
	assert.Equal(t, 1, r.RegistrationCount(p))
	assert.Equal(t, 1, r.Len())

	// no-op for untracked instances and nil
	r.Deregister(newProbe("other"))
	r.Deregister(nil)
	assert.Equal(t, 1, r.Len())
}

//
// -----------------------------------------------------------------------------
// Declare
// -----------------------------------------------------------------------------

// TestDeclare_NilAndUnregisteredUser verifies the user side must be live.
func TestDeclare_NilAndUnregisteredUser(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	target := newProbe("target")
	r.Register(target)

	err := r.Declare(nil, map[Key]Instance{"k": target})
	require.ErrorIs(t, err, ErrNilInstance)

	err = r.Declare(newProbe("ghost"), map[Key]Instance{"k": target})
	require.ErrorIs(t, err, ErrUnregisteredUser)
}

// TestDeclare_RecordsEdgesAndCounts verifies edges and dependent counts for
// the plain success path.
func TestDeclare_RecordsEdgesAndCounts(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	user := newProbe("user")
	a := newProbe("a")
	b := newProbe("b")
	r.Register(user)
	r.Register(a)
	r.Register(b)

	require.NoError(t, r.Declare(user, map[Key]Instance{"a": a, "b": b}))

	assert.Equal(t, 1, r.Dependents(a))
	assert.Equal(t, 1, r.Dependents(b))
	assert.Equal(t, 0, r.Dependents(user))

	got, ok := r.Dependency(user, "a")
	require.True(t, ok)
	assert.Same(t, a, got)
}

// TestDeclare_UnregisteredTarget_PerKeyIndependence verifies a bad key is
// rejected with a typed error while the good keys in the same call still
// take effect.
func TestDeclare_UnregisteredTarget_PerKeyIndependence(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	user := newProbe("user")
	good := newProbe("good")
	ghost := newProbe("ghost") // never registered
	r.Register(user)
	r.Register(good)

	err := r.Declare(user, map[Key]Instance{"good": good, "bad": ghost, "nil": nil})
	require.Error(t, err)

	var ut UnregisteredTargetError
	require.True(t, errors.As(err, &ut))

	// good edge exists despite the rejected keys
	assert.Equal(t, 1, r.Dependents(good))
	_, ok := r.Dependency(user, "good")
	assert.True(t, ok)
	_, ok = r.Dependency(user, "bad")
	assert.False(t, ok)
	_, ok = r.Dependency(user, "nil")
	assert.False(t, ok)
}

// TestDeclare_TypedNilTarget verifies a typed nil pointer wrapped in the
// Instance interface is rejected like a plain nil target instead of being
// dereferenced.
func TestDeclare_TypedNilTarget(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	user := newProbe("user")
	r.Register(user)

	err := r.Declare(user, map[Key]Instance{"hollow": (*probe)(nil)})
	require.Error(t, err)

	var ut UnregisteredTargetError
	require.True(t, errors.As(err, &ut))
	assert.Equal(t, Key("hollow"), ut.Key)
	assert.Empty(t, ut.Namespace)

	_, ok := r.Dependency(user, "hollow")
	assert.False(t, ok)
}

// TestDeclare_OverwriteReconcilesCounts verifies re-declaring a key releases
// the old target's dependent count before charging the new one.
func TestDeclare_OverwriteReconcilesCounts(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	user := newProbe("user")
	first := newProbe("first")
	second := newProbe("second")
	r.Register(user)
	r.Register(first)
	r.Register(second)

	require.NoError(t, r.Declare(user, map[Key]Instance{"slot": first}))
	require.NoError(t, r.Declare(user, map[Key]Instance{"slot": second}))

	assert.Equal(t, 0, r.Dependents(first), "old edge released on overwrite")
	assert.Equal(t, 1, r.Dependents(second))

	got, ok := r.Dependency(user, "slot")
	require.True(t, ok)
	assert.Same(t, second, got)

	// re-declaring the same target never double-counts
	require.NoError(t, r.Declare(user, map[Key]Instance{"slot": second}))
	assert.Equal(t, 1, r.Dependents(second))
}

//
// -----------------------------------------------------------------------------
// Release / Unregister
// -----------------------------------------------------------------------------

// TestRelease_SpecificAndAll verifies keyed release, release-all, and the
// no-op cases for missing users and edges.
func TestRelease_SpecificAndAll(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	user := newProbe("user")
	a := newProbe("a")
	b := newProbe("b")
	r.Register(user)
	r.Register(a)
	r.Register(b)
	require.NoError(t, r.Declare(user, map[Key]Instance{"a": a, "b": b}))

	r.Release(user, "a")
	assert.Equal(t, 0, r.Dependents(a))
	assert.Equal(t, 1, r.Dependents(b))
	_, ok := r.Dependency(user, "a")
	assert.False(t, ok)

	// releasing a released edge is a no-op
	r.Release(user, "a")
	assert.Equal(t, 0, r.Dependents(a))

	// no keys releases everything left
	r.Release(user)
	assert.Equal(t, 0, r.Dependents(b))

	// untracked user and nil are no-ops
	r.Release(newProbe("ghost"), "x")
	r.Release(nil)
}

// TestUnregister_RemovesEntryRegardlessOfCount verifies removal ignores the
// registration count and is idempotent.
func TestUnregister_RemovesEntryRegardlessOfCount(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	p := newProbe("probe")
	r.Register(p)
	r.Register(p)

	r.Unregister(p)
	assert.Equal(t, 0, r.RegistrationCount(p))
	assert.Equal(t, 0, r.Len())

	r.Unregister(p)
	r.Unregister(nil)
	assert.Equal(t, 0, r.Len())
}

//
// -----------------------------------------------------------------------------
// Observer / logging
// -----------------------------------------------------------------------------

// TestObserver_SeesEveryMutation verifies the observer event stream for a
// register, declare, overwrite, release, unregister sequence.
func TestObserver_SeesEveryMutation(t *testing.T) {
	t.Parallel()

	obs := &recObserver{}
	r := NewRegistry(WithObserver(obs))

	user := newProbe("user")
	a := newProbe("a")
	b := newProbe("b")
	r.Register(user)
	r.Register(a)
	r.Register(b)
	r.Register(user) // re-registration reports count 2

	assert.Equal(t, []int{1, 1, 1, 2}, obs.registered)

	require.NoError(t, r.Declare(user, map[Key]Instance{"slot": a}))
	require.NoError(t, r.Declare(user, map[Key]Instance{"slot": b}))
	assert.Equal(t, []Key{"slot", "slot"}, obs.declared)
	assert.Equal(t, []Key{"slot"}, obs.released, "overwrite releases the old edge")

	r.Release(user)
	assert.Equal(t, []Key{"slot", "slot"}, obs.released)

	r.Unregister(user)
	assert.Equal(t, []string{"user"}, obs.unregistered)
}

// TestWithLogger_MutationsAreLogged verifies registry mutations reach the
// attached logger.
func TestWithLogger_MutationsAreLogged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	r := NewRegistry(WithLogger(log))

	p := newProbe("probe")
	r.Register(p)
	r.Unregister(p)

	out := buf.String()
	assert.Contains(t, out, "instance registered")
	assert.Contains(t, out, "instance unregistered")
	assert.Contains(t, out, `"namespace":"probe"`)
}
