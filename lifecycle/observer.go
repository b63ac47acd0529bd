package lifecycle

// DeferReason says why a candidate-destroy pass left the instance alive.
type DeferReason string

const (
	// DeferOutstandingRegistrations means the pass consumed one of several
	// outstanding registrations; a later pass may finalize.
	DeferOutstandingRegistrations DeferReason = "outstanding-registrations"

	// DeferLiveDependents means at least one live instance still declares a
	// dependency on the candidate; nothing was consumed.
	DeferLiveDependents DeferReason = "live-dependents"
)

// Observer receives lifecycle events as they happen.
//
// Implementations must be cheap and must not call back into the Registry;
// they exist so observability (metrics, audit trails) stays out of the entry
// table itself.
type Observer interface {
	// InstanceRegistered fires on every Register call. registrations is the
	// count after the call; since a tracked entry never drops below one, a
	// count of 1 always marks a fresh entry.
	InstanceRegistered(namespace string, registrations int)

	// InstanceUnregistered fires when an entry is removed from the table.
	InstanceUnregistered(namespace string)

	// EdgeDeclared fires once per recorded edge, including the replacement
	// edge of an overwrite.
	EdgeDeclared(userNamespace string, key Key)

	// EdgeReleased fires once per dropped edge, including the old edge of an
	// overwrite.
	EdgeReleased(userNamespace string, key Key)

	// InstanceFinalized fires after a destroy pass ran the finalizer and
	// removed the entry.
	InstanceFinalized(namespace string)

	// DestroyDeferred fires when a candidate-destroy pass declined to
	// finalize.
	DestroyDeferred(namespace string, reason DeferReason)
}

type nopObserver struct{}

func (nopObserver) InstanceRegistered(string, int)      {}
func (nopObserver) InstanceUnregistered(string)         {}
func (nopObserver) EdgeDeclared(string, Key)            {}
func (nopObserver) EdgeReleased(string, Key)            {}
func (nopObserver) InstanceFinalized(string)            {}
func (nopObserver) DestroyDeferred(string, DeferReason) {}
