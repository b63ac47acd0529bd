package lifecycle

import (
	"errors"
	"strconv"
)

var (
	// ErrNilRegistry is returned when Construct is asked to bind an instance
	// to a nil Registry.
	ErrNilRegistry = errors.New("lifecycle: nil registry")

	// ErrNilInstance is returned when an operation is applied to a nil
	// instance, or a Hook that was never bound through Construct.
	ErrNilInstance = errors.New("lifecycle: nil instance")

	// ErrUnregisteredUser is returned by Declare when the user side of the
	// requested edges has no live registration. Edges require both endpoints
	// to be registered at creation time.
	ErrUnregisteredUser = errors.New("lifecycle: dependency user has no live registration")

	// ErrInitializePanic wraps a panic recovered from a user initializer so
	// a misbehaving hook body cannot unwind through the construction path.
	ErrInitializePanic = errors.New("lifecycle: panic during Initialize")

	// ErrFinalizePanic wraps a panic recovered from a user finalizer. The
	// destroy pass still releases edges and unregisters afterwards.
	ErrFinalizePanic = errors.New("lifecycle: panic during Finalize")

	// ErrFinalized is returned by Construct when the instance already went
	// through the terminal destroy path. Finalization is one-way; a retired
	// instance cannot re-enter the registry.
	ErrFinalized = errors.New("lifecycle: instance already finalized")
)

// UnregisteredTargetError is returned (per key, joined) by Declare when a
// dependency target has no live registration. Recording the edge anyway
// would leave it dangling, so the key is rejected outright.
type UnregisteredTargetError struct {
	// Key is the local slot name the user asked to bind.
	Key Key

	// Namespace is the target's diagnostic type tag, empty when the target
	// itself was nil.
	Namespace string
}

// Error implements the error interface.
func (e UnregisteredTargetError) Error() string {
	// Example: lifecycle: dependency target "widget" for key "db" has no live registration
	return "lifecycle: dependency target " + strconv.Quote(e.Namespace) +
		" for key " + strconv.Quote(string(e.Key)) + " has no live registration"
}
