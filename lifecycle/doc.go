// Package lifecycle decides when it is safe to finalize live object
// instances that may hold cyclic references to each other.
//
// Two pieces compose the core:
//
//   - Registry: the single shared authority. For every currently-registered
//     instance it holds a registration count plus the named dependency edges
//     the instance declared (user side) and the count of edges pointing at
//     it (used side). The Registry only mutates and answers count queries;
//     it never decides.
//
//   - Hook: the per-instance protocol, embedded by concrete instance types.
//     Construct registers and runs the user initializer; Uses/Used declare
//     and release named dependencies; Destroy runs one candidate-destroy
//     pass and is the only place the finalize decision is made.
//
// A candidate-destroy pass finalizes only when the instance holds its last
// outstanding registration and no other live instance depends on it. The
// finalizer runs strictly before the instance's own dependencies are
// released, and strictly before its registry entry is removed, so a
// finalizer can still reach everything the instance declared it uses.
//
// Cycles are resolved by explicit release ordering rather than tracing: two
// instances that depend on each other each call Used for the slot holding
// the other, after which both candidate-destroy passes succeed.
//
// The package is single-threaded by contract. Every operation is a short
// synchronous bookkeeping step invoked from the one logical thread that owns
// the instance graph; callers on multi-threaded hosts must serialize access
// themselves.
//
// Import
//
//	"github.com/sghaida/olm/lifecycle"
package lifecycle
