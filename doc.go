// Package olm is a dependency-tracked object lifecycle manager.
//
// The host object model this was built for reclaims storage by reference
// counting, which never detects reference cycles: two instances pointing at
// each other are either never finalized, or finalized while a third live
// instance still uses one of them. olm answers the one question that matters
// at reclamation time (may this instance's finalizer run now?) by keeping
// explicit, instance-declared dependency edges instead of scanning object
// graphs.
//
// The repository is intentionally small. See subpackages:
//
//   - lifecycle: the core. A process-wide Registry of registration counts
//     and named dependency edges, the per-instance Hook protocol
//     (construct, uses/used, candidate-destroy), and a Catalog for named
//     construction.
//   - lifecycle/metrics: a prometheus Observer for the registry's events.
//   - cmd/olmctl: a replay tool that drives the full protocol from a TOML
//     scenario and reports finalize order and final registry state.
//
// Wiring stays explicit: instances declare what they use, release what they
// no longer use, and the Registry only maintains ground truth counts. There
// is no reflection container and no background collection pass.
package olm
