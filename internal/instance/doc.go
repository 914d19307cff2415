// Package instance is the per-instance execution core: it owns the
// lifecycle, device binding, and request dispatch of runnable model
// instances. It is structured into small files by concern:
//
//   - signature.go: Signature identity and the pluggable equivalence rule
//     used to deduplicate instance declarations during grouping.
//   - thread.go: backendThread, the OS-locked serving loop that serializes
//     execution for the instances attached to one device.
//   - instance.go: Instance lifecycle (Initialize/WarmUp) and dispatch
//     (Schedule/Execute), plus accessors consumed by the owning model.
//   - warmup.go: synthetic warm-up batch construction and its placeholder
//     buffers.
//   - set.go: Model, the instance-set builder (SetInstances) and the
//     thread-group registry.
//   - errors.go: error types and helpers (IsConfigError, IsResourceError,
//     IsLifecycleError).
//   - events.go / eventpub_memory.go: lifecycle event publishing.
//   - metrics.go: per-instance prometheus reporter.
//
// Scheduling model: one OS thread per backendThread; requests scheduled to
// the same instance execute FIFO, instances sharing a thread are served
// round-robin. Steady-state execution failures travel through each
// request's response, never as returned errors.
package instance
