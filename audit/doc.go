// Package audit is the security event sink: the event model, the stable
// event type names, and the sinks that record events.
//
// # Components
//
//   - [Sink]: interface for event consumers (slog, JSON writer, channel,
//     memory, fan-out, no-op).
//   - [Emitter]: the capability handed to lockout, reset and the engine. It
//     stamps events and never propagates sink failures.
//   - [Defer] / [Pending]: holds events from one read-modify-write until the
//     write is persisted, so a retried or failed write publishes nothing.
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full
//     semantics.
//
// # Architecture boundaries
//
// This package owns event delivery. It does NOT decide which events to emit;
// that belongs to the components that change account state.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Hold process-wide state. Every sink is passed explicitly.
package audit
