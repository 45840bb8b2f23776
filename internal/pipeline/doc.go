// Package pipeline holds the pure segment state machine. Decide maps the
// record's current status and an incoming event to the next status plus a
// set of declarative side effects; the orchestrator and reconciler carry the
// effects out against the store and queue.
package pipeline
