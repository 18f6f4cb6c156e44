// Package engine implements the room state engine and the processing
// pipeline behind both MQTT ingresses.
//
// # Overview
//
// Every inbound telemetry message follows the same path regardless of
// which broker delivered it: the topic is routed, the payload is
// normalized into a CanonicalEvent, the event is folded through the pure
// Transition function, and the resulting records are persisted and
// broadcast. The pipeline owns a worker pool so ingress callbacks never
// block on persistence.
//
// # Processing Semantics
//
// Processing is at-most-once: a message that fails routing or
// normalization is logged and dropped, never retried. Persistence calls
// for one event are independent of each other; a failed device upsert
// does not prevent the attendance append or the room broadcast. There is
// no per-room locking, so concurrent events for the same room resolve
// last-write-wins.
package engine
