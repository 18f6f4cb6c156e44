// Package broadcast provides the WebSocket fan-out dispatcher that pushes
// room and activity updates to connected dashboard clients.
//
// Delivery is at-most-once: Publish writes the current message to every
// open connection and drops clients whose writes fail. There is no
// queuing, no replay and no per-client filtering; clients subscribe to
// everything and filter on the channel name in the envelope.
//
// # Wire Protocol
//
// Every message is a JSON envelope:
//
//	{"event": "roomUpdate:3", "data": {...}}
//
// The event field carries the channel name (roomUpdate:{hotelId} or
// activityUpdate:{hotelId}); data carries the payload the pipeline
// produced. Frames sent by clients are read and discarded.
package broadcast
