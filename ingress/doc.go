// Package ingress provides the two MQTT ingress adapters that feed the
// processing pipeline: a client of the remote production broker and an
// embedded broker for local development.
//
// Both adapters deliver raw messages to the same Handler; nothing about a
// message records which broker carried it, and any behavioral divergence
// between the two paths is a defect. Subscription is a single wildcard
// over the door-reader topic space at QoS 0, matching the at-most-once
// processing contract.
package ingress
