// Package health turns per-component health reports into an aggregate
// system status. The gateway's healthz endpoint builds its response from
// a Checker over the running components.
package health
