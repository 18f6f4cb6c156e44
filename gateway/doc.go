// Package gateway serves the HTTP query API consumed by the dashboard:
// hotel records, current room state, and the attendance, denial and
// activity logs. Reads come straight from the persistence gateway except
// room listings, which go through the cache the pipeline invalidates on
// every room upsert.
package gateway
