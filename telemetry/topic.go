package telemetry

import (
	"strings"

	"github.com/coastalgrand/roomstream/errors"
)

// TopicPrefix scopes which messages the pipeline routes. Topics outside
// this namespace are ignored silently.
const TopicPrefix = "campus/room/"

// WildcardTopic is the subscription pattern both ingress adapters use.
const WildcardTopic = "campus/room/+/+/+/+"

// Topic event-type segments published by the device fleet
const (
	segmentAttendances  = "attendances"
	segmentDeniedAccess = "denied_access"
)

// Route is the location and event type extracted from one topic.
type Route struct {
	Building    string
	FloorNumber string
	RoomNumber  string
	Event       EventType
	// RawEvent keeps the topic segment for logging unrecognized events
	RawEvent string
}

// Location returns the LocationKey for the route. HotelID is the floor
// segment; see LocationKey for why.
func (r Route) Location() LocationKey {
	return LocationKey{
		HotelID:     r.FloorNumber,
		Building:    r.Building,
		FloorNumber: r.FloorNumber,
		RoomNumber:  r.RoomNumber,
	}
}

// Routed reports whether the topic belongs to the pipeline's namespace.
// Non-matching topics are not an error: the caller skips them silently.
func Routed(topic string) bool {
	return strings.HasPrefix(topic, TopicPrefix)
}

// ParseTopic extracts the building, floor, room, and event segments from a
// topic of the form campus/room/{building}/{floor}/{room}/{event}.
// Returns ErrMalformedTopic when the floor, room, or event segment is
// absent or empty; the message is then logged and dropped by the caller.
func ParseTopic(topic string) (Route, error) {
	if !Routed(topic) {
		return Route{}, errors.WrapInvalid(errors.ErrMalformedTopic, "TopicRouter", "ParseTopic",
			"topic outside campus/room namespace: "+topic)
	}

	parts := strings.Split(topic, "/")
	if len(parts) < 6 {
		return Route{}, errors.WrapInvalid(errors.ErrMalformedTopic, "TopicRouter", "ParseTopic",
			"missing segments in topic: "+topic)
	}

	building, floor, room, event := parts[2], parts[3], parts[4], parts[5]
	if floor == "" || room == "" || event == "" {
		return Route{}, errors.WrapInvalid(errors.ErrMalformedTopic, "TopicRouter", "ParseTopic",
			"empty segment in topic: "+topic)
	}

	route := Route{
		Building:    building,
		FloorNumber: floor,
		RoomNumber:  room,
		RawEvent:    event,
	}

	switch event {
	case segmentAttendances:
		route.Event = EventAttendance
	case segmentDeniedAccess:
		route.Event = EventDeniedAccess
	default:
		route.Event = EventUnknown
	}

	return route, nil
}
