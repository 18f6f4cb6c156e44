// Package store defines the persistence gateway consumed by the pipeline
// and the query API: typed repositories with upsert-by-key and append
// semantics. The pipeline depends on these interfaces, never on a concrete
// storage engine. Implementations live in the mongostore and memstore
// subpackages.
package store

import (
	"context"

	"github.com/coastalgrand/roomstream/telemetry"
)

// RoomRepository holds the current derived state of every room.
type RoomRepository interface {
	// UpsertState applies a partial state delta keyed by (hotelId, number).
	// Fields absent from the delta (a nil HasMasterKey) are left untouched,
	// creating the room record when it does not exist yet. Returns the
	// resulting state.
	UpsertState(ctx context.Context, delta telemetry.RoomStateDelta) (telemetry.RoomState, error)

	// Get returns the state for one room, or ErrRecordNotFound.
	Get(ctx context.Context, hotelID, number string) (telemetry.RoomState, error)

	// ListByHotel returns all room states for a hotel ordered by number.
	ListByHotel(ctx context.Context, hotelID string) ([]telemetry.RoomState, error)
}

// DeviceRepository is the door-reader health registry, keyed by deviceId.
type DeviceRepository interface {
	Upsert(ctx context.Context, rec telemetry.DeviceRecord) error
}

// PresenceRepository tracks credentials currently inside rooms, keyed by
// (hotelId, card_uid, room).
type PresenceRepository interface {
	Upsert(ctx context.Context, rec telemetry.PresenceRecord) error
}

// AttendanceRepository is the append-only attendance audit log.
type AttendanceRepository interface {
	Append(ctx context.Context, rec telemetry.AttendanceRecord) error
	ListByHotel(ctx context.Context, hotelID string) ([]telemetry.AttendanceRecord, error)
}

// DenialRepository is the append-only denied-access log. Entries are the
// raw payload persisted verbatim.
type DenialRepository interface {
	Append(ctx context.Context, entry telemetry.DenialLogEntry) error
	ListByHotel(ctx context.Context, hotelID string) ([]telemetry.DenialLogEntry, error)
}

// ActivityRepository is the append-only activity feed.
type ActivityRepository interface {
	Append(ctx context.Context, entry telemetry.ActivityLogEntry) error
	ListByHotel(ctx context.Context, hotelID string) ([]telemetry.ActivityLogEntry, error)
}

// HotelRepository holds the static hotel records.
type HotelRepository interface {
	Upsert(ctx context.Context, hotel telemetry.Hotel) error
	Get(ctx context.Context, id string) (telemetry.Hotel, error)
	List(ctx context.Context) ([]telemetry.Hotel, error)
}

// AlertRepository is the security alert log. Alerts are written by the
// fleet-management tooling; this service only reads them.
type AlertRepository interface {
	ListByHotel(ctx context.Context, hotelID string) ([]telemetry.AlertRecord, error)
}

// UserRepository holds staff accounts, managed externally.
type UserRepository interface {
	ListByHotel(ctx context.Context, hotelID string) ([]telemetry.UserRecord, error)
}

// CardRepository holds issued key cards, managed externally.
type CardRepository interface {
	ListByHotel(ctx context.Context, hotelID string) ([]telemetry.CardRecord, error)
}

// Stores aggregates the repositories the pipeline and gateway consume.
type Stores struct {
	Rooms      RoomRepository
	Devices    DeviceRepository
	Presence   PresenceRepository
	Attendance AttendanceRepository
	Denials    DenialRepository
	Activity   ActivityRepository
	Hotels     HotelRepository
	Alerts     AlertRepository
	Users      UserRepository
	Cards      CardRepository
}
