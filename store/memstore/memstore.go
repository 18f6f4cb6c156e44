// Package memstore provides the in-memory persistence gateway used in
// development mode and in tests. All repositories are safe for concurrent
// use; upserts are last-write-wins with no ordering guarantee, matching
// the pipeline's documented concurrency model.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/coastalgrand/roomstream/errors"
	"github.com/coastalgrand/roomstream/store"
	"github.com/coastalgrand/roomstream/telemetry"
)

// Store holds all in-memory collections. Repository views over it are
// obtained from Stores().
type Store struct {
	mu sync.RWMutex

	rooms      map[roomKey]telemetry.RoomState
	devices    map[string]telemetry.DeviceRecord
	presence   map[presenceKey]telemetry.PresenceRecord
	attendance []telemetry.AttendanceRecord
	denials    []telemetry.DenialLogEntry
	activity   []telemetry.ActivityLogEntry
	hotels     map[string]telemetry.Hotel
	alerts     []telemetry.AlertRecord
	users      []telemetry.UserRecord
	cards      []telemetry.CardRecord
}

type roomKey struct {
	hotelID string
	number  string
}

type presenceKey struct {
	hotelID string
	cardUID string
	room    string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rooms:    make(map[roomKey]telemetry.RoomState),
		devices:  make(map[string]telemetry.DeviceRecord),
		presence: make(map[presenceKey]telemetry.PresenceRecord),
		hotels:   make(map[string]telemetry.Hotel),
	}
}

// Stores returns the aggregate repository view backed by this store.
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Rooms:      &roomRepo{s},
		Devices:    &deviceRepo{s},
		Presence:   &presenceRepo{s},
		Attendance: &attendanceRepo{s},
		Denials:    &denialRepo{s},
		Activity:   &activityRepo{s},
		Hotels:     &hotelRepo{s},
		Alerts:     &alertRepo{s},
		Users:      &userRepo{s},
		Cards:      &cardRepo{s},
	}
}

// roomRepo implements store.RoomRepository.
type roomRepo struct{ s *Store }

func (r *roomRepo) UpsertState(_ context.Context, delta telemetry.RoomStateDelta) (telemetry.RoomState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := roomKey{hotelID: delta.HotelID, number: delta.RoomNum}
	next := delta.Apply(r.s.rooms[key])
	r.s.rooms[key] = next
	return next, nil
}

func (r *roomRepo) Get(_ context.Context, hotelID, number string) (telemetry.RoomState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	state, ok := r.s.rooms[roomKey{hotelID: hotelID, number: number}]
	if !ok {
		return telemetry.RoomState{}, errors.ErrRecordNotFound
	}
	return state, nil
}

func (r *roomRepo) ListByHotel(_ context.Context, hotelID string) ([]telemetry.RoomState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []telemetry.RoomState
	for key, state := range r.s.rooms {
		if key.hotelID == hotelID {
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// deviceRepo implements store.DeviceRepository.
type deviceRepo struct{ s *Store }

func (r *deviceRepo) Upsert(_ context.Context, rec telemetry.DeviceRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.devices[rec.DeviceID] = rec
	return nil
}

// presenceRepo implements store.PresenceRepository.
type presenceRepo struct{ s *Store }

func (r *presenceRepo) Upsert(_ context.Context, rec telemetry.PresenceRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.presence[presenceKey{hotelID: rec.HotelID, cardUID: rec.CardUID, room: rec.Room}] = rec
	return nil
}

// attendanceRepo implements store.AttendanceRepository.
type attendanceRepo struct{ s *Store }

func (r *attendanceRepo) Append(_ context.Context, rec telemetry.AttendanceRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.attendance = append(r.s.attendance, rec)
	return nil
}

func (r *attendanceRepo) ListByHotel(_ context.Context, hotelID string) ([]telemetry.AttendanceRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []telemetry.AttendanceRecord
	for i := len(r.s.attendance) - 1; i >= 0; i-- {
		if r.s.attendance[i].HotelID == hotelID {
			out = append(out, r.s.attendance[i])
		}
	}
	return out, nil
}

// denialRepo implements store.DenialRepository.
type denialRepo struct{ s *Store }

func (r *denialRepo) Append(_ context.Context, entry telemetry.DenialLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.denials = append(r.s.denials, entry)
	return nil
}

func (r *denialRepo) ListByHotel(_ context.Context, hotelID string) ([]telemetry.DenialLogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []telemetry.DenialLogEntry
	for i := len(r.s.denials) - 1; i >= 0; i-- {
		if id, _ := r.s.denials[i]["hotelId"].(string); id == hotelID {
			out = append(out, r.s.denials[i])
		}
	}
	return out, nil
}

// activityRepo implements store.ActivityRepository.
type activityRepo struct{ s *Store }

func (r *activityRepo) Append(_ context.Context, entry telemetry.ActivityLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.activity = append(r.s.activity, entry)
	return nil
}

func (r *activityRepo) ListByHotel(_ context.Context, hotelID string) ([]telemetry.ActivityLogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []telemetry.ActivityLogEntry
	for i := len(r.s.activity) - 1; i >= 0; i-- {
		if r.s.activity[i].HotelID == hotelID {
			out = append(out, r.s.activity[i])
		}
	}
	return out, nil
}

// hotelRepo implements store.HotelRepository.
type hotelRepo struct{ s *Store }

func (r *hotelRepo) Upsert(_ context.Context, hotel telemetry.Hotel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.hotels[hotel.ID] = hotel
	return nil
}

func (r *hotelRepo) Get(_ context.Context, id string) (telemetry.Hotel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	hotel, ok := r.s.hotels[id]
	if !ok {
		return telemetry.Hotel{}, errors.ErrRecordNotFound
	}
	return hotel, nil
}

func (r *hotelRepo) List(_ context.Context) ([]telemetry.Hotel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]telemetry.Hotel, 0, len(r.s.hotels))
	for _, hotel := range r.s.hotels {
		out = append(out, hotel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// alertRepo implements store.AlertRepository.
type alertRepo struct{ s *Store }

func (r *alertRepo) ListByHotel(_ context.Context, hotelID string) ([]telemetry.AlertRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []telemetry.AlertRecord
	for i := len(r.s.alerts) - 1; i >= 0; i-- {
		if r.s.alerts[i].HotelID == hotelID {
			out = append(out, r.s.alerts[i])
		}
	}
	return out, nil
}

// userRepo implements store.UserRepository.
type userRepo struct{ s *Store }

func (r *userRepo) ListByHotel(_ context.Context, hotelID string) ([]telemetry.UserRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []telemetry.UserRecord
	for _, u := range r.s.users {
		if u.HotelID == hotelID {
			out = append(out, u)
		}
	}
	return out, nil
}

// cardRepo implements store.CardRepository.
type cardRepo struct{ s *Store }

func (r *cardRepo) ListByHotel(_ context.Context, hotelID string) ([]telemetry.CardRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []telemetry.CardRecord
	for _, c := range r.s.cards {
		if c.HotelID == hotelID {
			out = append(out, c)
		}
	}
	return out, nil
}

// AddAlert stores a security alert. The pipeline never writes alerts;
// this stands in for the external tooling in development and tests.
func (s *Store) AddAlert(rec telemetry.AlertRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, rec)
}

// AddUser stores a staff account record.
func (s *Store) AddUser(rec telemetry.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, rec)
}

// AddCard stores an issued key card record.
func (s *Store) AddCard(rec telemetry.CardRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards = append(s.cards, rec)
}

// Device returns the stored record for a device id. Test helper.
func (s *Store) Device(deviceID string) (telemetry.DeviceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.devices[deviceID]
	return rec, ok
}

// Presence returns the stored presence record for a credential in a room.
// Test helper.
func (s *Store) Presence(hotelID, cardUID, room string) (telemetry.PresenceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.presence[presenceKey{hotelID: hotelID, cardUID: cardUID, room: room}]
	return rec, ok
}

// Compile-time interface checks
var (
	_ store.RoomRepository       = (*roomRepo)(nil)
	_ store.DeviceRepository     = (*deviceRepo)(nil)
	_ store.PresenceRepository   = (*presenceRepo)(nil)
	_ store.AttendanceRepository = (*attendanceRepo)(nil)
	_ store.DenialRepository     = (*denialRepo)(nil)
	_ store.ActivityRepository   = (*activityRepo)(nil)
	_ store.HotelRepository      = (*hotelRepo)(nil)
	_ store.AlertRepository      = (*alertRepo)(nil)
	_ store.UserRepository       = (*userRepo)(nil)
	_ store.CardRepository       = (*cardRepo)(nil)
)
