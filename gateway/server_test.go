package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastalgrand/roomstream/cache"
	"github.com/coastalgrand/roomstream/component"
	"github.com/coastalgrand/roomstream/store"
	"github.com/coastalgrand/roomstream/store/memstore"
	"github.com/coastalgrand/roomstream/telemetry"
)

func strPtr(s string) *string { return &s }

func newTestServer(t *testing.T) (*Server, store.Stores, *RoomCache) {
	t.Helper()

	mem := memstore.New()
	stores := mem.Stores()
	backend := cache.NewMemoryCache()
	t.Cleanup(func() { _ = backend.Close() })
	rooms := NewRoomCache(backend, time.Minute)

	srv, err := NewServer(Config{Addr: "127.0.0.1:0"}, stores, rooms, nil, &component.Dependencies{})
	require.NoError(t, err)
	return srv, stores, rooms
}

func doRequest(t *testing.T, srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)
	return rec
}

func seedHotel(t *testing.T, stores store.Stores, id, name string) {
	t.Helper()
	require.NoError(t, stores.Hotels.Upsert(context.Background(), telemetry.Hotel{ID: id, Name: name}))
}

func seedRoom(t *testing.T, stores store.Stores, hotelID, number string, status telemetry.RoomStatus) {
	t.Helper()
	delta := telemetry.RoomStateDelta{
		HotelID: hotelID, RoomNum: number,
		Status: status, PowerStatus: telemetry.PowerOff,
	}
	if status != telemetry.StatusVacant {
		delta.OccupantType = strPtr("guest")
		delta.PowerStatus = telemetry.PowerOn
	}
	_, err := stores.Rooms.UpsertState(context.Background(), delta)
	require.NoError(t, err)
}

func TestListHotelsWithStats(t *testing.T) {
	srv, stores, _ := newTestServer(t)
	seedHotel(t, stores, "1", "Coastal Grand - Ooty")
	seedRoom(t, stores, "1", "101", telemetry.StatusOccupied)
	seedRoom(t, stores, "1", "102", telemetry.StatusMaintenance)
	seedRoom(t, stores, "1", "103", telemetry.StatusVacant)

	rec := doRequest(t, srv, http.MethodGet, "/api/hotels", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var hotels []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hotels))
	require.Len(t, hotels, 1)
	// Maintenance rooms count as active, and 2/3 rounds to 67.
	assert.Equal(t, float64(3), hotels[0]["totalRooms"])
	assert.Equal(t, float64(2), hotels[0]["activeRooms"])
	assert.Equal(t, float64(67), hotels[0]["occupancy"])
}

func TestGetHotel(t *testing.T) {
	srv, stores, _ := newTestServer(t)
	seedHotel(t, stores, "2", "Coastal Grand - Salem")
	seedRoom(t, stores, "2", "201", telemetry.StatusOccupied)
	seedRoom(t, stores, "2", "202", telemetry.StatusVacant)

	rec := doRequest(t, srv, http.MethodGet, "/api/hotel/2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var hotel map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hotel))
	assert.Equal(t, "Coastal Grand - Salem", hotel["name"])
	assert.Equal(t, float64(2), hotel["totalRooms"])
	assert.Equal(t, float64(1), hotel["activeRooms"])
	assert.Equal(t, float64(50), hotel["occupancy"])

	rec = doRequest(t, srv, http.MethodGet, "/api/hotel/3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHotelIDValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{
		"/api/hotel/9",
		"/api/hotel/0",
		"/api/rooms/12",
		"/api/attendance/x",
		"/api/denied_access/-1",
		"/api/activity/99",
	} {
		rec := doRequest(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestUpdateHotel(t *testing.T) {
	srv, stores, _ := newTestServer(t)
	seedHotel(t, stores, "4", "Coastal Grand - Madurai")

	rec := doRequest(t, srv, http.MethodPut, "/api/hotel/4",
		`{"id":"9","name":"Coastal Grand - Madurai","rating":4.5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	hotel, err := stores.Hotels.Get(context.Background(), "4")
	require.NoError(t, err)
	assert.Equal(t, 4.5, hotel.Rating)
	assert.NotEmpty(t, hotel.LastActivity)

	// The payload cannot move the record to another id.
	_, err = stores.Hotels.Get(context.Background(), "9")
	assert.Error(t, err)

	rec = doRequest(t, srv, http.MethodPut, "/api/hotel/4", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRoomsUsesCache(t *testing.T) {
	srv, stores, rooms := newTestServer(t)
	seedRoom(t, stores, "3", "301", telemetry.StatusOccupied)

	rec := doRequest(t, srv, http.MethodGet, "/api/rooms/3", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []telemetry.RoomState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "301", listed[0].Number)

	// Listing is now cached; a second request serves the cached body even
	// after the store changes.
	seedRoom(t, stores, "3", "302", telemetry.StatusVacant)
	rec = doRequest(t, srv, http.MethodGet, "/api/rooms/3", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	// Invalidation (what the pipeline does on upsert) exposes the update.
	rooms.InvalidateRooms(context.Background(), "3")
	rec = doRequest(t, srv, http.MethodGet, "/api/rooms/3", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 2)
}

func TestListRoomsEmptyHotel(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/rooms/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListLogs(t *testing.T) {
	srv, stores, _ := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, stores.Attendance.Append(ctx, telemetry.AttendanceRecord{HotelID: "6", CardUID: "A"}))
	require.NoError(t, stores.Denials.Append(ctx, telemetry.DenialLogEntry{"hotelId": "6", "denial_reason": "expired"}))
	require.NoError(t, stores.Activity.Append(ctx, telemetry.ActivityLogEntry{HotelID: "6", Action: "Guest checked in to Room 101"}))

	rec := doRequest(t, srv, http.MethodGet, "/api/attendance/6", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"card_uid":"A"`)

	rec = doRequest(t, srv, http.MethodGet, "/api/denied_access/6", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")

	rec = doRequest(t, srv, http.MethodGet, "/api/activity/6", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "checked in")

	rec = doRequest(t, srv, http.MethodGet, "/api/attendance/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListAlertsUsersCards(t *testing.T) {
	mem := memstore.New()
	backend := cache.NewMemoryCache()
	t.Cleanup(func() { _ = backend.Close() })

	srv, err := NewServer(Config{Addr: "127.0.0.1:0"}, mem.Stores(),
		NewRoomCache(backend, time.Minute), nil, &component.Dependencies{})
	require.NoError(t, err)

	mem.AddAlert(telemetry.AlertRecord{
		HotelID: "2", Room: "204", AlertType: "forced_entry",
		AlertMessage: "Door forced open", Severity: "high",
	})
	mem.AddUser(telemetry.UserRecord{
		HotelID: "2", ID: "U1", Name: "Priya Devi", Role: "manager",
	})
	mem.AddCard(telemetry.CardRecord{
		HotelID: "2", ID: "C1", CardUID: "G1", RoomNumber: "204",
		GuestName: "Guest One", IsActive: true,
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/alerts/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Door forced open")

	rec = doRequest(t, srv, http.MethodGet, "/api/users/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Priya Devi")

	rec = doRequest(t, srv, http.MethodGet, "/api/cards/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Guest One")

	// Hotels without records get empty arrays, not null.
	for _, path := range []string{"/api/alerts/5", "/api/users/5", "/api/cards/5"} {
		rec = doRequest(t, srv, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, "[]", rec.Body.String(), path)
	}

	// Same hotelId validation as every other per-hotel route.
	for _, path := range []string{"/api/alerts/9", "/api/users/0", "/api/cards/x"} {
		rec = doRequest(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestHealthzDegraded(t *testing.T) {
	mem := memstore.New()
	backend := cache.NewMemoryCache()
	t.Cleanup(func() { _ = backend.Close() })

	watched := []component.Discoverable{
		staticComponent{healthy: true},
		staticComponent{healthy: false},
	}
	srv, err := NewServer(Config{Addr: "127.0.0.1:0"}, mem.Stores(),
		NewRoomCache(backend, time.Minute), watched, &component.Dependencies{})
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	out := httptest.NewRecorder()
	srv.router().ServeHTTP(out, req)
	assert.Equal(t, "caller-supplied", out.Header().Get("X-Request-ID"))
}

// staticComponent is a fixed-health Discoverable for tests.
type staticComponent struct{ healthy bool }

func (c staticComponent) Meta() component.Metadata {
	return component.Metadata{Name: "static", Type: "test"}
}

func (c staticComponent) Health() component.HealthStatus {
	return component.HealthStatus{Healthy: c.healthy, LastCheck: time.Now()}
}
