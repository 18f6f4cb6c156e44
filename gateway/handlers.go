package gateway

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coastalgrand/roomstream/errors"
	"github.com/coastalgrand/roomstream/telemetry"
)

// hotelSummary is a hotel record enriched with live occupancy stats.
type hotelSummary struct {
	telemetry.Hotel
	TotalRooms  int `json:"totalRooms"`
	ActiveRooms int `json:"activeRooms"`
	Occupancy   int `json:"occupancy"` // rounded percent of active rooms
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}

// hotelID extracts and validates the hotelId path parameter. The campus
// has hotels 1 through 8; anything else is a bad request.
func hotelID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "hotelId")
	if len(id) != 1 || id[0] < '1' || id[0] > '8' {
		writeError(w, http.StatusBadRequest, "invalid hotel id")
		return "", false
	}
	return id, true
}

func (s *Server) listHotels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hotels, err := s.stores.Hotels.List(ctx)
	if err != nil {
		s.logger.Error("list hotels failed", "error", err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	summaries := make([]hotelSummary, 0, len(hotels))
	for _, hotel := range hotels {
		summaries = append(summaries, s.summarize(ctx, hotel))
	}

	respond(w, http.StatusOK, summaries)
}

// summarize attaches live room stats to a hotel record. A room is active
// when it is occupied or under maintenance; occupancy is the rounded
// percentage of active rooms.
func (s *Server) summarize(ctx context.Context, hotel telemetry.Hotel) hotelSummary {
	summary := hotelSummary{Hotel: hotel}

	rooms, err := s.stores.Rooms.ListByHotel(ctx, hotel.ID)
	if err != nil {
		s.logger.Warn("room stats unavailable", "hotel", hotel.ID, "error", err)
		return summary
	}

	summary.TotalRooms = len(rooms)
	for _, room := range rooms {
		if room.Status == telemetry.StatusOccupied || room.Status == telemetry.StatusMaintenance {
			summary.ActiveRooms++
		}
	}
	if summary.TotalRooms > 0 {
		summary.Occupancy = int(math.Round(float64(summary.ActiveRooms) / float64(summary.TotalRooms) * 100))
	}
	return summary
}

func (s *Server) getHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(w, r)
	if !ok {
		return
	}

	hotel, err := s.stores.Hotels.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, errors.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "hotel not found")
			return
		}
		s.logger.Error("get hotel failed", "hotel", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	respond(w, http.StatusOK, s.summarize(r.Context(), hotel))
}

func (s *Server) updateHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(w, r)
	if !ok {
		return
	}

	var hotel telemetry.Hotel
	if err := json.NewDecoder(r.Body).Decode(&hotel); err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotel payload")
		return
	}
	// The path owns the identity
	hotel.ID = id
	hotel.LastActivity = time.Now().UTC().Format(time.RFC3339)

	if err := s.stores.Hotels.Upsert(r.Context(), hotel); err != nil {
		s.logger.Error("update hotel failed", "hotel", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	respond(w, http.StatusOK, hotel)
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if cached, hit := s.rooms.Get(ctx, id); hit {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	rooms, err := s.stores.Rooms.ListByHotel(ctx, id)
	if err != nil {
		s.logger.Error("list rooms failed", "hotel", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if rooms == nil {
		rooms = []telemetry.RoomState{}
	}

	body, err := json.Marshal(rooms)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	s.rooms.Set(ctx, id, body)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) listAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(w, r)
	if !ok {
		return
	}

	recs, err := s.stores.Attendance.ListByHotel(r.Context(), id)
	if err != nil {
		s.logger.Error("list attendance failed", "hotel", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if recs == nil {
		recs = []telemetry.AttendanceRecord{}
	}
	respond(w, http.StatusOK, recs)
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(w, r)
	if !ok {
		return
	}

	recs, err := s.stores.Alerts.ListByHotel(r.Context(), id)
	if err != nil {
		s.logger.Error("list alerts failed", "hotel", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if recs == nil {
		recs = []telemetry.AlertRecord{}
	}
	respond(w, http.StatusOK, recs)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(w, r)
	if !ok {
		return
	}

	recs, err := s.stores.Users.ListByHotel(r.Context(), id)
	if err != nil {
		s.logger.Error("list users failed", "hotel", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if recs == nil {
		recs = []telemetry.UserRecord{}
	}
	respond(w, http.StatusOK, recs)
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(w, r)
	if !ok {
		return
	}

	recs, err := s.stores.Cards.ListByHotel(r.Context(), id)
	if err != nil {
		s.logger.Error("list cards failed", "hotel", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if recs == nil {
		recs = []telemetry.CardRecord{}
	}
	respond(w, http.StatusOK, recs)
}

func (s *Server) listDenials(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(w, r)
	if !ok {
		return
	}

	entries, err := s.stores.Denials.ListByHotel(r.Context(), id)
	if err != nil {
		s.logger.Error("list denials failed", "hotel", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if entries == nil {
		entries = []telemetry.DenialLogEntry{}
	}
	respond(w, http.StatusOK, entries)
}

func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := hotelID(w, r)
	if !ok {
		return
	}

	entries, err := s.stores.Activity.ListByHotel(r.Context(), id)
	if err != nil {
		s.logger.Error("list activity failed", "hotel", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if entries == nil {
		entries = []telemetry.ActivityLogEntry{}
	}
	respond(w, http.StatusOK, entries)
}

// healthz reports the aggregate of every watched component.
func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	agg := s.checker.Check()

	status := http.StatusOK
	if !agg.Healthy {
		status = http.StatusServiceUnavailable
	}
	respond(w, status, agg)
}
