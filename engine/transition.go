package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/coastalgrand/roomstream/telemetry"
)

// Outcome is everything a single event produces: an optional room state
// delta, an optional activity feed entry, and an optional denial log
// entry. Denied-access events never carry a delta.
type Outcome struct {
	Delta    *telemetry.RoomStateDelta
	Activity *telemetry.ActivityLogEntry
	Denial   telemetry.DenialLogEntry
}

// Transition folds one canonical event into its outcome. Pure: no I/O,
// no clock reads beyond the supplied now (used only for the activity id).
//
// Check-in sets the room occupied (maintenance for the Maintenance role),
// records the lowercased role as occupant type and powers the room on.
// Check-out returns the room to vacant with power off. hasMasterKey is
// carried on the delta only for Manager events so the flag stays sticky
// across everyone else's movements.
func Transition(ev *telemetry.CanonicalEvent, now time.Time) Outcome {
	switch ev.Type {
	case telemetry.EventAttendance:
		return attendanceOutcome(ev, now)
	case telemetry.EventDeniedAccess:
		return denialOutcome(ev, now)
	default:
		return Outcome{}
	}
}

func attendanceOutcome(ev *telemetry.CanonicalEvent, now time.Time) Outcome {
	loc := ev.Location
	delta := &telemetry.RoomStateDelta{
		HotelID: loc.HotelID,
		RoomNum: loc.RoomNumber,
	}

	var activity telemetry.ActivityLogEntry
	if ev.CheckedIn() {
		delta.Status = telemetry.StatusOccupied
		if ev.Role == telemetry.RoleMaintenance {
			delta.Status = telemetry.StatusMaintenance
		}
		occupant := ev.Role.Lower()
		delta.OccupantType = &occupant
		delta.PowerStatus = telemetry.PowerOn
		if ev.Role == telemetry.RoleManager {
			hasKey := true
			delta.HasMasterKey = &hasKey
		}
		activity = telemetry.ActivityLogEntry{
			HotelID: loc.HotelID,
			ID:      strconv.FormatInt(now.UnixMilli(), 10),
			Type:    telemetry.ActivityCheckin,
			Action:  fmt.Sprintf("%s checked in to Room %s", ev.Role, loc.RoomNumber),
			User:    string(ev.Role),
			Time:    ev.CheckIn,
		}
	} else {
		delta.Status = telemetry.StatusVacant
		delta.OccupantType = nil
		delta.PowerStatus = telemetry.PowerOff
		if ev.Role == telemetry.RoleManager {
			hasKey := false
			delta.HasMasterKey = &hasKey
		}
		activity = telemetry.ActivityLogEntry{
			HotelID: loc.HotelID,
			ID:      strconv.FormatInt(now.UnixMilli(), 10),
			Type:    telemetry.ActivityCheckout,
			Action:  fmt.Sprintf("%s checked out to Room %s", ev.Role, loc.RoomNumber),
			User:    string(ev.Role),
			Time:    ev.CheckOut,
		}
	}

	return Outcome{Delta: delta, Activity: &activity}
}

func denialOutcome(ev *telemetry.CanonicalEvent, now time.Time) Outcome {
	loc := ev.Location

	// Persist the payload verbatim; topic-derived fields were already
	// merged in by the normalizer.
	denial := make(telemetry.DenialLogEntry, len(ev.Fields))
	for k, v := range ev.Fields {
		denial[k] = v
	}

	activity := telemetry.ActivityLogEntry{
		HotelID: loc.HotelID,
		ID:      strconv.FormatInt(now.UnixMilli(), 10),
		Type:    telemetry.ActivitySecurity,
		Action: fmt.Sprintf("Denied access to %s: %s for Room %s",
			ev.Role, ev.DenialReason, loc.RoomNumber),
		User: string(ev.Role),
		Time: ev.AttemptedAt,
	}

	return Outcome{Denial: denial, Activity: &activity}
}
