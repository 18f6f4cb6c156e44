package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastalgrand/roomstream/telemetry"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func attendanceEvent(role telemetry.Role, checkIn, checkOut string) *telemetry.CanonicalEvent {
	return &telemetry.CanonicalEvent{
		Location: telemetry.LocationKey{
			HotelID:     "2",
			Building:    "A",
			FloorNumber: "2",
			RoomNumber:  "204",
		},
		Type:     telemetry.EventAttendance,
		CardUID:  "04A1B2C3",
		Role:     role,
		CheckIn:  checkIn,
		CheckOut: checkOut,
	}
}

func TestTransition_GuestCheckIn(t *testing.T) {
	ev := attendanceEvent(telemetry.RoleGuest, "2026-03-14T09:26:00Z", "")

	out := Transition(ev, fixedNow)

	require.NotNil(t, out.Delta)
	assert.Equal(t, "2", out.Delta.HotelID)
	assert.Equal(t, "204", out.Delta.RoomNum)
	assert.Equal(t, telemetry.StatusOccupied, out.Delta.Status)
	require.NotNil(t, out.Delta.OccupantType)
	assert.Equal(t, "guest", *out.Delta.OccupantType)
	assert.Equal(t, telemetry.PowerOn, out.Delta.PowerStatus)
	assert.Nil(t, out.Delta.HasMasterKey, "guest must not touch the master-key flag")

	require.NotNil(t, out.Activity)
	assert.Equal(t, telemetry.ActivityCheckin, out.Activity.Type)
	assert.Equal(t, "Guest checked in to Room 204", out.Activity.Action)
	assert.Equal(t, "Guest", out.Activity.User)
	assert.Equal(t, "2026-03-14T09:26:00Z", out.Activity.Time)
	assert.Equal(t, "1773480413000", out.Activity.ID)

	assert.Nil(t, out.Denial)
}

func TestTransition_MaintenanceCheckIn(t *testing.T) {
	ev := attendanceEvent(telemetry.RoleMaintenance, "2026-03-14T09:26:00Z", "")

	out := Transition(ev, fixedNow)

	require.NotNil(t, out.Delta)
	assert.Equal(t, telemetry.StatusMaintenance, out.Delta.Status)
	require.NotNil(t, out.Delta.OccupantType)
	assert.Equal(t, "maintenance", *out.Delta.OccupantType)
	assert.Nil(t, out.Delta.HasMasterKey)
}

func TestTransition_ManagerCheckInSetsMasterKey(t *testing.T) {
	ev := attendanceEvent(telemetry.RoleManager, "2026-03-14T09:26:00Z", "")

	out := Transition(ev, fixedNow)

	require.NotNil(t, out.Delta)
	assert.Equal(t, telemetry.StatusOccupied, out.Delta.Status)
	require.NotNil(t, out.Delta.HasMasterKey)
	assert.True(t, *out.Delta.HasMasterKey)
}

func TestTransition_CheckOut(t *testing.T) {
	ev := attendanceEvent(telemetry.RoleGuest, "", "2026-03-14T11:02:00Z")

	out := Transition(ev, fixedNow)

	require.NotNil(t, out.Delta)
	assert.Equal(t, telemetry.StatusVacant, out.Delta.Status)
	assert.Nil(t, out.Delta.OccupantType)
	assert.Equal(t, telemetry.PowerOff, out.Delta.PowerStatus)
	assert.Nil(t, out.Delta.HasMasterKey)

	require.NotNil(t, out.Activity)
	assert.Equal(t, telemetry.ActivityCheckout, out.Activity.Type)
	assert.Equal(t, "Guest checked out to Room 204", out.Activity.Action)
	assert.Equal(t, "2026-03-14T11:02:00Z", out.Activity.Time)
}

func TestTransition_ManagerCheckOutClearsMasterKey(t *testing.T) {
	ev := attendanceEvent(telemetry.RoleManager, "", "2026-03-14T11:02:00Z")

	out := Transition(ev, fixedNow)

	require.NotNil(t, out.Delta)
	require.NotNil(t, out.Delta.HasMasterKey)
	assert.False(t, *out.Delta.HasMasterKey)
}

func TestTransition_DeniedAccess(t *testing.T) {
	ev := &telemetry.CanonicalEvent{
		Location: telemetry.LocationKey{
			HotelID:    "5",
			RoomNumber: "110",
		},
		Type:         telemetry.EventDeniedAccess,
		CardUID:      "BAD0CAFE",
		Role:         telemetry.RoleStaff,
		DenialReason: "card expired",
		AttemptedAt:  "2026-03-14T08:00:00Z",
		Fields: map[string]any{
			"card_uid":      "BAD0CAFE",
			"denial_reason": "card expired",
			"hotelId":       "5",
		},
	}

	out := Transition(ev, fixedNow)

	assert.Nil(t, out.Delta, "denied access must never mutate room state")

	require.NotNil(t, out.Denial)
	assert.Equal(t, "BAD0CAFE", out.Denial["card_uid"])
	assert.Equal(t, "5", out.Denial["hotelId"])

	require.NotNil(t, out.Activity)
	assert.Equal(t, telemetry.ActivitySecurity, out.Activity.Type)
	assert.Equal(t, "Denied access to Staff: card expired for Room 110", out.Activity.Action)
	assert.Equal(t, "2026-03-14T08:00:00Z", out.Activity.Time)
}

func TestTransition_UnknownEvent(t *testing.T) {
	ev := &telemetry.CanonicalEvent{Type: telemetry.EventUnknown}

	out := Transition(ev, fixedNow)

	assert.Nil(t, out.Delta)
	assert.Nil(t, out.Activity)
	assert.Nil(t, out.Denial)
}
