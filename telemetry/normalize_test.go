package telemetry

import (
	"testing"
	"time"

	"github.com/coastalgrand/roomstream/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	at := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func attendanceRoute() Route {
	return Route{Building: "A", FloorNumber: "2", RoomNumber: "205", Event: EventAttendance, RawEvent: "attendances"}
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	n := NewNormalizer("").WithClock(fixedClock(t))

	ev, err := n.Normalize(attendanceRoute(), []byte(`{"card_uid":"X1","role":"Guest","check_in":"2024-01-01T10:00:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, "X1", ev.CardUID)
	assert.Equal(t, RoleGuest, ev.Role)
	assert.True(t, ev.CheckedIn())
	assert.Equal(t, "2", ev.Location.HotelID)
	assert.Equal(t, "205", ev.Location.RoomNumber)

	assert.Equal(t, DefaultSSID, ev.Device.SSID)
	assert.Equal(t, DefaultMQTTServer, ev.Device.MQTTServer)
	assert.Equal(t, DefaultMQTTPort, ev.Device.MQTTPort)
	assert.Equal(t, DefaultNTPServer, ev.Device.NTPServer)
	assert.Equal(t, DefaultGMTOffset, ev.Device.GMTOffset)
	assert.Equal(t, "205", ev.Device.RoomNumber)
	assert.Equal(t, "ESP32_205", ev.DeviceID)
	assert.Equal(t, "2024-01-01T10:30:00Z", ev.Timestamp, "timestamp stamped when transport omits one")
}

func TestNormalizeKeepsReportedDeviceInfo(t *testing.T) {
	n := NewNormalizer("localhost").WithClock(fixedClock(t))

	payload := []byte(`{
		"card_uid": "X2",
		"role": "Staff",
		"check_in": "2024-01-01T09:00:00Z",
		"ssid": "hotel-wifi",
		"mqttServer": "10.0.0.5",
		"mqttPort": 8883,
		"ntpServer": "time.google.com",
		"gmtOffset_sec": 3600,
		"deviceId": "ESP32_CUSTOM",
		"firmwareVersion": "2.4.1",
		"uptime": 86400,
		"freeHeap": 120000,
		"wifiSignal": -55,
		"timestamp": "2024-01-01T09:00:01Z"
	}`)

	ev, err := n.Normalize(attendanceRoute(), payload)
	require.NoError(t, err)

	assert.Equal(t, "hotel-wifi", ev.Device.SSID)
	assert.Equal(t, "10.0.0.5", ev.Device.MQTTServer)
	assert.Equal(t, 8883, ev.Device.MQTTPort)
	assert.Equal(t, "time.google.com", ev.Device.NTPServer)
	assert.Equal(t, 3600, ev.Device.GMTOffset)
	assert.Equal(t, "ESP32_CUSTOM", ev.DeviceID)
	assert.Equal(t, "2.4.1", ev.Firmware)
	assert.Equal(t, int64(86400), ev.Uptime)
	assert.Equal(t, -55, ev.WifiSignal)
	assert.Equal(t, "2024-01-01T09:00:01Z", ev.Timestamp, "transport-supplied timestamp preserved")
}

func TestNormalizeLocalBrokerDefault(t *testing.T) {
	n := NewNormalizer("localhost").WithClock(fixedClock(t))

	ev, err := n.Normalize(attendanceRoute(), []byte(`{"card_uid":"X1","role":"Guest"}`))
	require.NoError(t, err)
	assert.Equal(t, "localhost", ev.Device.MQTTServer)
}

func TestNormalizeMergesTopicFields(t *testing.T) {
	n := NewNormalizer("").WithClock(fixedClock(t))

	route := Route{Building: "B", FloorNumber: "3", RoomNumber: "310", Event: EventDeniedAccess, RawEvent: "denied_access"}
	ev, err := n.Normalize(route, []byte(`{"card_uid":"Y9","role":"Guest","denial_reason":"expired","attempted_at":"2024-01-01T10:05:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, "expired", ev.DenialReason)
	assert.Equal(t, "2024-01-01T10:05:00Z", ev.AttemptedAt)

	// Verbatim fields carry the original payload plus topic context
	assert.Equal(t, "Y9", ev.Fields["card_uid"])
	assert.Equal(t, "expired", ev.Fields["denial_reason"])
	assert.Equal(t, "310", ev.Fields["room"])
	assert.Equal(t, "3", ev.Fields["hotelId"])
	assert.Equal(t, "B", ev.Fields["building"])
	assert.Equal(t, "3", ev.Fields["floorNumber"])
	assert.Equal(t, "2024-01-01T10:30:00Z", ev.Fields["timestamp"])
}

func TestNormalizeMalformedPayload(t *testing.T) {
	n := NewNormalizer("")

	for _, payload := range [][]byte{
		[]byte(`{not json`),
		[]byte(``),
		[]byte(`"just a string"`),
	} {
		_, err := n.Normalize(attendanceRoute(), payload)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	}
}

func TestNormalizeEmptyObject(t *testing.T) {
	n := NewNormalizer("").WithClock(fixedClock(t))

	ev, err := n.Normalize(attendanceRoute(), []byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, ev.CardUID)
	assert.False(t, ev.CheckedIn())
	assert.Equal(t, "ESP32_205", ev.DeviceID)
}
