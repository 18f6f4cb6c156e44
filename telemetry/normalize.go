package telemetry

import (
	"encoding/json"
	"time"

	"github.com/coastalgrand/roomstream/errors"
)

// Device-info defaults applied when the payload omits a field. These match
// what the ESP32 firmware reports when fully configured.
const (
	DefaultSSID       = "unknown"
	DefaultMQTTServer = "broker.hivemq.com"
	DefaultMQTTPort   = 1883
	DefaultNTPServer  = "pool.ntp.org"
	DefaultGMTOffset  = 19800
	DefaultFirmware   = "unknown"

	deviceIDPrefix = "ESP32_"
)

// rawPayload is the wire shape of an attendance or denial payload. All
// fields are optional; the normalizer applies defaults. No schema
// validation happens beyond what the state engine needs.
type rawPayload struct {
	CardUID         string `json:"card_uid"`
	Role            string `json:"role"`
	CheckIn         string `json:"check_in"`
	CheckOut        string `json:"check_out"`
	Duration        int    `json:"duration"`
	SSID            string `json:"ssid"`
	MQTTServer      string `json:"mqttServer"`
	MQTTPort        int    `json:"mqttPort"`
	NTPServer       string `json:"ntpServer"`
	GMTOffsetSec    int    `json:"gmtOffset_sec"`
	DeviceID        string `json:"deviceId"`
	FirmwareVersion string `json:"firmwareVersion"`
	Uptime          int64  `json:"uptime"`
	FreeHeap        int64  `json:"freeHeap"`
	WifiSignal      int    `json:"wifiSignal"`
	CardAbsentCount int    `json:"cardAbsentCount"`
	DenialReason    string `json:"denial_reason"`
	AttemptedAt     string `json:"attempted_at"`
	Timestamp       string `json:"timestamp"`
}

// Normalizer builds canonical events from routed raw payloads. It is the
// single place where payload defaults are applied.
type Normalizer struct {
	// MQTTServerDefault is substituted when the device did not report its
	// broker; differs between the remote deployment and local development.
	MQTTServerDefault string

	// now is injectable for tests; defaults to time.Now
	now func() time.Time
}

// NewNormalizer creates a Normalizer with the given broker default. An
// empty mqttServerDefault falls back to DefaultMQTTServer.
func NewNormalizer(mqttServerDefault string) *Normalizer {
	if mqttServerDefault == "" {
		mqttServerDefault = DefaultMQTTServer
	}
	return &Normalizer{
		MQTTServerDefault: mqttServerDefault,
		now:               time.Now,
	}
}

// WithClock overrides the normalizer's clock. Test hook.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize merges a raw JSON payload with the topic-derived route into a
// CanonicalEvent. Returns ErrMalformedPayload when the body is not valid
// JSON; the caller logs and drops the message.
func (n *Normalizer) Normalize(route Route, payload []byte) (*CanonicalEvent, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, errors.WrapInvalid(errors.ErrMalformedPayload, "Normalizer", "Normalize",
			"decode payload: "+err.Error())
	}
	if fields == nil {
		fields = map[string]any{}
	}

	var raw rawPayload
	// The payload decoded as generic JSON above, so the typed decode can
	// only fail on field type mismatches; those fields keep their zero
	// value and pick up defaults below.
	_ = json.Unmarshal(payload, &raw)

	loc := route.Location()

	ev := &CanonicalEvent{
		Location:        loc,
		Type:            route.Event,
		CardUID:         raw.CardUID,
		Role:            Role(raw.Role),
		CheckIn:         raw.CheckIn,
		CheckOut:        raw.CheckOut,
		Duration:        raw.Duration,
		DeviceID:        raw.DeviceID,
		Firmware:        raw.FirmwareVersion,
		Uptime:          raw.Uptime,
		FreeHeap:        raw.FreeHeap,
		WifiSignal:      raw.WifiSignal,
		CardAbsentCount: raw.CardAbsentCount,
		DenialReason:    raw.DenialReason,
		AttemptedAt:     raw.AttemptedAt,
		Timestamp:       raw.Timestamp,
	}

	if ev.DeviceID == "" {
		ev.DeviceID = deviceIDPrefix + loc.RoomNumber
	}
	if ev.Firmware == "" {
		ev.Firmware = DefaultFirmware
	}
	if ev.Timestamp == "" {
		ev.Timestamp = n.now().UTC().Format(time.RFC3339)
	}

	ev.Device = DeviceInfo{
		SSID:        defaultString(raw.SSID, DefaultSSID),
		MQTTServer:  defaultString(raw.MQTTServer, n.MQTTServerDefault),
		MQTTPort:    defaultInt(raw.MQTTPort, DefaultMQTTPort),
		RoomNumber:  loc.RoomNumber,
		Building:    loc.Building,
		FloorNumber: loc.FloorNumber,
		NTPServer:   defaultString(raw.NTPServer, DefaultNTPServer),
		GMTOffset:   defaultInt(raw.GMTOffsetSec, DefaultGMTOffset),
	}

	// Merge topic-derived fields so denial entries persist the full
	// context verbatim alongside the original payload fields.
	fields["room"] = loc.RoomNumber
	fields["hotelId"] = loc.HotelID
	fields["building"] = loc.Building
	fields["floorNumber"] = loc.FloorNumber
	fields["timestamp"] = ev.Timestamp
	ev.Fields = fields

	return ev, nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
