package telemetry

import (
	"strings"
	"time"
)

// EventType identifies the kind of telemetry event carried by a message.
type EventType string

const (
	// EventAttendance is a card check-in or check-out at a door reader
	EventAttendance EventType = "attendance"
	// EventDeniedAccess is a rejected card presentation
	EventDeniedAccess EventType = "denied_access"
	// EventUnknown is an event type the pipeline does not process
	EventUnknown EventType = "unknown"
)

// Role is the actor role carried on a card. Comparisons against the
// recognized constants are exact-case, matching the device firmware.
type Role string

// Recognized card roles
const (
	RoleGuest       Role = "Guest"
	RoleManager     Role = "Manager"
	RoleMaintenance Role = "Maintenance"
	RoleStaff       Role = "Staff"
)

// Lower returns the lowercase occupant-type form of the role
func (r Role) Lower() string {
	return strings.ToLower(string(r))
}

// RoomStatus is the closed set of occupancy states for a room
type RoomStatus string

// Room occupancy states
const (
	StatusVacant      RoomStatus = "vacant"
	StatusOccupied    RoomStatus = "occupied"
	StatusMaintenance RoomStatus = "maintenance"
)

// Valid reports whether the status is a member of the closed set
func (s RoomStatus) Valid() bool {
	switch s {
	case StatusVacant, StatusOccupied, StatusMaintenance:
		return true
	}
	return false
}

// PowerStatus is the room power state toggled by check-in/check-out
type PowerStatus string

// Room power states
const (
	PowerOn  PowerStatus = "on"
	PowerOff PowerStatus = "off"
)

// ActivityType classifies activity log entries
type ActivityType string

// Activity log entry types
const (
	ActivityCheckin  ActivityType = "checkin"
	ActivityCheckout ActivityType = "checkout"
	ActivitySecurity ActivityType = "security"
)

// LocationKey identifies a physical room. Immutable once derived from a
// topic. HotelID is always the topic's floor segment: hotel identity is
// encoded in the floor position by the device fleet's addressing scheme.
// That remapping is a contract, not a bug.
type LocationKey struct {
	HotelID     string `json:"hotelId" bson:"hotelId"`
	Building    string `json:"building" bson:"building"`
	FloorNumber string `json:"floorNumber" bson:"floorNumber"`
	RoomNumber  string `json:"room" bson:"room"`
}

// DeviceInfo is the connectivity snapshot reported by a door reader,
// with defaults applied during normalization for fields the device omitted.
type DeviceInfo struct {
	SSID        string `json:"ssid" bson:"ssid"`
	MQTTServer  string `json:"mqttServer" bson:"mqttServer"`
	MQTTPort    int    `json:"mqttPort" bson:"mqttPort"`
	RoomNumber  string `json:"roomNumber" bson:"roomNumber"`
	Building    string `json:"building" bson:"building"`
	FloorNumber string `json:"floorNumber" bson:"floorNumber"`
	NTPServer   string `json:"ntpServer" bson:"ntpServer"`
	GMTOffset   int    `json:"gmtOffset" bson:"gmtOffset"`
}

// CanonicalEvent is the normalized representation of one telemetry
// message. Produced once per valid message; immutable after construction.
type CanonicalEvent struct {
	Location  LocationKey
	Type      EventType
	CardUID   string
	Role      Role
	CheckIn   string // RFC3339 from device; empty means checkout
	CheckOut  string
	Duration  int
	Device    DeviceInfo
	DeviceID  string
	Firmware  string
	Uptime    int64
	FreeHeap  int64
	WifiSignal      int
	CardAbsentCount int
	DenialReason    string
	AttemptedAt     string
	Timestamp       string // RFC3339, stamped at normalization when absent

	// Fields is the decoded payload merged with the topic-derived fields,
	// kept for verbatim denial persistence.
	Fields map[string]any
}

// CheckedIn reports whether the event signals entry (check_in present)
func (e *CanonicalEvent) CheckedIn() bool {
	return e.CheckIn != ""
}

// RoomState is the current derived occupancy snapshot for one room.
// One logical instance per room, upserted keyed by (hotelId, number).
type RoomState struct {
	HotelID      string      `json:"hotelId" bson:"hotelId"`
	Number       string      `json:"number" bson:"number"`
	Status       RoomStatus  `json:"status" bson:"status"`
	OccupantType string      `json:"occupantType" bson:"occupantType"` // empty iff vacant
	HasMasterKey bool        `json:"hasMasterKey" bson:"hasMasterKey"`
	HasLowPower  bool        `json:"hasLowPower" bson:"hasLowPower"`
	PowerStatus  PowerStatus `json:"powerStatus" bson:"powerStatus"`
}

// RoomStateDelta is the partial room update produced by one transition and
// broadcast on roomUpdate:{hotelId}. HasMasterKey is set only for Manager
// events so upserts never clobber the sticky flag.
type RoomStateDelta struct {
	HotelID      string      `json:"-" bson:"-"`
	RoomNum      string      `json:"roomNum" bson:"-"`
	Status       RoomStatus  `json:"status" bson:"status"`
	OccupantType *string     `json:"occupantType" bson:"occupantType"` // nil on checkout
	PowerStatus  PowerStatus `json:"powerStatus" bson:"powerStatus"`
	HasMasterKey *bool       `json:"hasMasterKey,omitempty" bson:"hasMasterKey,omitempty"`
}

// Apply folds the delta into a room state, preserving sticky fields
func (d *RoomStateDelta) Apply(prev RoomState) RoomState {
	next := prev
	next.HotelID = d.HotelID
	next.Number = d.RoomNum
	next.Status = d.Status
	next.PowerStatus = d.PowerStatus
	if d.OccupantType != nil {
		next.OccupantType = *d.OccupantType
	} else {
		next.OccupantType = ""
	}
	if d.HasMasterKey != nil {
		next.HasMasterKey = *d.HasMasterKey
	}
	return next
}

// AttendanceRecord is the durable audit row appended for every attendance
// event, including the device snapshot that reported it.
type AttendanceRecord struct {
	HotelID     string     `json:"hotelId" bson:"hotelId"`
	CardUID     string     `json:"card_uid" bson:"card_uid"`
	Role        Role       `json:"role" bson:"role"`
	CheckIn     string     `json:"check_in,omitempty" bson:"check_in,omitempty"`
	CheckOut    string     `json:"check_out,omitempty" bson:"check_out,omitempty"`
	Duration    int        `json:"duration" bson:"duration"`
	Room        string     `json:"room" bson:"room"`
	Building    string     `json:"building" bson:"building"`
	FloorNumber string     `json:"floorNumber" bson:"floorNumber"`
	Timestamp   string     `json:"timestamp" bson:"timestamp"`
	IsCheckedIn bool       `json:"isCheckedIn" bson:"isCheckedIn"`
	DeviceInfo  DeviceInfo `json:"deviceInfo" bson:"deviceInfo"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
}

// DeviceRecord is the current health snapshot of a door reader, upserted
// keyed by deviceId on every attendance event from that device.
type DeviceRecord struct {
	DeviceID        string    `json:"deviceId" bson:"deviceId"`
	HotelID         string    `json:"hotelId" bson:"hotelId"`
	Room            string    `json:"room" bson:"room"`
	Building        string    `json:"building" bson:"building"`
	FloorNumber     string    `json:"floorNumber" bson:"floorNumber"`
	SSID            string    `json:"ssid" bson:"ssid"`
	MQTTServer      string    `json:"mqttServer" bson:"mqttServer"`
	MQTTPort        int       `json:"mqttPort" bson:"mqttPort"`
	LastSeen        time.Time `json:"lastSeen" bson:"lastSeen"`
	FirmwareVersion string    `json:"firmwareVersion" bson:"firmwareVersion"`
	Uptime          int64     `json:"uptime" bson:"uptime"`
	FreeHeap        int64     `json:"freeHeap" bson:"freeHeap"`
	WifiSignal      int       `json:"wifiSignal" bson:"wifiSignal"`
	IsOnline        bool      `json:"isOnline" bson:"isOnline"`
}

// PresenceRecord tracks whether a credential is currently inside a room,
// upserted keyed by (hotelId, card_uid, room).
type PresenceRecord struct {
	HotelID          string    `json:"hotelId" bson:"hotelId"`
	CardUID          string    `json:"card_uid" bson:"card_uid"`
	Room             string    `json:"room" bson:"room"`
	Building         string    `json:"building" bson:"building"`
	FloorNumber      string    `json:"floorNumber" bson:"floorNumber"`
	IsPresent        bool      `json:"isPresent" bson:"isPresent"`
	LastDetected     time.Time `json:"lastDetected" bson:"lastDetected"`
	PresenceDuration int       `json:"presenceDuration" bson:"presenceDuration"`
	CardAbsentCount  int       `json:"cardAbsentCount" bson:"cardAbsentCount"`
	DeviceID         string    `json:"deviceId" bson:"deviceId"`
}

// ActivityLogEntry is one append-only activity feed row, broadcast on
// activityUpdate:{hotelId} after persistence.
type ActivityLogEntry struct {
	HotelID string       `json:"hotelId" bson:"hotelId"`
	ID      string       `json:"id" bson:"id"`
	Type    ActivityType `json:"type" bson:"type"`
	Action  string       `json:"action" bson:"action"`
	User    string       `json:"user" bson:"user"` // actor role
	Time    string       `json:"time" bson:"time"` // event time, not wall clock
}

// DenialLogEntry is the raw denial payload persisted as-is, append-only,
// with the topic-derived fields merged in.
type DenialLogEntry map[string]any

// AlertRecord is a security alert raised against a room. Alerts are
// written by the fleet-management tooling and served read-only here.
type AlertRecord struct {
	HotelID      string `json:"hotelId" bson:"hotelId"`
	CardUID      string `json:"card_uid" bson:"card_uid"`
	Role         Role   `json:"role" bson:"role"`
	AlertMessage string `json:"alert_message" bson:"alert_message"`
	TriggeredAt  string `json:"triggered_at" bson:"triggered_at"`
	Room         string `json:"room" bson:"room"`
	Building     string `json:"building" bson:"building"`
	FloorNumber  string `json:"floorNumber" bson:"floorNumber"`
	AlertType    string `json:"alertType" bson:"alertType"`
	Severity     string `json:"severity" bson:"severity"`
	Resolved     bool   `json:"resolved" bson:"resolved"`
}

// UserRecord is a hotel staff account, managed externally and served
// read-only per hotel.
type UserRecord struct {
	HotelID   string `json:"hotelId" bson:"hotelId"`
	ID        string `json:"id" bson:"id"`
	Name      string `json:"name" bson:"name"`
	Email     string `json:"email" bson:"email"`
	Role      string `json:"role" bson:"role"`
	Status    string `json:"status" bson:"status"`
	LastLogin string `json:"lastLogin" bson:"lastLogin"`
	Avatar    string `json:"avatar" bson:"avatar"`
}

// CardRecord is an issued RFID key card, managed externally and served
// read-only per hotel.
type CardRecord struct {
	HotelID      string `json:"hotelId" bson:"hotelId"`
	ID           string `json:"id" bson:"id"`
	RoomNumber   string `json:"roomNumber" bson:"roomNumber"`
	GuestName    string `json:"guestName" bson:"guestName"`
	Status       string `json:"status" bson:"status"`
	ExpiryDate   string `json:"expiryDate" bson:"expiryDate"`
	LastUsed     string `json:"lastUsed" bson:"lastUsed"`
	CardUID      string `json:"card_uid" bson:"card_uid"`
	Role         Role   `json:"role" bson:"role"`
	Building     string `json:"building" bson:"building"`
	FloorNumber  string `json:"floorNumber" bson:"floorNumber"`
	IsActive     bool   `json:"isActive" bson:"isActive"`
	BatteryLevel int    `json:"batteryLevel" bson:"batteryLevel"`
	AccessCount  int    `json:"accessCount" bson:"accessCount"`
}

// Manager is a hotel manager contact on the hotel record
type Manager struct {
	Name   string `json:"name" bson:"name"`
	Phone  string `json:"phone" bson:"phone"`
	Email  string `json:"email" bson:"email"`
	Status string `json:"status" bson:"status"`
}

// Hotel is the static hotel record served by the query API
type Hotel struct {
	ID           string  `json:"id" bson:"id"`
	Name         string  `json:"name" bson:"name"`
	Location     string  `json:"location" bson:"location"`
	Address      string  `json:"address" bson:"address"`
	Phone        string  `json:"phone" bson:"phone"`
	Email        string  `json:"email" bson:"email"`
	Rating       float64 `json:"rating" bson:"rating"`
	Description  string  `json:"description" bson:"description"`
	Image        string  `json:"image" bson:"image"`
	Status       string  `json:"status" bson:"status"`
	LastActivity string  `json:"lastActivity" bson:"lastActivity"`
	Manager      Manager `json:"manager" bson:"manager"`
}
