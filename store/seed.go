package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coastalgrand/roomstream/telemetry"
)

// roomCounts is the number of physical rooms per hotel. Unknown hotels get
// the fallback count.
var roomCounts = map[string]int{
	"1": 25, // Ooty
	"2": 30, // Salem
	"3": 20, // Yercaud
	"4": 28, // Puducherry
	"5": 22, // Namakkal
	"6": 30, // Chennai
	"7": 30, // Bangalore
	"8": 18, // Kotagiri
}

const fallbackRoomCount = 20

// seedHotels is the static Coastal Grand property list.
var seedHotels = []telemetry.Hotel{
	{
		ID: "1", Name: "Coastal Grand Hotel - Ooty", Location: "Ooty, Tamil Nadu",
		Address: "456 Hill Road, Ooty, Tamil Nadu", Phone: "+91 90476 28844",
		Email: "rajesh.kumar@coastalgrand.com", Rating: 4.7,
		Description: "Scenic hill station hotel with modern amenities and exceptional service.",
		Image:       "/placeholder.jpg", Status: "active", LastActivity: "2 minutes ago",
		Manager: telemetry.Manager{Name: "Rajesh Kumar", Phone: "+91 90476 28844", Email: "rajesh.kumar@coastalgrand.com", Status: "online"},
	},
	{
		ID: "2", Name: "Coastal Grand Hotel - Salem", Location: "Salem, Tamil Nadu",
		Address: "123 Main Street, Salem, Tamil Nadu", Phone: "+91 90476 28844",
		Email: "priya.devi@coastalgrand.com", Rating: 4.8,
		Description: "Premium hotel in the heart of Salem with modern amenities and exceptional service.",
		Image:       "/placeholder.jpg", Status: "active", LastActivity: "5 minutes ago",
		Manager: telemetry.Manager{Name: "Priya Devi", Phone: "+91 90476 28844", Email: "priya.devi@coastalgrand.com", Status: "online"},
	},
	{
		ID: "3", Name: "Coastal Grand Hotel - Yercaud", Location: "Yercaud, Tamil Nadu",
		Address: "789 Mountain View, Yercaud, Tamil Nadu", Phone: "+91 90476 28844",
		Email: "arun.balaji@coastalgrand.com", Rating: 4.6,
		Description: "Scenic hill station hotel with modern amenities and exceptional service.",
		Image:       "/placeholder.jpg", Status: "active", LastActivity: "10 minutes ago",
		Manager: telemetry.Manager{Name: "Arun Balaji", Phone: "+91 90476 28844", Email: "arun.balaji@coastalgrand.com", Status: "online"},
	},
	{
		ID: "4", Name: "Coastal Grand Hotel - Puducherry", Location: "Puducherry, Union Territory",
		Address: "321 Beach Road, Puducherry, Union Territory", Phone: "+91 90476 28844",
		Email: "lakshmi.priya@coastalgrand.com", Rating: 4.5,
		Description: "Heritage hotel with modern amenities and exceptional service.",
		Image:       "/placeholder.jpg", Status: "maintenance", LastActivity: "1 hour ago",
		Manager: telemetry.Manager{Name: "Lakshmi Priya", Phone: "+91 90476 28844", Email: "lakshmi.priya@coastalgrand.com", Status: "online"},
	},
	{
		ID: "5", Name: "Coastal Grand Hotel - Namakkal", Location: "Namakkal, Tamil Nadu",
		Address: "654 City Center, Namakkal, Tamil Nadu", Phone: "+91 90476 28844",
		Email: "senthil.kumar@coastalgrand.com", Rating: 4.4,
		Description: "Premium hotel with modern amenities and exceptional service.",
		Image:       "/placeholder.jpg", Status: "active", LastActivity: "15 minutes ago",
		Manager: telemetry.Manager{Name: "Senthil Kumar", Phone: "+91 90476 28844", Email: "senthil.kumar@coastalgrand.com", Status: "online"},
	},
	{
		ID: "6", Name: "Coastal Grand Hotel - Chennai", Location: "Chennai, Tamil Nadu",
		Address: "987 Marina Beach Road, Chennai, Tamil Nadu", Phone: "+91 90476 28844",
		Email: "vijay.anand@coastalgrand.com", Rating: 4.9,
		Description: "Metropolitan hotel with modern amenities and exceptional service.",
		Image:       "/placeholder.jpg", Status: "active", LastActivity: "30 minutes ago",
		Manager: telemetry.Manager{Name: "Vijay Anand", Phone: "+91 90476 28844", Email: "vijay.anand@coastalgrand.com", Status: "online"},
	},
	{
		ID: "7", Name: "Coastal Grand Hotel - Bangalore", Location: "Bangalore, Karnataka",
		Address: "147 MG Road, Bangalore, Karnataka", Phone: "+91 90476 28844",
		Email: "deepa.sharma@coastalgrand.com", Rating: 4.7,
		Description: "Metropolitan hotel with modern amenities and exceptional service.",
		Image:       "/placeholder.jpg", Status: "active", LastActivity: "45 minutes ago",
		Manager: telemetry.Manager{Name: "Deepa Sharma", Phone: "+91 90476 28844", Email: "deepa.sharma@coastalgrand.com", Status: "online"},
	},
	{
		ID: "8", Name: "Coastal Grand Hotel - Kotagiri", Location: "Kotagiri, Tamil Nadu",
		Address: "258 Tea Estate Road, Kotagiri, Tamil Nadu", Phone: "+91 90476 28844",
		Email: "mohan.raj@coastalgrand.com", Rating: 4.6,
		Description: "Scenic hill station hotel with modern amenities and exceptional service.",
		Image:       "/placeholder.jpg", Status: "active", LastActivity: "1 hour ago",
		Manager: telemetry.Manager{Name: "Mohan Raj", Phone: "+91 90476 28844", Email: "mohan.raj@coastalgrand.com", Status: "online"},
	},
}

// RoomCount returns the number of rooms configured for a hotel.
func RoomCount(hotelID string) int {
	if n, ok := roomCounts[hotelID]; ok {
		return n
	}
	return fallbackRoomCount
}

// SeedNumbers returns the room numbers seeded for a hotel: rooms split
// across two floors, 101.. on the first and 201.. on the second.
func SeedNumbers(hotelID string) []string {
	count := RoomCount(hotelID)
	perFloor := (count + 1) / 2

	numbers := make([]string, 0, count)
	for i := 101; i <= 100+perFloor; i++ {
		numbers = append(numbers, fmt.Sprintf("%d", i))
	}
	for i := 201; i <= 200+(count-perFloor); i++ {
		numbers = append(numbers, fmt.Sprintf("%d", i))
	}
	return numbers
}

// Seed idempotently upserts the static hotels and their vacant rooms.
// Existing room state is preserved: the vacant delta is applied only when
// the room record does not exist yet.
func Seed(ctx context.Context, stores Stores, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, hotel := range seedHotels {
		if err := stores.Hotels.Upsert(ctx, hotel); err != nil {
			return fmt.Errorf("seed hotel %s: %w", hotel.ID, err)
		}

		for _, number := range SeedNumbers(hotel.ID) {
			if _, err := stores.Rooms.Get(ctx, hotel.ID, number); err == nil {
				continue // live state already present, leave it alone
			}

			occupant := ""
			delta := telemetry.RoomStateDelta{
				HotelID:      hotel.ID,
				RoomNum:      number,
				Status:       telemetry.StatusVacant,
				OccupantType: &occupant,
				PowerStatus:  telemetry.PowerOff,
			}
			if _, err := stores.Rooms.UpsertState(ctx, delta); err != nil {
				return fmt.Errorf("seed room %s/%s: %w", hotel.ID, number, err)
			}
		}
	}

	logger.Info("seeded hotels and rooms", "hotels", len(seedHotels))
	return nil
}
