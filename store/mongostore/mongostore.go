// Package mongostore provides the MongoDB persistence gateway used in
// production. Upsert keys are enforced with unique indexes created at
// connect time; append-only logs are plain inserts read back newest
// first.
package mongostore

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coastalgrand/roomstream/errors"
	"github.com/coastalgrand/roomstream/store"
	"github.com/coastalgrand/roomstream/telemetry"
)

const connectTimeout = 30 * time.Second

// Collection names
const (
	collRooms      = "rooms"
	collDevices    = "devices"
	collPresence   = "presence"
	collAttendance = "attendances"
	collDenials    = "denied_access"
	collActivity   = "activities"
	collHotels     = "hotels"
	collAlerts     = "alerts"
	collUsers      = "users"
	collCards      = "cards"
)

// Config holds the MongoDB connection settings.
type Config struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

// Store wraps one MongoDB database holding all collections.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// Connect establishes the MongoDB connection, verifies it with a ping
// and ensures the upsert-key indexes exist.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "mongostore", "Connect", "URI required")
	}
	if cfg.Database == "" {
		cfg.Database = "roomstream"
	}
	if logger == nil {
		logger = slog.Default()
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, errors.WrapTransient(err, "mongostore", "Connect", "connect to MongoDB")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, errors.WrapTransient(err, "mongostore", "Connect", "ping MongoDB")
	}

	s := &Store{
		client: client,
		db:     client.Database(cfg.Database),
		logger: logger.With("component", "mongostore"),
	}
	s.ensureIndexes(connectCtx)

	s.logger.Info("connected", "database", cfg.Database)
	return s, nil
}

// ensureIndexes creates the unique indexes backing upsert keys and the
// hotel indexes backing list queries. Failures are logged, not fatal;
// the deployment may lack index privileges.
func (s *Store) ensureIndexes(ctx context.Context) {
	unique := func(coll string, keys bson.D) {
		_, err := s.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    keys,
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			s.logger.Warn("index creation failed", "collection", coll, "error", err)
		}
	}
	plain := func(coll string, keys bson.D) {
		_, err := s.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys})
		if err != nil {
			s.logger.Warn("index creation failed", "collection", coll, "error", err)
		}
	}

	unique(collRooms, bson.D{{Key: "hotelId", Value: 1}, {Key: "number", Value: 1}})
	unique(collDevices, bson.D{{Key: "deviceId", Value: 1}})
	unique(collPresence, bson.D{{Key: "hotelId", Value: 1}, {Key: "card_uid", Value: 1}, {Key: "room", Value: 1}})
	unique(collHotels, bson.D{{Key: "id", Value: 1}})
	plain(collAttendance, bson.D{{Key: "hotelId", Value: 1}, {Key: "createdAt", Value: -1}})
	plain(collDenials, bson.D{{Key: "hotelId", Value: 1}})
	plain(collActivity, bson.D{{Key: "hotelId", Value: 1}})
	plain(collAlerts, bson.D{{Key: "hotelId", Value: 1}, {Key: "createdAt", Value: -1}})
	plain(collUsers, bson.D{{Key: "hotelId", Value: 1}})
	plain(collCards, bson.D{{Key: "hotelId", Value: 1}})
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, "mongostore", "Close", "disconnect")
	}
	return nil
}

// Stores returns the aggregate repository view backed by this database.
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Rooms:      &roomRepo{coll: s.db.Collection(collRooms)},
		Devices:    &deviceRepo{coll: s.db.Collection(collDevices)},
		Presence:   &presenceRepo{coll: s.db.Collection(collPresence)},
		Attendance: &attendanceRepo{coll: s.db.Collection(collAttendance)},
		Denials:    &denialRepo{coll: s.db.Collection(collDenials)},
		Activity:   &activityRepo{coll: s.db.Collection(collActivity)},
		Hotels:     &hotelRepo{coll: s.db.Collection(collHotels)},
		Alerts:     &alertRepo{coll: s.db.Collection(collAlerts)},
		Users:      &userRepo{coll: s.db.Collection(collUsers)},
		Cards:      &cardRepo{coll: s.db.Collection(collCards)},
	}
}

// roomRepo implements store.RoomRepository.
type roomRepo struct{ coll *mongo.Collection }

func (r *roomRepo) UpsertState(ctx context.Context, delta telemetry.RoomStateDelta) (telemetry.RoomState, error) {
	set := bson.M{
		"hotelId":     delta.HotelID,
		"number":      delta.RoomNum,
		"status":      delta.Status,
		"powerStatus": delta.PowerStatus,
	}
	if delta.OccupantType != nil {
		set["occupantType"] = *delta.OccupantType
	} else {
		set["occupantType"] = ""
	}
	// Partial $set keeps the sticky flag when the delta does not carry it
	if delta.HasMasterKey != nil {
		set["hasMasterKey"] = *delta.HasMasterKey
	}

	filter := bson.M{"hotelId": delta.HotelID, "number": delta.RoomNum}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var state telemetry.RoomState
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&state)
	if err != nil {
		return telemetry.RoomState{}, errors.WrapTransient(err, "roomRepo", "UpsertState", "upsert room")
	}
	return state, nil
}

func (r *roomRepo) Get(ctx context.Context, hotelID, number string) (telemetry.RoomState, error) {
	var state telemetry.RoomState
	err := r.coll.FindOne(ctx, bson.M{"hotelId": hotelID, "number": number}).Decode(&state)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return telemetry.RoomState{}, errors.ErrRecordNotFound
		}
		return telemetry.RoomState{}, errors.WrapTransient(err, "roomRepo", "Get", "find room")
	}
	return state, nil
}

func (r *roomRepo) ListByHotel(ctx context.Context, hotelID string) ([]telemetry.RoomState, error) {
	opts := options.Find().SetSort(bson.D{{Key: "number", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"hotelId": hotelID}, opts)
	if err != nil {
		return nil, errors.WrapTransient(err, "roomRepo", "ListByHotel", "find rooms")
	}
	defer cursor.Close(ctx)

	var rooms []telemetry.RoomState
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, errors.WrapTransient(err, "roomRepo", "ListByHotel", "decode rooms")
	}
	return rooms, nil
}

// deviceRepo implements store.DeviceRepository.
type deviceRepo struct{ coll *mongo.Collection }

func (r *deviceRepo) Upsert(ctx context.Context, rec telemetry.DeviceRecord) error {
	filter := bson.M{"deviceId": rec.DeviceID}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, filter, rec, opts); err != nil {
		return errors.WrapTransient(err, "deviceRepo", "Upsert", "upsert device")
	}
	return nil
}

// presenceRepo implements store.PresenceRepository.
type presenceRepo struct{ coll *mongo.Collection }

func (r *presenceRepo) Upsert(ctx context.Context, rec telemetry.PresenceRecord) error {
	filter := bson.M{"hotelId": rec.HotelID, "card_uid": rec.CardUID, "room": rec.Room}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, filter, rec, opts); err != nil {
		return errors.WrapTransient(err, "presenceRepo", "Upsert", "upsert presence")
	}
	return nil
}

// attendanceRepo implements store.AttendanceRepository.
type attendanceRepo struct{ coll *mongo.Collection }

func (r *attendanceRepo) Append(ctx context.Context, rec telemetry.AttendanceRecord) error {
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return errors.WrapTransient(err, "attendanceRepo", "Append", "insert attendance")
	}
	return nil
}

func (r *attendanceRepo) ListByHotel(ctx context.Context, hotelID string) ([]telemetry.AttendanceRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"hotelId": hotelID}, opts)
	if err != nil {
		return nil, errors.WrapTransient(err, "attendanceRepo", "ListByHotel", "find attendance")
	}
	defer cursor.Close(ctx)

	var recs []telemetry.AttendanceRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, errors.WrapTransient(err, "attendanceRepo", "ListByHotel", "decode attendance")
	}
	return recs, nil
}

// denialRepo implements store.DenialRepository.
type denialRepo struct{ coll *mongo.Collection }

func (r *denialRepo) Append(ctx context.Context, entry telemetry.DenialLogEntry) error {
	if _, err := r.coll.InsertOne(ctx, bson.M(entry)); err != nil {
		return errors.WrapTransient(err, "denialRepo", "Append", "insert denial")
	}
	return nil
}

func (r *denialRepo) ListByHotel(ctx context.Context, hotelID string) ([]telemetry.DenialLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"hotelId": hotelID}, opts)
	if err != nil {
		return nil, errors.WrapTransient(err, "denialRepo", "ListByHotel", "find denials")
	}
	defer cursor.Close(ctx)

	var entries []telemetry.DenialLogEntry
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.WrapTransient(err, "denialRepo", "ListByHotel", "decode denial")
		}
		delete(doc, "_id")
		entries = append(entries, telemetry.DenialLogEntry(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.WrapTransient(err, "denialRepo", "ListByHotel", "iterate denials")
	}
	return entries, nil
}

// activityRepo implements store.ActivityRepository.
type activityRepo struct{ coll *mongo.Collection }

func (r *activityRepo) Append(ctx context.Context, entry telemetry.ActivityLogEntry) error {
	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return errors.WrapTransient(err, "activityRepo", "Append", "insert activity")
	}
	return nil
}

func (r *activityRepo) ListByHotel(ctx context.Context, hotelID string) ([]telemetry.ActivityLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"hotelId": hotelID}, opts)
	if err != nil {
		return nil, errors.WrapTransient(err, "activityRepo", "ListByHotel", "find activity")
	}
	defer cursor.Close(ctx)

	var entries []telemetry.ActivityLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, errors.WrapTransient(err, "activityRepo", "ListByHotel", "decode activity")
	}
	return entries, nil
}

// hotelRepo implements store.HotelRepository.
type hotelRepo struct{ coll *mongo.Collection }

func (r *hotelRepo) Upsert(ctx context.Context, hotel telemetry.Hotel) error {
	filter := bson.M{"id": hotel.ID}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, filter, hotel, opts); err != nil {
		return errors.WrapTransient(err, "hotelRepo", "Upsert", "upsert hotel")
	}
	return nil
}

func (r *hotelRepo) Get(ctx context.Context, id string) (telemetry.Hotel, error) {
	var hotel telemetry.Hotel
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&hotel)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return telemetry.Hotel{}, errors.ErrRecordNotFound
		}
		return telemetry.Hotel{}, errors.WrapTransient(err, "hotelRepo", "Get", "find hotel")
	}
	return hotel, nil
}

func (r *hotelRepo) List(ctx context.Context) ([]telemetry.Hotel, error) {
	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.WrapTransient(err, "hotelRepo", "List", "find hotels")
	}
	defer cursor.Close(ctx)

	var hotels []telemetry.Hotel
	if err := cursor.All(ctx, &hotels); err != nil {
		return nil, errors.WrapTransient(err, "hotelRepo", "List", "decode hotels")
	}
	return hotels, nil
}

// alertRepo implements store.AlertRepository. Alerts are written by the
// fleet-management tooling; this service only reads them.
type alertRepo struct{ coll *mongo.Collection }

func (r *alertRepo) ListByHotel(ctx context.Context, hotelID string) ([]telemetry.AlertRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"hotelId": hotelID}, opts)
	if err != nil {
		return nil, errors.WrapTransient(err, "alertRepo", "ListByHotel", "find alerts")
	}
	defer cursor.Close(ctx)

	var recs []telemetry.AlertRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, errors.WrapTransient(err, "alertRepo", "ListByHotel", "decode alerts")
	}
	return recs, nil
}

// userRepo implements store.UserRepository.
type userRepo struct{ coll *mongo.Collection }

func (r *userRepo) ListByHotel(ctx context.Context, hotelID string) ([]telemetry.UserRecord, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"hotelId": hotelID})
	if err != nil {
		return nil, errors.WrapTransient(err, "userRepo", "ListByHotel", "find users")
	}
	defer cursor.Close(ctx)

	var recs []telemetry.UserRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, errors.WrapTransient(err, "userRepo", "ListByHotel", "decode users")
	}
	return recs, nil
}

// cardRepo implements store.CardRepository.
type cardRepo struct{ coll *mongo.Collection }

func (r *cardRepo) ListByHotel(ctx context.Context, hotelID string) ([]telemetry.CardRecord, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"hotelId": hotelID})
	if err != nil {
		return nil, errors.WrapTransient(err, "cardRepo", "ListByHotel", "find cards")
	}
	defer cursor.Close(ctx)

	var recs []telemetry.CardRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, errors.WrapTransient(err, "cardRepo", "ListByHotel", "decode cards")
	}
	return recs, nil
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
