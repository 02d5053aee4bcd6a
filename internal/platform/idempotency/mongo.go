package idempotency

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultMongoCollection = "idempotency_keys"

// MongoStore implements Store on a MongoDB collection keyed by the hashed scoped key.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore constructs a Mongo-backed idempotency store. An empty collection name uses the default.
func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	if collection == "" {
		collection = defaultMongoCollection
	}
	return &MongoStore{coll: db.Collection(collection)}
}

// EnsureIndexes creates the TTL index that lets MongoDB expire records on its own.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
	})
	return err
}

type mongoRecord struct {
	ID              string              `bson:"_id"`
	Key             string              `bson:"key"`
	Fingerprint     string              `bson:"fingerprint"`
	Status          string              `bson:"status"`
	ResponseStatus  int                 `bson:"responseStatus,omitempty"`
	ResponseHeaders map[string][]string `bson:"responseHeaders,omitempty"`
	ResponseBody    []byte              `bson:"responseBody,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt"`
	ExpiresAt       time.Time           `bson:"expiresAt"`
}

func (r mongoRecord) toRecord() Record {
	return Record{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          Status(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

func toMongoRecord(id string, r Record) mongoRecord {
	return mongoRecord{
		ID:              id,
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          string(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

// Reserve inserts a pending record, or reports the state of the existing one.
func (s *MongoStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now, ttl = now.UTC(), effectiveTTL(ttl)
	id := documentID(key)
	pending := newPendingRecord(key, fingerprint, now, ttl)

	_, err := s.coll.InsertOne(ctx, toMongoRecord(id, pending))
	if err == nil {
		return Reservation{State: ReservationStateNew, Record: pending}, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return Reservation{}, err
	}

	// Take over an expired record that the TTL monitor has not removed yet.
	res, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": id, "expiresAt": bson.M{"$lte": now}},
		toMongoRecord(id, pending),
	)
	if err != nil {
		return Reservation{}, err
	}
	if res.MatchedCount == 1 {
		return Reservation{State: ReservationStateNew, Record: pending}, nil
	}

	var existing mongoRecord
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&existing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Reservation{}, errors.New("idempotency: record vanished during reservation")
		}
		return Reservation{}, err
	}
	current := existing.toRecord()
	reservation, _, err := reserve(&current, key, fingerprint, now, ttl)
	return reservation, err
}

// SaveResponse marks the record completed with the response to replay.
func (s *MongoStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now, ttl = now.UTC(), effectiveTTL(ttl)
	id := documentID(key)

	update := bson.M{
		"$set": bson.M{
			"status":          string(StatusCompleted),
			"responseStatus":  resp.Status,
			"responseHeaders": sanitizeHeaders(resp.Headers),
			"responseBody":    resp.Body,
			"updatedAt":       now,
			"expiresAt":       now.Add(ttl),
		},
		"$setOnInsert": bson.M{
			"key":         key,
			"fingerprint": fingerprint,
			"createdAt":   now,
		},
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "fingerprint": fingerprint},
		update,
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// The upsert collided with a record holding another fingerprint.
		return ErrFingerprintMismatch
	}
	if err != nil {
		return err
	}
	return nil
}

// Release removes the reservation so that subsequent attempts may retry.
func (s *MongoStore) Release(ctx context.Context, key, fingerprint string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": documentID(key), "fingerprint": fingerprint})
	return err
}

// CleanupExpired deletes up to limit expired records. The TTL index normally does this already.
func (s *MongoStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	cursor, err := s.coll.Find(ctx,
		bson.M{"expiresAt": bson.M{"$lte": now.UTC()}},
		options.Find().SetProjection(bson.M{"_id": 1}).SetLimit(int64(limit)),
	)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}
