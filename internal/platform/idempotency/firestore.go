package idempotency

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection   = "idempotencyKeys"
	defaultMaxAttempts  = 5
	defaultCleanupBatch = 100
)

// FirestoreOption customises the FirestoreStore behaviour.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name used to store idempotency keys.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// WithMaxAttempts configures the transaction retry attempts.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(store *FirestoreStore) {
		if attempts > 0 {
			store.maxAttempts = attempts
		}
	}
}

// FirestoreStore implements Store on a Firestore collection. Every read-modify-write runs in a
// transaction so two replicas cannot both win the same key.
type FirestoreStore struct {
	client      *firestore.Client
	collection  string
	maxAttempts int
}

func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	store := &FirestoreStore{
		client:      client,
		collection:  defaultCollection,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(documentID(key))
}

// update loads the current record inside a transaction and hands it to fn. A nil record means
// the document does not exist.
func (s *FirestoreStore) update(ctx context.Context, key string, fn func(tx *firestore.Transaction, ref *firestore.DocumentRef, current *Record) error) error {
	ref := s.doc(key)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return fn(tx, ref, nil)
		}
		if err != nil {
			return err
		}
		var doc firestoreRecord
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode idempotency record: %w", err)
		}
		current := doc.toRecord()
		return fn(tx, ref, &current)
	}, firestore.MaxAttempts(s.maxAttempts))
}

func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now, ttl = now.UTC(), effectiveTTL(ttl)

	var result Reservation
	err := s.update(ctx, key, func(tx *firestore.Transaction, ref *firestore.DocumentRef, current *Record) error {
		res, write, err := reserve(current, key, fingerprint, now, ttl)
		if err != nil {
			return err
		}
		if write {
			if err := tx.Set(ref, toFirestoreRecord(res.Record)); err != nil {
				return err
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return result, nil
}

func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now, ttl = now.UTC(), effectiveTTL(ttl)
	return s.update(ctx, key, func(tx *firestore.Transaction, ref *firestore.DocumentRef, current *Record) error {
		record, err := complete(current, key, fingerprint, resp, now, ttl)
		if err != nil {
			return err
		}
		return tx.Set(ref, toFirestoreRecord(record))
	})
}

// Release deletes the reservation when it still belongs to fingerprint.
func (s *FirestoreStore) Release(ctx context.Context, key, fingerprint string) error {
	return s.update(ctx, key, func(tx *firestore.Transaction, ref *firestore.DocumentRef, current *Record) error {
		if current == nil || current.Fingerprint != fingerprint {
			return nil
		}
		return tx.Delete(ref)
	})
}

// CleanupExpired removes up to limit expired records with a bulk writer.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultCleanupBatch
	}
	docs, err := s.client.Collection(s.collection).
		Where("expires_at", "<=", now.UTC()).
		OrderBy("expires_at", firestore.Asc).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	writer := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := writer.Delete(doc.Ref)
		if err != nil {
			writer.End()
			return 0, err
		}
		jobs = append(jobs, job)
	}
	writer.End()

	removed := 0
	var firstErr error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			if firstErr == nil && status.Code(err) != codes.NotFound {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

type firestoreRecord struct {
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	Status          string              `firestore:"status"`
	ResponseStatus  int                 `firestore:"response_status,omitempty"`
	ResponseHeaders map[string][]string `firestore:"response_headers,omitempty"`
	ResponseBody    []byte              `firestore:"response_body,omitempty"`
	CreatedAt       time.Time           `firestore:"created_at"`
	UpdatedAt       time.Time           `firestore:"updated_at"`
	ExpiresAt       time.Time           `firestore:"expires_at"`
}

func toFirestoreRecord(r Record) firestoreRecord {
	return firestoreRecord{
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

func (r firestoreRecord) toRecord() Record {
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
