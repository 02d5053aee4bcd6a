package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"

	"github.com/shopmart/api/internal/repositories"
)

const countAlias = "total"

// Codec converts between a domain value and its stored document.
type Codec[T any] struct {
	Encode func(T) any
	Decode func(*firestore.DocumentSnapshot) (T, error)
}

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection provides typed access to one Firestore collection.
type Collection[T any] struct {
	provider *Provider
	name     string
	codec    Codec[T]
}

// NewCollection binds a typed helper to the named collection.
func NewCollection[T any](provider *Provider, name string, codec Codec[T]) *Collection[T] {
	if codec.Encode == nil {
		codec.Encode = func(v T) any { return v }
	}
	if codec.Decode == nil {
		codec.Decode = func(snap *firestore.DocumentSnapshot) (T, error) {
			var target T
			err := snap.DataTo(&target)
			return target, err
		}
	}
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name), codec: codec}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Get fetches and decodes one document.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	return c.Decode(snap)
}

// Set writes the encoded value, replacing any existing document.
func (c *Collection[T]) Set(ctx context.Context, id string, value T) error {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, c.codec.Encode(value)); err != nil {
		return WrapError(c.op("set"), err)
	}
	return nil
}

// Encode returns the stored representation of value for use inside transactions.
func (c *Collection[T]) Encode(value T) any { return c.codec.Encode(value) }

// Decode converts a snapshot fetched elsewhere, such as inside a transaction.
func (c *Collection[T]) Decode(snap *firestore.DocumentSnapshot) (T, error) {
	value, err := c.codec.Decode(snap)
	if err != nil {
		return value, fmt.Errorf("%s: decode %s: %w", c.op("decode"), snap.Ref.ID, err)
	}
	return value, nil
}

// First runs the query with a limit of one and reports a not-found error when it is empty.
func (c *Collection[T]) First(ctx context.Context, build QueryBuilder) (T, error) {
	var zero T
	items, err := c.Query(ctx, func(q firestore.Query) firestore.Query {
		if build != nil {
			q = build(q)
		}
		return q.Limit(1)
	})
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, repositories.NotFound(c.op("first"), "no matching document")
	}
	return items[0], nil
}

// Query executes a collection query and returns the decoded documents.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]T, error) {
	q, err := c.query(ctx, build)
	if err != nil {
		return nil, err
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		value, err := c.Decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

// Count returns the number of documents the query matches using a server-side aggregation.
func (c *Collection[T]) Count(ctx context.Context, build QueryBuilder) (int64, error) {
	q, err := c.query(ctx, build)
	if err != nil {
		return 0, err
	}
	result, err := q.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, WrapError(c.op("count"), err)
	}
	value, ok := result[countAlias].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("%s: unexpected aggregation result %T", c.op("count"), result[countAlias])
	}
	return value.GetIntegerValue(), nil
}

// Doc returns the reference for id, validating it is non-empty.
func (c *Collection[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(c.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := c.ref(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (c *Collection[T]) query(ctx context.Context, build QueryBuilder) (firestore.Query, error) {
	coll, err := c.ref(ctx)
	if err != nil {
		return firestore.Query{}, err
	}
	q := coll.Query
	if build != nil {
		q = build(q)
	}
	return q, nil
}

func (c *Collection[T]) ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, WrapError("firestore.collection", errors.New("firestore: provider is nil"))
	}
	if c.name == "" {
		return nil, WrapError("firestore.collection", errors.New("firestore: collection name is required"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

func (c *Collection[T]) op(action string) string {
	return c.name + "." + action
}
