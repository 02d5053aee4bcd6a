package mongodb

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shopmart/api/internal/repositories"
)

func TestWrapErrorClassification(t *testing.T) {
	var e *repositories.StoreError

	err := WrapError("orders.find", mongo.ErrNoDocuments)
	if assert.ErrorAs(t, err, &e) {
		assert.True(t, e.IsNotFound())
		assert.False(t, e.IsConflict())
	}

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	err = WrapError("orders.insert", dup)
	if assert.ErrorAs(t, err, &e) {
		assert.Equal(t, repositories.KindConflict, e.Kind)
	}

	err = WrapError("orders.insert", errors.New("boom"))
	if assert.ErrorAs(t, err, &e) {
		assert.Equal(t, repositories.KindInternal, e.Kind)
		assert.Equal(t, "orders.insert: boom", err.Error())
	}
}

func TestWrapErrorPassesThrough(t *testing.T) {
	assert.Nil(t, WrapError("op", nil))
	assert.ErrorIs(t, WrapError("op", fmt.Errorf("wrapped: %w", context.Canceled)), context.Canceled)

	conflict := repositories.Conflict("orders.update", "version %d", 2)
	assert.Same(t, conflict, WrapError("transaction", conflict))
}
