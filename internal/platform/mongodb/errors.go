package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shopmart/api/internal/repositories"
)

// WrapError classifies driver errors under op. Context errors and errors that already carry
// a classification pass through unchanged.
func WrapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case repositories.Classified(err):
		return err
	}

	kind := repositories.KindInternal
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		kind = repositories.KindNotFound
	case mongo.IsDuplicateKeyError(err):
		kind = repositories.KindConflict
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, mongo.ErrClientDisconnected):
		kind = repositories.KindUnavailable
	}
	return repositories.NewStoreError(op, kind, err)
}
