package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shopmart/api/internal/repositories"
)

// kindForCode maps gRPC status codes returned by Firestore onto repository error kinds.
func kindForCode(code codes.Code) repositories.ErrorKind {
	switch code {
	case codes.NotFound:
		return repositories.KindNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return repositories.KindConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return repositories.KindUnavailable
	default:
		return repositories.KindInternal
	}
}

// WrapError classifies a Firestore error under op. Context cancellations, including their
// gRPC forms, and errors that are already classified pass through.
func WrapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case status.Code(err) == codes.Canceled:
		return context.Canceled
	case status.Code(err) == codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case repositories.Classified(err):
		return err
	}
	return repositories.NewStoreError(op, kindForCode(status.Code(err)), err)
}
