package firestore

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shopmart/api/internal/repositories"
)

func TestWrapErrorClassifiesGRPCCodes(t *testing.T) {
	cases := map[codes.Code]repositories.ErrorKind{
		codes.NotFound:           repositories.KindNotFound,
		codes.AlreadyExists:      repositories.KindConflict,
		codes.Aborted:            repositories.KindConflict,
		codes.FailedPrecondition: repositories.KindConflict,
		codes.Unavailable:        repositories.KindUnavailable,
		codes.ResourceExhausted:  repositories.KindUnavailable,
		codes.PermissionDenied:   repositories.KindInternal,
	}
	for code, want := range cases {
		t.Run(code.String(), func(t *testing.T) {
			err := WrapError("orders.get", status.Error(code, "boom"))
			var e *repositories.StoreError
			if !errors.As(err, &e) {
				t.Fatalf("expected *StoreError, got %T", err)
			}
			if e.Kind != want || e.Op != "orders.get" {
				t.Fatalf("expected %s under orders.get, got %s under %s", want, e.Kind, e.Op)
			}
		})
	}
}

func TestWrapErrorPassesThroughContextAndClassifiedErrors(t *testing.T) {
	if err := WrapError("op", status.Error(codes.Canceled, "x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WrapError("op", context.DeadlineExceeded); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	conflict := repositories.Conflict("orders.update", "version %d", 3)
	if got := WrapError("transaction", conflict); got != conflict {
		t.Fatalf("expected classified error to pass through unchanged, got %v", got)
	}
	stock := repositories.NewInsufficientStockError("orders.place", "p1", 3, 1)
	if got := WrapError("transaction", stock); got != error(stock) {
		t.Fatalf("expected inventory error to pass through, got %v", got)
	}
	if WrapError("op", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
