package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultTxAttempts = 5
	defaultTxTimeout  = 15 * time.Second
	defaultTxOp       = "transaction"
)

// TxFunc is executed within a Firestore transaction. Firestore requires every read to
// happen before the first write, and fn may be invoked more than once on contention,
// so fn must reset any state it captures.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption customises transaction behaviour.
type TxOption func(*txConfig)

type txConfig struct {
	op       string
	attempts int
	timeout  time.Duration
	readOnly bool
}

// WithTxOperation labels errors from the transaction, e.g. "orders.place".
func WithTxOperation(op string) TxOption {
	return func(cfg *txConfig) {
		if op != "" {
			cfg.op = op
		}
	}
}

// WithTxAttempts overrides the retry attempts for a transaction.
func WithTxAttempts(attempts int) TxOption {
	return func(cfg *txConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the whole transaction including retries.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithTxReadOnly runs a consistent multi-document read without taking write locks.
func WithTxReadOnly() TxOption {
	return func(cfg *txConfig) {
		cfg.readOnly = true
	}
}

// RunTransaction executes fn within a transaction on client. Errors returned by fn keep
// their classification; driver errors are classified under the configured operation.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	cfg := txConfig{op: defaultTxOp, attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	switch {
	case client == nil:
		return WrapError(cfg.op, errors.New("firestore: client is nil"))
	case fn == nil:
		return WrapError(cfg.op, errors.New("firestore: transaction function is nil"))
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > cfg.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	txOpts := []firestore.TransactionOption{firestore.MaxAttempts(cfg.attempts)}
	if cfg.readOnly {
		txOpts = append(txOpts, firestore.ReadOnly)
	}
	return WrapError(cfg.op, client.RunTransaction(ctx, fn, txOpts...))
}

// TxGet reads and decodes one document of c inside tx. found is false when the document
// does not exist; ref is returned either way so the caller can write it later in tx.
func TxGet[T any](ctx context.Context, tx *firestore.Transaction, c *Collection[T], id string) (value T, ref *firestore.DocumentRef, found bool, err error) {
	ref, err = c.Doc(ctx, id)
	if err != nil {
		return value, nil, false, err
	}
	snap, err := tx.Get(ref)
	if status.Code(err) == codes.NotFound {
		return value, ref, false, nil
	}
	if err != nil {
		return value, ref, false, err
	}
	value, err = c.Decode(snap)
	if err != nil {
		return value, ref, false, err
	}
	return value, ref, true, nil
}

// TxExists reports whether id exists in c, reading it inside tx, and returns its ref.
func TxExists[T any](ctx context.Context, tx *firestore.Transaction, c *Collection[T], id string) (*firestore.DocumentRef, bool, error) {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return nil, false, err
	}
	_, err = tx.Get(ref)
	switch status.Code(err) {
	case codes.OK:
		return ref, true, nil
	case codes.NotFound:
		return ref, false, nil
	default:
		return ref, false, err
	}
}
