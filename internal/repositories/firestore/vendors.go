package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/shopmart/api/internal/domain"
	pfirestore "github.com/shopmart/api/internal/platform/firestore"
	"github.com/shopmart/api/internal/repositories"
)

// VendorRepository resolves vendors and applies idempotent stats increments.
type VendorRepository struct {
	provider *pfirestore.Provider
	vendors  *pfirestore.Collection[domain.Vendor]
	applied  *pfirestore.Collection[statsAppliedDocument]
	clock    func() time.Time
}

var _ repositories.VendorRepository = (*VendorRepository)(nil)

// NewVendorRepository constructs the Firestore vendor repository.
func NewVendorRepository(provider *pfirestore.Provider) (*VendorRepository, error) {
	if provider == nil {
		return nil, errors.New("vendor repository requires firestore provider")
	}
	return &VendorRepository{
		provider: provider,
		vendors: pfirestore.NewCollection(provider, vendorsCollection, pfirestore.Codec[domain.Vendor]{
			Encode: func(v domain.Vendor) any { return newVendorDocument(v) },
			Decode: func(snap *firestore.DocumentSnapshot) (domain.Vendor, error) {
				var doc vendorDocument
				if err := snap.DataTo(&doc); err != nil {
					return domain.Vendor{}, err
				}
				return doc.toDomain(snap.Ref.ID), nil
			},
		}),
		applied: pfirestore.NewCollection(provider, statsAppliedCollection, pfirestore.Codec[statsAppliedDocument]{}),
		clock:   time.Now,
	}, nil
}

func (r *VendorRepository) FindByID(ctx context.Context, vendorID string) (domain.Vendor, error) {
	return r.vendors.Get(ctx, vendorID)
}

func (r *VendorRepository) FindByOwner(ctx context.Context, userID string) (domain.Vendor, error) {
	return r.vendors.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID)
	})
}

// IncrementStats records key in vendorStatsApplied in the same transaction as the
// counter increment, so a replayed key never double counts.
func (r *VendorRepository) IncrementStats(ctx context.Context, key, vendorID string, inc repositories.VendorStatsIncrement) (bool, error) {
	const op = "firestore.vendors.incrementStats"
	var applied bool
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false
		markerRef, seen, err := pfirestore.TxExists(ctx, tx, r.applied, key)
		if err != nil || seen {
			return err
		}
		vendorRef, exists, err := pfirestore.TxExists(ctx, tx, r.vendors, vendorID)
		if err != nil {
			return err
		}
		if !exists {
			return repositories.NotFound(op, "vendor %s not found", vendorID)
		}

		now := r.clock().UTC()
		if err := tx.Update(vendorRef, []firestore.Update{
			{Path: "totalOrders", Value: firestore.Increment(inc.Orders)},
			{Path: "totalRevenue", Value: firestore.Increment(inc.Revenue)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		if err := tx.Create(markerRef, statsAppliedDocument{
			VendorID:  vendorID,
			Orders:    inc.Orders,
			Revenue:   inc.Revenue,
			AppliedAt: now,
		}); err != nil {
			return err
		}
		applied = true
		return nil
	}, pfirestore.WithTxOperation(op))
	if err != nil {
		return false, err
	}
	return applied, nil
}

// PutVendor writes a vendor document, replacing any existing one. Used for seeding.
func (r *VendorRepository) PutVendor(ctx context.Context, vendor domain.Vendor) error {
	return r.vendors.Set(ctx, vendor.ID, vendor)
}
