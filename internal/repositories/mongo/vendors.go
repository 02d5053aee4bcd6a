package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/platform/mongodb"
	"github.com/shopmart/api/internal/repositories"
)

// VendorRepository resolves vendors and applies idempotent stats increments.
type VendorRepository struct {
	client  *mongodb.Client
	vendors *mongo.Collection
	applied *mongo.Collection
	clock   func() time.Time
}

var _ repositories.VendorRepository = (*VendorRepository)(nil)

// NewVendorRepository constructs the MongoDB vendor repository.
func NewVendorRepository(client *mongodb.Client) (*VendorRepository, error) {
	if client == nil {
		return nil, errors.New("vendor repository requires mongodb client")
	}
	db := client.Database()
	return &VendorRepository{
		client:  client,
		vendors: db.Collection(vendorsCollection),
		applied: db.Collection(statsAppliedCollection),
		clock:   time.Now,
	}, nil
}

func (r *VendorRepository) FindByID(ctx context.Context, vendorID string) (domain.Vendor, error) {
	return r.findOne(ctx, "mongo.vendors.find", bson.M{"_id": vendorID})
}

func (r *VendorRepository) FindByOwner(ctx context.Context, userID string) (domain.Vendor, error) {
	return r.findOne(ctx, "mongo.vendors.findByOwner", bson.M{"userId": userID})
}

func (r *VendorRepository) findOne(ctx context.Context, op string, filter bson.M) (domain.Vendor, error) {
	var doc vendorDocument
	if err := r.vendors.FindOne(ctx, filter).Decode(&doc); err != nil {
		return domain.Vendor{}, mongodb.WrapError(op, err)
	}
	return doc.toDomain(), nil
}

// IncrementStats inserts the key marker in the same transaction as the $inc, so a
// replayed key never double counts.
func (r *VendorRepository) IncrementStats(ctx context.Context, key, vendorID string, inc repositories.VendorStatsIncrement) (bool, error) {
	const op = "mongo.vendors.incrementStats"
	var applied bool
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		applied = false
		n, err := r.applied.CountDocuments(sessCtx, bson.M{"_id": key}, options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		now := r.clock().UTC()
		res, err := r.vendors.UpdateOne(sessCtx, bson.M{"_id": vendorID}, bson.M{
			"$inc": bson.M{"totalOrders": inc.Orders, "totalRevenue": inc.Revenue},
			"$set": bson.M{"updatedAt": now},
		})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return repositories.NotFound(op, "vendor %s not found", vendorID)
		}
		if _, err := r.applied.InsertOne(sessCtx, statsAppliedDocument{
			Key:       key,
			VendorID:  vendorID,
			Orders:    inc.Orders,
			Revenue:   inc.Revenue,
			AppliedAt: now,
		}); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, mongodb.WrapError(op, err)
	}
	return applied, nil
}

// PutVendor upserts a vendor document. Used for seeding.
func (r *VendorRepository) PutVendor(ctx context.Context, vendor domain.Vendor) error {
	_, err := r.vendors.ReplaceOne(ctx, bson.M{"_id": vendor.ID}, newVendorDocument(vendor), options.Replace().SetUpsert(true))
	return mongodb.WrapError("mongo.vendors.put", err)
}
