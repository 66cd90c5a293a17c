package cart

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"storefront/internal/db"
	"storefront/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type cartDoc struct {
	OwnerKey  string        `bson:"_id"`
	Items     []cartItemDoc `bson:"items"`
	Version   int64         `bson:"version"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type cartItemDoc struct {
	ProductID string    `bson:"product_id"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

type mongoRepo struct {
	carts  *mongo.Collection
	orders *mongo.Collection
	logger *log.Logger
	now    func() time.Time
}

// NewMongo returns a cart repository over the carts collection. Mongo order
// placement clears the consumed cart after the order is durable; if that
// clear is lost, Get finishes it by emptying any cart whose version was
// already turned into an order.
func NewMongo(database *mongo.Database, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &mongoRepo{
		carts:  database.Collection(db.CartsCollection),
		orders: database.Collection(db.OrdersCollection),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *mongoRepo) Get(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	c, err := r.find(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return c, nil
	}

	consumed, err := r.orders.CountDocuments(ctx, bson.M{"owner_key": owner.String(), "cart_version": c.Version})
	if err != nil {
		r.logger.Printf("cart repo: reconcile lookup owner=%s error=%v", owner, err)
		return nil, err
	}
	if consumed == 0 {
		return c, nil
	}

	r.logger.Printf("cart repo: clearing cart owner=%s version=%d already ordered", owner, c.Version)
	c.Clear()
	saved, err := r.Save(ctx, *c)
	if errors.Is(err, domain.ErrConflict) {
		return r.find(ctx, owner)
	}
	return saved, err
}

func (r *mongoRepo) Save(ctx context.Context, c domain.Cart) (*domain.Cart, error) {
	now := r.now()
	items := make([]cartItemDoc, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, cartItemDoc{ProductID: item.ProductID, Quantity: item.Quantity, AddedAt: item.AddedAt})
	}

	if c.Version == 0 {
		doc := cartDoc{OwnerKey: c.Owner.String(), Items: items, Version: 1, CreatedAt: now, UpdatedAt: now}
		if _, err := r.carts.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, domain.ErrConflict
			}
			r.logger.Printf("cart repo: insert owner=%s error=%v", c.Owner, err)
			return nil, err
		}
		return doc.toDomain()
	}

	res, err := r.carts.UpdateOne(ctx,
		bson.M{"_id": c.Owner.String(), "version": c.Version},
		bson.M{
			"$set": bson.M{"items": items, "updated_at": now},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		r.logger.Printf("cart repo: save owner=%s version=%d error=%v", c.Owner, c.Version, err)
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrConflict
	}

	c.Version++
	c.UpdatedAt = now
	if c.Items == nil {
		c.Items = []domain.CartItem{}
	}
	return &c, nil
}

func (r *mongoRepo) find(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	var doc cartDoc
	if err := r.carts.FindOne(ctx, bson.M{"_id": owner.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCartNotFound
		}
		r.logger.Printf("cart repo: get owner=%s error=%v", owner, err)
		return nil, err
	}
	return doc.toDomain()
}

func (d cartDoc) toDomain() (*domain.Cart, error) {
	owner, err := domain.ParseOwnerKey(d.OwnerKey)
	if err != nil {
		return nil, err
	}
	c := &domain.Cart{
		Owner:     owner,
		Items:     make([]domain.CartItem, 0, len(d.Items)),
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, item := range d.Items {
		c.Items = append(c.Items, domain.CartItem{ProductID: item.ProductID, Quantity: item.Quantity, AddedAt: item.AddedAt})
	}
	return c, nil
}
