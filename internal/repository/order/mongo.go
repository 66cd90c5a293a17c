package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"storefront/internal/db"
	"storefront/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type orderDoc struct {
	ID              string               `bson:"_id"`
	OwnerKey        string               `bson:"owner_key"`
	Items           []orderItemDoc       `bson:"items"`
	Total           primitive.Decimal128 `bson:"total"`
	Status          string               `bson:"status"`
	ShippingAddress *domain.Address      `bson:"shipping_address,omitempty"`
	CartVersion     int64                `bson:"cart_version"`
	IdempotencyKey  *string              `bson:"idempotency_key,omitempty"`
	CreatedAt       time.Time            `bson:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at"`
}

type orderItemDoc struct {
	ProductID string               `bson:"product_id"`
	Name      string               `bson:"name"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
	LineTotal primitive.Decimal128 `bson:"line_total"`
}

type mongoRepo struct {
	orders   *mongo.Collection
	products *mongo.Collection
	carts    *mongo.Collection
	logger   *log.Logger
	now      func() time.Time
}

// NewMongo returns an order repository that places orders without
// multi-document transactions: stock is decremented per product and undone
// if the order cannot be stored, then the order is inserted, then the cart is
// cleared. A failed clear leaves a durable order; the cart repository empties
// the cart on its next read.
func NewMongo(database *mongo.Database, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &mongoRepo{
		orders:   database.Collection(db.OrdersCollection),
		products: database.Collection(db.ProductsCollection),
		carts:    database.Collection(db.CartsCollection),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *mongoRepo) Place(ctx context.Context, o domain.Order) (*domain.Order, error) {
	now := r.now()
	o.CreatedAt, o.UpdatedAt = now, now
	doc, err := toDoc(o)
	if err != nil {
		return nil, err
	}

	// Without a multi-document transaction the cart version is checked up
	// front so a stale snapshot never touches stock.
	n, err := r.carts.CountDocuments(ctx, bson.M{"_id": o.Owner.String(), "version": o.CartVersion})
	if err != nil {
		r.logger.Printf("order repo: check cart owner=%s error=%v", o.Owner, err)
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrConflict
	}

	var decremented []domain.OrderItem
	for _, item := range byProductID(o.Items) {
		res, err := r.products.UpdateOne(ctx,
			bson.M{"_id": item.ProductID, "stock": bson.M{"$gte": item.Quantity}},
			bson.M{"$inc": bson.M{"stock": -item.Quantity}, "$set": bson.M{"updated_at": now}},
		)
		if err != nil {
			r.restoreStock(decremented)
			r.logger.Printf("order repo: decrement stock product=%s error=%v", item.ProductID, err)
			return nil, err
		}
		if res.MatchedCount == 0 {
			r.restoreStock(decremented)
			n, err := r.products.CountDocuments(ctx, bson.M{"_id": item.ProductID})
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, domain.ErrPriceUnavailable
			}
			return nil, domain.ErrInsufficientStock
		}
		decremented = append(decremented, item)
	}

	if _, err := r.orders.InsertOne(ctx, doc); err != nil {
		r.restoreStock(decremented)
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Printf("order repo: insert id=%s owner=%s error=%v", o.ID, o.Owner, err)
		return nil, err
	}

	res, err := r.carts.UpdateOne(ctx,
		bson.M{"_id": o.Owner.String(), "version": o.CartVersion},
		bson.M{"$set": bson.M{"items": bson.A{}, "updated_at": now}, "$inc": bson.M{"version": 1}},
	)
	switch {
	case err != nil:
		r.logger.Printf("order repo: clear cart owner=%s order=%s deferred error=%v", o.Owner, o.ID, err)
	case res.MatchedCount == 0:
		r.logger.Printf("order repo: clear cart owner=%s order=%s skipped, cart moved past version %d", o.Owner, o.ID, o.CartVersion)
	}

	r.logger.Printf("order repo: placed id=%s owner=%s total=%s", o.ID, o.Owner, o.Total)
	return doc.toDomain()
}

// restoreStock undoes decrements made by a Place that did not complete. It
// runs detached from the request context so a cancelled request still
// compensates.
func (r *mongoRepo) restoreStock(items []domain.OrderItem) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, item := range items {
		if _, err := r.products.UpdateOne(ctx, bson.M{"_id": item.ProductID}, bson.M{"$inc": bson.M{"stock": item.Quantity}}); err != nil {
			r.logger.Printf("order repo: restore stock product=%s qty=%d error=%v", item.ProductID, item.Quantity, err)
		}
	}
}

func (r *mongoRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoRepo) GetByIdempotencyKey(ctx context.Context, owner domain.OwnerKey, key string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"owner_key": owner.String(), "idempotency_key": key})
}

func (r *mongoRepo) ListByOwner(ctx context.Context, owner domain.OwnerKey) ([]domain.Order, error) {
	cur, err := r.orders.Find(ctx, bson.M{"owner_key": owner.String()},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		r.logger.Printf("order repo: list owner=%s error=%v", owner, err)
		return nil, err
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	return result, nil
}

func (r *mongoRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	var d orderDoc
	err := r.orders.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": r.now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err == nil {
		return d.toDomain()
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		r.logger.Printf("order repo: update status id=%s error=%v", id, err)
		return nil, err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, domain.ErrConflict
}

func (r *mongoRepo) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var d orderDoc
	if err := r.orders.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOrderNotFound
		}
		r.logger.Printf("order repo: find error=%v", err)
		return nil, err
	}
	return d.toDomain()
}

func toDoc(o domain.Order) (orderDoc, error) {
	total, err := toDecimal128(o.Total)
	if err != nil {
		return orderDoc{}, err
	}
	d := orderDoc{
		ID:              o.ID,
		OwnerKey:        o.Owner.String(),
		Items:           make([]orderItemDoc, 0, len(o.Items)),
		Total:           total,
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		CartVersion:     o.CartVersion,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.IdempotencyKey != "" {
		key := o.IdempotencyKey
		d.IdempotencyKey = &key
	}
	for _, item := range o.Items {
		unit, err := toDecimal128(item.UnitPrice)
		if err != nil {
			return orderDoc{}, err
		}
		line, err := toDecimal128(item.LineTotal)
		if err != nil {
			return orderDoc{}, err
		}
		d.Items = append(d.Items, orderItemDoc{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: unit,
			LineTotal: line,
		})
	}
	return d, nil
}

func (d orderDoc) toDomain() (*domain.Order, error) {
	owner, err := domain.ParseOwnerKey(d.OwnerKey)
	if err != nil {
		return nil, err
	}
	total, err := decimal.NewFromString(d.Total.String())
	if err != nil {
		return nil, fmt.Errorf("order %s: decode total: %w", d.ID, err)
	}
	o := &domain.Order{
		ID:              d.ID,
		Owner:           owner,
		Items:           make([]domain.OrderItem, 0, len(d.Items)),
		Total:           total,
		Status:          domain.OrderStatus(d.Status),
		ShippingAddress: d.ShippingAddress,
		CartVersion:     d.CartVersion,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.IdempotencyKey != nil {
		o.IdempotencyKey = *d.IdempotencyKey
	}
	for _, item := range d.Items {
		unit, err := decimal.NewFromString(item.UnitPrice.String())
		if err != nil {
			return nil, fmt.Errorf("order %s: decode unit price: %w", d.ID, err)
		}
		line, err := decimal.NewFromString(item.LineTotal.String())
		if err != nil {
			return nil, fmt.Errorf("order %s: decode line total: %w", d.ID, err)
		}
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: unit,
			LineTotal: line,
		})
	}
	return o, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal %s: %w", d, err)
	}
	return v, nil
}
