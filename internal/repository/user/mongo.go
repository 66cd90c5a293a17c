package user

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"storefront/internal/db"
	"storefront/internal/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type userDoc struct {
	ID           string           `bson:"_id"`
	Name         string           `bson:"name"`
	Email        string           `bson:"email"`
	PasswordHash string           `bson:"password_hash"`
	IsAdmin      bool             `bson:"is_admin"`
	Addresses    []domain.Address `bson:"addresses"`
	CreatedAt    time.Time        `bson:"created_at"`
}

type mongoRepo struct {
	coll   *mongo.Collection
	logger *log.Logger
}

// NewMongo returns a Repository over the users collection. Emails are stored
// lower-cased so the unique index is case-insensitive.
func NewMongo(database *mongo.Database, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &mongoRepo{coll: database.Collection(db.UsersCollection), logger: logger}
}

func (r *mongoRepo) Create(ctx context.Context, u domain.User) (*domain.User, error) {
	doc := userDoc{
		ID:           uuid.NewString(),
		Name:         u.Name,
		Email:        strings.ToLower(u.Email),
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		Addresses:    u.Addresses,
		CreatedAt:    time.Now().UTC(),
	}
	if doc.Addresses == nil {
		doc.Addresses = []domain.Address{}
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Printf("user repo: insert email=%s error=%v", doc.Email, err)
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *mongoRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *mongoRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		r.logger.Printf("user repo: find error=%v", err)
		return nil, err
	}
	return doc.toDomain(), nil
}

func (d userDoc) toDomain() *domain.User {
	addrs := d.Addresses
	if addrs == nil {
		addrs = []domain.Address{}
	}
	return &domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		IsAdmin:      d.IsAdmin,
		Addresses:    addrs,
		CreatedAt:    d.CreatedAt,
	}
}
