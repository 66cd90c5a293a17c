package cart

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"

	"storefront/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Get(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	const q = `
SELECT owner_key, items, version, created_at, updated_at
FROM carts
WHERE owner_key = $1
`
	c, err := r.scanCart(r.pool.QueryRow(ctx, q, owner.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCartNotFound
		}
		r.logger.Printf("cart repo: get owner=%s error=%v", owner, err)
		return nil, err
	}
	return c, nil
}

func (r *postgresRepo) Save(ctx context.Context, c domain.Cart) (*domain.Cart, error) {
	items := c.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}

	var row pgx.Row
	if c.Version == 0 {
		const q = `
INSERT INTO carts (owner_key, items, version, created_at, updated_at)
VALUES ($1, $2, 1, now(), now())
ON CONFLICT (owner_key) DO NOTHING
RETURNING owner_key, items, version, created_at, updated_at
`
		row = r.pool.QueryRow(ctx, q, c.Owner.String(), itemsJSON)
	} else {
		const q = `
UPDATE carts
SET items = $2, version = version + 1, updated_at = now()
WHERE owner_key = $1 AND version = $3
RETURNING owner_key, items, version, created_at, updated_at
`
		row = r.pool.QueryRow(ctx, q, c.Owner.String(), itemsJSON, c.Version)
	}

	saved, err := r.scanCart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConflict
		}
		r.logger.Printf("cart repo: save owner=%s version=%d error=%v", c.Owner, c.Version, err)
		return nil, err
	}
	return saved, nil
}

func (r *postgresRepo) scanCart(row pgx.Row) (*domain.Cart, error) {
	var (
		c         domain.Cart
		ownerKey  string
		itemsJSON []byte
	)
	if err := row.Scan(&ownerKey, &itemsJSON, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	owner, err := domain.ParseOwnerKey(ownerKey)
	if err != nil {
		return nil, err
	}
	c.Owner = owner
	c.Items = []domain.CartItem{}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
			r.logger.Printf("cart repo: decode items owner=%s err=%v", ownerKey, err)
			return nil, err
		}
	}
	return &c, nil
}
