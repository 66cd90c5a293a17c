package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"storefront/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
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

const orderColumns = `id, owner_key, items, total::text, status, shipping_address, cart_version, idempotency_key, created_at, updated_at`

func (r *postgresRepo) Place(ctx context.Context, o domain.Order) (*domain.Order, error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return nil, err
	}
	var addrJSON []byte
	if o.ShippingAddress != nil {
		if addrJSON, err = json.Marshal(o.ShippingAddress); err != nil {
			return nil, err
		}
	}
	var idemKey *string
	if o.IdempotencyKey != "" {
		idemKey = &o.IdempotencyKey
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Rows are locked in product id order so concurrent checkouts cannot deadlock.
	for _, item := range byProductID(o.Items) {
		cmd, err := tx.Exec(ctx, `
UPDATE products
SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2
`, item.ProductID, item.Quantity)
		if err != nil {
			r.logger.Printf("order repo: decrement stock product=%s error=%v", item.ProductID, err)
			return nil, err
		}
		if cmd.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, item.ProductID).Scan(&exists); err != nil {
				return nil, err
			}
			if !exists {
				return nil, domain.ErrPriceUnavailable
			}
			return nil, domain.ErrInsufficientStock
		}
	}

	const insertQ = `
INSERT INTO orders (id, owner_key, items, total, status, shipping_address, cart_version, idempotency_key)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
RETURNING ` + orderColumns
	placed, err := r.scanOrder(tx.QueryRow(ctx, insertQ,
		o.ID,
		o.Owner.String(),
		itemsJSON,
		o.Total.String(),
		string(o.Status),
		addrJSON,
		o.CartVersion,
		idemKey,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Printf("order repo: insert id=%s owner=%s error=%v", o.ID, o.Owner, err)
		return nil, err
	}

	cmd, err := tx.Exec(ctx, `
UPDATE carts
SET items = '[]'::jsonb, version = version + 1, updated_at = now()
WHERE owner_key = $1 AND version = $2
`, o.Owner.String(), o.CartVersion)
	if err != nil {
		r.logger.Printf("order repo: clear cart owner=%s error=%v", o.Owner, err)
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Printf("order repo: placed id=%s owner=%s total=%s", placed.ID, placed.Owner, placed.Total)
	return placed, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := r.scanOrder(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, r.notFound(err, "get id="+id)
	}
	return o, nil
}

func (r *postgresRepo) GetByIdempotencyKey(ctx context.Context, owner domain.OwnerKey, key string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE owner_key = $1 AND idempotency_key = $2`
	o, err := r.scanOrder(r.pool.QueryRow(ctx, q, owner.String(), key))
	if err != nil {
		return nil, r.notFound(err, "get by idempotency key owner="+owner.String())
	}
	return o, nil
}

func (r *postgresRepo) ListByOwner(ctx context.Context, owner domain.OwnerKey) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE owner_key = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, owner.String())
	if err != nil {
		r.logger.Printf("order repo: list owner=%s error=%v", owner, err)
		return nil, err
	}
	defer rows.Close()

	result := []domain.Order{}
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	return result, rows.Err()
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	q := `
UPDATE orders
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
RETURNING ` + orderColumns
	o, err := r.scanOrder(r.pool.QueryRow(ctx, q, id, string(from), string(to)))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Printf("order repo: update status id=%s error=%v", id, err)
		return nil, err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, domain.ErrConflict
}

func (r *postgresRepo) notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	r.logger.Printf("order repo: %s error=%v", op, err)
	return err
}

func (r *postgresRepo) scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                   domain.Order
		ownerKey, total     string
		status              string
		itemsJSON, addrJSON []byte
		idemKey             *string
	)
	err := row.Scan(&o.ID, &ownerKey, &itemsJSON, &total, &status, &addrJSON, &o.CartVersion, &idemKey, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if o.Owner, err = domain.ParseOwnerKey(ownerKey); err != nil {
		return nil, err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s: decode total %q: %w", o.ID, total, err)
	}
	o.Status = domain.OrderStatus(status)
	if idemKey != nil {
		o.IdempotencyKey = *idemKey
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		r.logger.Printf("order repo: decode items id=%s err=%v", o.ID, err)
		return nil, err
	}
	if len(addrJSON) > 0 {
		var addr domain.Address
		if err := json.Unmarshal(addrJSON, &addr); err != nil {
			r.logger.Printf("order repo: decode address id=%s err=%v", o.ID, err)
			return nil, err
		}
		o.ShippingAddress = &addr
	}
	return &o, nil
}
