package product

import (
	"context"
	"errors"
	"os"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func TestPostgres_CreateListAndGet(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)

	apple, err := repo.Create(ctx, domain.Product{
		Name:     "Apple",
		Price:    decimal.RequireFromString("1.25"),
		Category: "Fruits",
		Stock:    10,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if apple.ID == "" || !apple.Price.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("unexpected product %+v", apple)
	}
	if apple.Images == nil {
		t.Fatalf("expected empty images slice")
	}
	if _, err := repo.Create(ctx, domain.Product{Name: "Chips", Price: decimal.NewFromInt(2), Category: "Snacks"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	fruits, err := repo.List(ctx, "Fruits")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(fruits) != 1 || fruits[0].ID != apple.ID {
		t.Fatalf("unexpected fruits %+v", fruits)
	}
	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 products, got %d", len(all))
	}

	got, err := repo.GetByIDs(ctx, []string{apple.ID, "missing"})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got) != 1 || got[apple.ID].Name != "Apple" {
		t.Fatalf("unexpected lookup %+v", got)
	}

	if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgres_UpsertUpdateDelete(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)

	p, err := repo.Upsert(ctx, domain.Product{
		ID:       "seed-bread",
		Name:     "Bread",
		Price:    decimal.RequireFromString("3.10"),
		Category: "Pastry",
		Stock:    4,
	})
	if err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}
	if p.ID != "seed-bread" {
		t.Fatalf("expected caller id kept, got %q", p.ID)
	}

	updated, err := repo.Upsert(ctx, domain.Product{
		ID:          "seed-bread",
		Name:        "Sourdough",
		Description: "new desc",
		Price:       decimal.RequireFromString("4.00"),
		Category:    "Pastry",
		Stock:       8,
		Images:      []string{"https://example.com/1.jpg"},
	})
	if err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if updated.Name != "Sourdough" || updated.Stock != 8 || len(updated.Images) != 1 {
		t.Fatalf("unexpected updated product %+v", updated)
	}

	updated.Stock = 0
	if _, err := repo.Update(ctx, *updated); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := repo.Update(ctx, domain.Product{ID: "missing", Price: decimal.Zero}); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}

	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, p.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE orders, carts, products, users`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
