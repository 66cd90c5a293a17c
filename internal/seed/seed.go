package seed

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/service/user"

	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type UserRegistrar interface {
	Register(ctx context.Context, in user.RegisterInput) (*domain.User, error)
}

// Admin is the operator account created alongside the demo catalog. An empty
// Email skips it.
type Admin struct {
	Name     string
	Email    string
	Password string
}

type productSeed struct {
	ID          string
	Name        string
	Description string
	Price       string
	Category    string
	Stock       int
	Image       string
}

var demoProducts = []productSeed{
	{
		ID:          "6f1c1f7e-4d0a-4b7e-9a51-0c3f5b2a0001",
		Name:        "Banana",
		Description: "Ripe bananas, per bunch",
		Price:       "1.99",
		Category:    "Fruits",
		Stock:       80,
		Image:       "/images/banana.jpg",
	},
	{
		ID:          "6f1c1f7e-4d0a-4b7e-9a51-0c3f5b2a0002",
		Name:        "Green Apple",
		Description: "Crisp and tart",
		Price:       "0.80",
		Category:    "Fruits",
		Stock:       120,
		Image:       "/images/apple.jpg",
	},
	{
		ID:          "6f1c1f7e-4d0a-4b7e-9a51-0c3f5b2a0003",
		Name:        "Carrots",
		Description: "Fresh carrots, 1kg",
		Price:       "1.25",
		Category:    "Vegetables",
		Stock:       60,
		Image:       "/images/carrots.jpg",
	},
	{
		ID:          "6f1c1f7e-4d0a-4b7e-9a51-0c3f5b2a0004",
		Name:        "Potato Chips",
		Description: "Sea salt, 150g",
		Price:       "2.49",
		Category:    "Snacks",
		Stock:       40,
		Image:       "/images/chips.jpg",
	},
	{
		ID:          "6f1c1f7e-4d0a-4b7e-9a51-0c3f5b2a0005",
		Name:        "Orange Juice",
		Description: "Freshly squeezed, 1l",
		Price:       "3.50",
		Category:    "Beverages",
		Stock:       30,
		Image:       "/images/orange-juice.jpg",
	},
	{
		ID:          "6f1c1f7e-4d0a-4b7e-9a51-0c3f5b2a0006",
		Name:        "Croissant",
		Description: "Butter croissant",
		Price:       "1.10",
		Category:    "Pastry",
		Stock:       25,
		Image:       "/images/croissant.jpg",
	},
	{
		ID:          "6f1c1f7e-4d0a-4b7e-9a51-0c3f5b2a0007",
		Name:        "Chicken Breast",
		Description: "Free range, 500g",
		Price:       "6.90",
		Category:    "Meat",
		Stock:       20,
		Image:       "/images/chicken.jpg",
	},
}

// Apply inserts basic seed data for manual testing. Products use fixed ids so
// re-running it updates rather than duplicates them.
func Apply(ctx context.Context, products ProductWriter, users UserRegistrar, admin Admin) error {
	for _, s := range demoProducts {
		p := domain.Product{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Price:       decimal.RequireFromString(s.Price),
			Category:    s.Category,
			Stock:       s.Stock,
			Images:      []string{s.Image},
		}
		if _, err := products.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", s.Name, err)
		}
	}

	if admin.Email == "" {
		return nil
	}
	_, err := users.Register(ctx, user.RegisterInput{
		Name:     admin.Name,
		Email:    admin.Email,
		Password: admin.Password,
		IsAdmin:  true,
	})
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("register admin %s: %w", admin.Email, err)
	}
	return nil
}
