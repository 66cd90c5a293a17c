package product

import (
	"context"
	"sort"
	"strings"

	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"

	"github.com/shopspring/decimal"
)

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

// Input carries the writable product fields. On update, nil fields keep their
// stored value.
type Input struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	Stock       *int
	Images      []string
}

func (s *Service) List(ctx context.Context, category string) ([]domain.Product, error) {
	return s.repo.List(ctx, strings.TrimSpace(category))
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Categories lists the distinct categories in the catalog, sorted.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	products, err := s.repo.List(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*domain.Product, error) {
	var p domain.Product
	if in.Name == nil || in.Price == nil || in.Category == nil {
		return nil, domain.Invalid("name, price and category are required")
	}
	apply(&p, in)
	if err := validate(p); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(p, in)
	if err := validate(*p); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, *p)
}

// Delete removes the product. Carts and orders keep their references.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func apply(p *domain.Product, in Input) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Images != nil {
		p.Images = in.Images
	}
}

func validate(p domain.Product) error {
	switch {
	case p.Name == "":
		return domain.Invalid("name required")
	case p.Category == "":
		return domain.Invalid("category required")
	case p.Price.IsNegative():
		return domain.Invalid("price must not be negative")
	case !p.Price.Equal(p.Price.Round(2)):
		return domain.Invalid("price has more than two decimal places")
	case p.Stock < 0:
		return domain.Invalid("stock must not be negative")
	}
	for _, img := range p.Images {
		if strings.TrimSpace(img) == "" {
			return domain.Invalid("image references must not be blank")
		}
	}
	return nil
}
