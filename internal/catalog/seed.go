package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/store"
)

type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

// seedProduct reads the price as a string so YAML never turns 124.99 into a
// float on the way in.
type seedProduct struct {
	domain.Product `yaml:",inline"`
	Price          string `yaml:"price"`
}

// LoadSeed parses a YAML catalog of the form `products: [...]`.
func LoadSeed(r io.Reader) ([]domain.Product, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	out := make([]domain.Product, 0, len(f.Products))
	seen := make(map[domain.ProductID]bool, len(f.Products))
	for i, sp := range f.Products {
		p := sp.Product
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("seed product %d: id and name are required", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("seed product %s: duplicate id", p.ID)
		}
		seen[p.ID] = true
		price, err := decimal.NewFromString(sp.Price)
		if err != nil || !price.IsPositive() {
			return nil, fmt.Errorf("seed product %s: invalid price %q", p.ID, sp.Price)
		}
		p.Price = price
		out = append(out, p)
	}
	return out, nil
}

type SeedResult struct {
	Created int
	Updated int
}

// Seed upserts products by id.
func Seed(ctx context.Context, products store.ProductStore, items []domain.Product) (SeedResult, error) {
	var res SeedResult
	for _, p := range items {
		_, err := products.UpdateProduct(ctx, p)
		switch {
		case err == nil:
			res.Updated++
		case errors.Is(err, domain.ErrProductNotFound):
			if _, err := products.CreateProduct(ctx, p); err != nil {
				return res, fmt.Errorf("create %s: %w", p.ID, err)
			}
			res.Created++
		default:
			return res, fmt.Errorf("update %s: %w", p.ID, err)
		}
	}
	return res, nil
}
