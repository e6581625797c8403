// Package catalog serves the product listing and the admin product editor.
package catalog

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/store"
	"github.com/James-Hooson/Bonsai-Biz/pkg/logging"
)

const service = "storefront"

type Service struct {
	products store.ProductStore
}

func NewService(products store.ProductStore) *Service {
	return &Service{products: products}
}

// List returns the catalog, optionally narrowed to one main category
// (case-insensitive).
func (s *Service) List(ctx context.Context, category string) ([]domain.Product, error) {
	all, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return all, nil
	}
	out := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	return s.products.GetProduct(ctx, id)
}

type productBody struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image"`
	MainCategory string          `json:"mainCategory"`
	SkillLevel   string          `json:"skillLevel"`
	Rating       float64         `json:"rating"`
	InStock      bool            `json:"inStock"`
}

func decodeProduct(body []byte) (domain.Product, error) {
	if err := validateProductJSON(body); err != nil {
		return domain.Product{}, err
	}
	var in productBody
	if err := json.Unmarshal(body, &in); err != nil {
		return domain.Product{}, &InvalidProductError{Problems: []string{err.Error()}}
	}
	if !in.Price.Equal(in.Price.Round(2)) {
		return domain.Product{}, &InvalidProductError{Problems: []string{"price: must have at most two decimal places"}}
	}
	return domain.Product{
		ID:          domain.ProductID(in.ID),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Image:       in.Image,
		Category:    in.MainCategory,
		SkillLevel:  in.SkillLevel,
		Rating:      in.Rating,
		InStock:     in.InStock,
	}, nil
}

// Create validates a raw admin body against the product schema and stores it.
func (s *Service) Create(ctx context.Context, actor string, body []byte) (domain.Product, error) {
	p, err := decodeProduct(body)
	if err != nil {
		return domain.Product{}, err
	}
	created, err := s.products.CreateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	logging.Log(logging.Fields{Service: service, Step: "product_create", Status: "ok", Message: "product " + string(created.ID) + " created by " + actor})
	return created, nil
}

// Update replaces every editable field of an existing product. An id in the
// body is ignored; the path decides which product changes.
func (s *Service) Update(ctx context.Context, actor string, id domain.ProductID, body []byte) (domain.Product, error) {
	p, err := decodeProduct(body)
	if err != nil {
		return domain.Product{}, err
	}
	p.ID = id
	updated, err := s.products.UpdateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	logging.Log(logging.Fields{Service: service, Step: "product_update", Status: "ok", Message: "product " + string(id) + " updated by " + actor})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor string, id domain.ProductID) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return err
	}
	logging.Log(logging.Fields{Service: service, Step: "product_delete", Status: "ok", Message: "product " + string(id) + " deleted by " + actor})
	return nil
}
