package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          ProductID       `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Price       decimal.Decimal `json:"price" yaml:"-"`
	Image       string          `json:"image,omitempty" yaml:"image"`
	Category    string          `json:"mainCategory,omitempty" yaml:"mainCategory"`
	SkillLevel  string          `json:"skillLevel,omitempty" yaml:"skillLevel"`
	Rating      float64         `json:"rating" yaml:"rating"`
	InStock     bool            `json:"inStock" yaml:"inStock"`

	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

var minorUnitsPerMajor = decimal.NewFromInt(100)

// MinorUnits converts a two-decimal currency amount to cents, rounding half away
// from zero.
func MinorUnits(price decimal.Decimal) int64 {
	return price.Mul(minorUnitsPerMajor).Round(0).IntPart()
}

// MarshalJSON writes the price as a JSON number, the way the storefront reads
// it. The decimal package default (quoted strings) is left alone.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain: plain(p), Price: json.Number(p.Price.String())})
}
