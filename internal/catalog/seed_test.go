package catalog

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/store"
)

func TestLoadSeed(t *testing.T) {
	f, err := os.Open("testdata/catalog.yaml")
	require.NoError(t, err)
	defer f.Close()

	products, err := LoadSeed(f)
	require.NoError(t, err)
	require.Len(t, products, 3)

	j := products[0]
	assert.Equal(t, domain.ProductID("juniper-procumbens"), j.ID)
	assert.Equal(t, "Outdoor", j.Category)
	assert.Equal(t, "beginner", j.SkillLevel)
	assert.InDelta(t, 4.8, j.Rating, 1e-9)
	assert.True(t, decimal.RequireFromString("124.99").Equal(j.Price))
	assert.False(t, products[2].InStock)
}

func TestLoadSeed_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing id":    "products:\n  - name: X\n    price: \"1\"\n",
		"bad price":     "products:\n  - id: a\n    name: X\n    price: free\n",
		"zero price":    "products:\n  - id: a\n    name: X\n    price: \"0\"\n",
		"duplicate id":  "products:\n  - id: a\n    name: X\n    price: \"1\"\n  - id: a\n    name: Y\n    price: \"2\"\n",
		"unknown field": "products:\n  - id: a\n    name: X\n    price: \"1\"\n    colour: green\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSeed(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestSeed_Upserts(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	_, err := m.CreateProduct(ctx, domain.Product{ID: "ficus-retusa", Name: "Old Ficus", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)

	f, err := os.Open("testdata/catalog.yaml")
	require.NoError(t, err)
	defer f.Close()
	products, err := LoadSeed(f)
	require.NoError(t, err)

	res, err := Seed(ctx, m, products)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Created: 2, Updated: 1}, res)

	ficus, err := m.GetProduct(ctx, "ficus-retusa")
	require.NoError(t, err)
	assert.Equal(t, "Ficus Retusa", ficus.Name)

	res, err = Seed(ctx, m, products)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Updated: 3}, res)
}
