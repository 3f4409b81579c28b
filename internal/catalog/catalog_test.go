package catalog

import (
	"context"
	"os"
	"testing"

	"food-delivery/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryResolve(t *testing.T) {
	m := NewMemory(MenuItem{Ref: "m1", Name: "Paneer Tikka", Price: decimal.RequireFromString("10.00"), Available: true})

	item, err := m.ResolveMenuItem(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Paneer Tikka", item.Name)

	_, err = m.ResolveMenuItem(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	m.Put(MenuItem{Ref: "m1", Name: "Paneer Tikka", Price: decimal.RequireFromString("12.00")})
	item, err = m.ResolveMenuItem(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.00").Equal(item.Price))
}

func TestLoadSeed(t *testing.T) {
	data := []byte(`
items:
  - ref: m1
    restaurant_id: r1
    name: Masala Dosa
    type: VEG
    price: "8.50"
    discount_pct: "10"
    available: true
  - ref: m2
    restaurant_id: r1
    name: Chicken Biryani
    type: NON_VEG
    price: "12.00"
    available: false
`)

	items, err := LoadSeed(data)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "m1", items[0].Ref)
	assert.Equal(t, models.ItemVeg, items[0].Type)
	assert.True(t, decimal.RequireFromString("8.50").Equal(items[0].Price))
	assert.True(t, decimal.NewFromInt(10).Equal(items[0].DiscountPct))
	assert.True(t, items[1].DiscountPct.IsZero())
	assert.False(t, items[1].Available)
}

func TestLoadSeed_ShippedMenu(t *testing.T) {
	data, err := os.ReadFile("../../seed/catalog.yaml")
	require.NoError(t, err)

	items, err := LoadSeed(data)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	refs := make(map[string]bool, len(items))
	for _, it := range items {
		assert.NotEmpty(t, it.RestaurantID, it.Ref)
		assert.True(t, it.Price.IsPositive(), it.Ref)
		assert.False(t, refs[it.Ref], "duplicate ref %s", it.Ref)
		refs[it.Ref] = true
	}
}

func TestLoadSeed_BadPrice(t *testing.T) {
	_, err := LoadSeed([]byte("items:\n  - ref: m1\n    price: cheap\n"))
	assert.Error(t, err)
}

func TestResolveAll(t *testing.T) {
	m := NewMemory(
		MenuItem{Ref: "a", Name: "A"},
		MenuItem{Ref: "b", Name: "B"},
		MenuItem{Ref: "c", Name: "C"},
	)

	items, err := ResolveAll(context.Background(), m, []string{"c", "a", "b", "a"}, 2)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "C", items[0].Name)
	assert.Equal(t, "A", items[1].Name)
	assert.Equal(t, "A", items[3].Name)

	_, err = ResolveAll(context.Background(), m, []string{"a", "zzz"}, 0)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
