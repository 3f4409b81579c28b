// Package catalog resolves menu-item references to their current price and availability.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"food-delivery/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// MenuItem is the catalog's current view of an orderable item.
type MenuItem struct {
	Ref          string          `yaml:"ref" json:"ref"`
	RestaurantID string          `yaml:"restaurant_id" json:"restaurant_id"`
	Name         string          `yaml:"name" json:"name"`
	Description  string          `yaml:"description" json:"description"`
	ImageURL     string          `yaml:"image_url" json:"image_url"`
	Type         models.ItemType `yaml:"type" json:"type"`
	Price        decimal.Decimal `yaml:"-" json:"price"`
	DiscountPct  decimal.Decimal `yaml:"-" json:"discount_pct"`
	Available    bool            `yaml:"available" json:"available"`
}

// Gateway resolves a menu-item reference. It returns models.ErrNotFound for unknown refs.
type Gateway interface {
	ResolveMenuItem(ctx context.Context, ref string) (MenuItem, error)
}

// Memory is a Gateway backed by a map. Used by the memory storage driver and tests.
type Memory struct {
	mu    sync.RWMutex
	items map[string]MenuItem
}

func NewMemory(items ...MenuItem) *Memory {
	m := &Memory{items: make(map[string]MenuItem, len(items))}
	for _, it := range items {
		m.items[it.Ref] = it
	}
	return m
}

// Put adds or replaces an item.
func (m *Memory) Put(item MenuItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.Ref] = item
}

func (m *Memory) ResolveMenuItem(ctx context.Context, ref string) (MenuItem, error) {
	if err := ctx.Err(); err != nil {
		return MenuItem{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[ref]
	if !ok {
		return MenuItem{}, fmt.Errorf("menu item %s: %w", ref, models.ErrNotFound)
	}
	return item, nil
}

type seedFile struct {
	Items []seedItem `yaml:"items"`
}

// decimal has no YAML unmarshaller, so prices come in as strings.
type seedItem struct {
	MenuItem    `yaml:",inline"`
	Price       string `yaml:"price"`
	DiscountPct string `yaml:"discount_pct"`
}

// LoadSeed parses a YAML list of menu items.
func LoadSeed(data []byte) ([]MenuItem, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}

	items := make([]MenuItem, 0, len(f.Items))
	for _, s := range f.Items {
		item := s.MenuItem
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return nil, fmt.Errorf("item %s: invalid price %q: %w", item.Ref, s.Price, err)
		}
		item.Price = price

		item.DiscountPct = decimal.Zero
		if s.DiscountPct != "" {
			pct, err := decimal.NewFromString(s.DiscountPct)
			if err != nil {
				return nil, fmt.Errorf("item %s: invalid discount %q: %w", item.Ref, s.DiscountPct, err)
			}
			item.DiscountPct = pct
		}
		items = append(items, item)
	}
	return items, nil
}
