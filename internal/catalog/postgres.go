package catalog

import (
	"context"
	"errors"
	"fmt"

	"food-delivery/internal/database"
	"food-delivery/internal/models"

	"github.com/jackc/pgx/v5"
)

// Postgres resolves menu items from the menu_items table.
type Postgres struct {
	db *database.DB
}

func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) ResolveMenuItem(ctx context.Context, ref string) (MenuItem, error) {
	var (
		item     MenuItem
		itemType string
	)
	err := p.db.QueryRow(ctx, database.GetMenuItemSQL, ref).Scan(
		&item.Ref, &item.RestaurantID, &item.Name, &item.Description, &item.ImageURL, &itemType,
		&item.Price, &item.DiscountPct, &item.Available,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return MenuItem{}, fmt.Errorf("menu item %s: %w", ref, models.ErrNotFound)
	}
	if err != nil {
		return MenuItem{}, fmt.Errorf("%w: resolve menu item %s: %v", models.ErrStorage, ref, err)
	}
	item.Type = models.ItemType(itemType)
	return item, nil
}
