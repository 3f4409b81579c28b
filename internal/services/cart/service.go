package cart

import (
	"context"
	"errors"
	"fmt"

	"food-delivery/internal/catalog"
	"food-delivery/internal/logger"
	"food-delivery/internal/metrics"
	"food-delivery/internal/models"
	"food-delivery/internal/storage"
	"food-delivery/internal/validation"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	store       storage.Store
	catalog     catalog.Gateway
	logger      *logger.Logger
	metrics     *metrics.Metrics
	parallelism int
}

func NewService(store storage.Store, gw catalog.Gateway, log *logger.Logger, m *metrics.Metrics, parallelism int) *Service {
	if parallelism <= 0 {
		parallelism = catalog.DefaultParallelism
	}
	return &Service{
		store:       store,
		catalog:     gw,
		logger:      log,
		metrics:     m,
		parallelism: parallelism,
	}
}

// AddToCart adds quantity of a menu item to the owner's cart, merging with an
// existing line for the same item. Instructions replace the stored ones.
func (s *Service) AddToCart(ctx context.Context, ownerID, menuItemRef string, quantity int, instructions *string) (*models.CartLine, error) {
	requestID := logger.RequestIDFromContext(ctx)

	if err := validation.ValidateMenuItemRef("menu_item_ref", menuItemRef); err != nil {
		return nil, err
	}
	if err := validation.ValidateQuantity("quantity", quantity); err != nil {
		return nil, err
	}

	item, err := s.catalog.ResolveMenuItem(ctx, menuItemRef)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, fmt.Errorf("%w: %s is not available", models.ErrUnavailable, item.Name)
	}

	line, err := s.store.Carts().UpsertAdd(ctx, &models.CartLine{
		OwnerID:             ownerID,
		MenuItemRef:         menuItemRef,
		Quantity:            quantity,
		SpecialInstructions: instructions,
	})
	if err != nil {
		s.logger.Error("cart_add_failed", "Failed to add item to cart", requestID, err, map[string]interface{}{
			"owner_id":      ownerID,
			"menu_item_ref": menuItemRef,
		})
		return nil, err
	}

	s.metrics.CartOperation("add")
	s.logger.Debug("cart_item_added", "Added item to cart", requestID, map[string]interface{}{
		"owner_id":      ownerID,
		"menu_item_ref": menuItemRef,
		"quantity":      line.Quantity,
	})
	return line, nil
}

// ListCart returns the owner's lines newest first.
func (s *Service) ListCart(ctx context.Context, ownerID string) ([]models.CartLine, error) {
	lines, err := s.store.Carts().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []models.CartLine{}
	}
	return lines, nil
}

func ownedLine(ctx context.Context, carts storage.CartStore, ownerID, lineID string) (*models.CartLine, error) {
	line, err := carts.FindByID(ctx, lineID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("cart line %s: %w", lineID, models.ErrNotFound)
		}
		return nil, err
	}
	if line.OwnerID != ownerID {
		return nil, fmt.Errorf("cart line %s: %w", lineID, models.ErrForbidden)
	}
	return line, nil
}

// UpdateCartLine sets a line's quantity. A quantity of zero or less removes the
// line and returns a nil line.
func (s *Service) UpdateCartLine(ctx context.Context, ownerID, lineID string, quantity int) (*models.CartLine, error) {
	var updated *models.CartLine
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := ownedLine(ctx, tx.Carts(), ownerID, lineID); err != nil {
			return err
		}

		if quantity <= 0 {
			return tx.Carts().Delete(ctx, lineID)
		}

		line, err := tx.Carts().UpdateQuantity(ctx, lineID, quantity)
		if err != nil {
			return err
		}
		updated = line
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated == nil {
		s.metrics.CartOperation("remove")
	} else {
		s.metrics.CartOperation("update")
	}
	return updated, nil
}

func (s *Service) RemoveCartLine(ctx context.Context, ownerID, lineID string) error {
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := ownedLine(ctx, tx.Carts(), ownerID, lineID); err != nil {
			return err
		}
		return tx.Carts().Delete(ctx, lineID)
	})
	if err != nil {
		return err
	}
	s.metrics.CartOperation("remove")
	return nil
}

// ClearCart empties the owner's cart. Clearing an empty cart is not an error.
func (s *Service) ClearCart(ctx context.Context, ownerID string) error {
	if err := s.store.Carts().DeleteByOwner(ctx, ownerID); err != nil {
		return err
	}
	s.metrics.CartOperation("clear")
	return nil
}

// CartTotal sums the current catalog base price times quantity over the cart.
// Lines whose item has left the catalog contribute nothing.
func (s *Service) CartTotal(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	lines, err := s.store.Carts().ListByOwner(ctx, ownerID)
	if err != nil {
		return decimal.Zero, err
	}

	subtotals := make([]decimal.Decimal, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for idx, line := range lines {
		idx, line := idx, line
		g.Go(func() error {
			item, err := s.catalog.ResolveMenuItem(gctx, line.MenuItemRef)
			if errors.Is(err, models.ErrNotFound) {
				s.logger.Warn("cart_item_missing", "Cart references an item no longer in the catalog",
					logger.RequestIDFromContext(ctx), map[string]interface{}{"menu_item_ref": line.MenuItemRef})
				subtotals[idx] = decimal.Zero
				return nil
			}
			if err != nil {
				return err
			}
			subtotals[idx] = item.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decimal.Zero, err
	}

	return decimal.Sum(decimal.Zero, subtotals...).Round(2), nil
}

// CartCount returns the number of distinct lines in the cart.
func (s *Service) CartCount(ctx context.Context, ownerID string) (int, error) {
	return s.store.Carts().CountByOwner(ctx, ownerID)
}
