/*
Package shop sells cosmetic items for points and dresses the avatar.

Purchases check ownership and balance under the profile's operation lock, apply the
change in memory and write it through to the profile repository. A failed write rolls
the in-memory change back so memory never runs ahead of storage.
*/
package shop

import (
	"context"
	"errors"
	"fmt"

	"speechquest/internal/app/catalog"
	"speechquest/internal/app/profile"
	"speechquest/internal/app/wardrobe"
	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/metrics"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrAlreadyPurchased = errors.New("item already purchased")
)

// InsufficientPointsError reports how many points the learner is missing.
type InsufficientPointsError struct {
	Item      catalog.Item
	Shortfall int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("need %d more points to buy %s", e.Shortfall, e.Item.Name)
}

// Receipt describes a completed purchase.
type Receipt struct {
	Item    catalog.Item `json:"item"`
	Balance int          `json:"points"`
}

// Service applies shop and fitting-room commands to profiles.
type Service struct {
	repo profile.Repository
}

// NewService returns a shop writing through to repo.
func NewService(repo profile.Repository) *Service {
	return &Service{repo: repo}
}

// Items lists the catalog annotated with ownership for p.
func (s *Service) Items(p *profile.Profile) []Listing {
	all := catalog.All()
	out := make([]Listing, 0, len(all))
	equipped := p.Wardrobe.EquippedID()
	for _, it := range all {
		out = append(out, Listing{
			Item:      it,
			Purchased: p.Wardrobe.IsPurchased(it.ID),
			Equipped:  it.ID == equipped,
		})
	}
	return out
}

// Listing is a catalog entry as seen by one learner.
type Listing struct {
	catalog.Item
	Purchased bool `json:"purchased"`
	Equipped  bool `json:"equipped"`
}

// Purchase buys itemID for p. Buying an owned item fails with ErrAlreadyPurchased and
// leaves the balance untouched.
func (s *Service) Purchase(ctx context.Context, p *profile.Profile, itemID string) (Receipt, error) {
	item, ok := catalog.Lookup(itemID)
	if !ok {
		metrics.Purchases.WithLabelValues("unknown_item").Inc()
		return Receipt{}, ErrItemNotFound
	}

	var receipt Receipt
	err := p.Exclusive(func() error {
		if p.Wardrobe.IsPurchased(item.ID) {
			return ErrAlreadyPurchased
		}

		before := p.Wallet.Balance()
		if before < item.Price {
			return &InsufficientPointsError{Item: item, Shortfall: item.Price - before}
		}

		after := p.Wallet.Spend(item.Price)
		p.Wardrobe.AddPurchased(item)

		if err := s.repo.AddPurchase(ctx, p.ID, item.ID, after); err != nil {
			p.Wallet.Set(before)
			p.Wardrobe.RemovePurchased(item.ID)
			return fmt.Errorf("persist purchase: %w", err)
		}

		receipt = Receipt{Item: item, Balance: after}
		return nil
	})

	metrics.Purchases.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return Receipt{}, err
	}

	logx.Info("Item purchased",
		"profile_id", p.ID,
		"item_id", item.ID,
		"price", item.Price,
		"balance", receipt.Balance,
	)
	return receipt, nil
}

// Equip wears an owned item, replacing whatever was equipped.
func (s *Service) Equip(ctx context.Context, p *profile.Profile, itemID string) ([]catalog.Item, error) {
	if _, ok := catalog.Lookup(itemID); !ok {
		return nil, ErrItemNotFound
	}

	err := p.Exclusive(func() error {
		previous := p.Wardrobe.EquippedID()
		if err := p.Wardrobe.Equip(itemID); err != nil {
			return err
		}
		if err := s.repo.SetEquipped(ctx, p.ID, itemID); err != nil {
			s.restoreEquipped(p, previous)
			return fmt.Errorf("persist equipped item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.Wardrobe.EquippedItems(), nil
}

// Unequip takes itemID off the avatar if it is the equipped one.
func (s *Service) Unequip(ctx context.Context, p *profile.Profile, itemID string) ([]catalog.Item, error) {
	err := p.Exclusive(func() error {
		if !p.Wardrobe.Unequip(itemID) {
			return nil
		}
		if err := s.repo.SetEquipped(ctx, p.ID, ""); err != nil {
			s.restoreEquipped(p, itemID)
			return fmt.Errorf("persist unequip: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.Wardrobe.EquippedItems(), nil
}

func (s *Service) restoreEquipped(p *profile.Profile, id string) {
	if id == "" {
		p.Wardrobe.Unequip(p.Wardrobe.EquippedID())
		return
	}
	_ = p.Wardrobe.Equip(id)
}

func outcome(err error) string {
	var short *InsufficientPointsError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyPurchased):
		return "already_purchased"
	case errors.As(err, &short):
		return "insufficient_points"
	default:
		return "error"
	}
}

// IsNotOwned reports whether err is an equip attempt on an item that is not owned.
func IsNotOwned(err error) bool {
	return errors.Is(err, wardrobe.ErrNotOwned)
}
