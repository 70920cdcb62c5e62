/*
Package wardrobe tracks the cosmetic items a learner owns and the one they wear.

Ownership is unique by item id. At most one item is equipped at a time: equipping
replaces whatever was worn before, whatever its category.
*/
package wardrobe

import (
	"errors"
	"sync"

	"speechquest/internal/app/catalog"
)

// ErrNotOwned is returned when equipping an item that was never purchased.
var ErrNotOwned = errors.New("item not owned")

// Wardrobe is safe for concurrent use.
type Wardrobe struct {
	mu        sync.RWMutex
	purchased []catalog.Item
	equipped  *catalog.Item
}

// New returns an empty wardrobe.
func New() *Wardrobe {
	return &Wardrobe{}
}

// Restore rebuilds a wardrobe from persisted state. Unknown ids are skipped, and an
// equipped id that is not owned is ignored.
func Restore(purchasedIDs []string, equippedID string) *Wardrobe {
	w := New()
	for _, id := range purchasedIDs {
		if it, ok := catalog.Lookup(id); ok {
			w.AddPurchased(it)
		}
	}
	if equippedID != "" {
		_ = w.Equip(equippedID)
	}
	return w
}

// AddPurchased records ownership of item. It reports false when the item is already owned.
func (w *Wardrobe) AddPurchased(item catalog.Item) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ownsLocked(item.ID) {
		return false
	}
	w.purchased = append(w.purchased, item)
	return true
}

// RemovePurchased drops ownership and unequips the item if it was worn.
func (w *Wardrobe) RemovePurchased(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, it := range w.purchased {
		if it.ID == id {
			w.purchased = append(w.purchased[:i], w.purchased[i+1:]...)
			if w.equipped != nil && w.equipped.ID == id {
				w.equipped = nil
			}
			return true
		}
	}
	return false
}

// IsPurchased reports whether id is owned.
func (w *Wardrobe) IsPurchased(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ownsLocked(id)
}

func (w *Wardrobe) ownsLocked(id string) bool {
	for _, it := range w.purchased {
		if it.ID == id {
			return true
		}
	}
	return false
}

// Purchased returns the owned items in purchase order.
func (w *Wardrobe) Purchased() []catalog.Item {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]catalog.Item, len(w.purchased))
	copy(out, w.purchased)
	return out
}

// Equip wears the owned item id, replacing any previously equipped item.
func (w *Wardrobe) Equip(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, it := range w.purchased {
		if it.ID == id {
			item := it
			w.equipped = &item
			return nil
		}
	}
	return ErrNotOwned
}

// Unequip clears the equipped slot if id is the item being worn.
func (w *Wardrobe) Unequip(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.equipped == nil || w.equipped.ID != id {
		return false
	}
	w.equipped = nil
	return true
}

// Equipped returns the worn item, if any.
func (w *Wardrobe) Equipped() (catalog.Item, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.equipped == nil {
		return catalog.Item{}, false
	}
	return *w.equipped, true
}

// EquippedItems returns the equipped collection, which holds zero or one items.
func (w *Wardrobe) EquippedItems() []catalog.Item {
	if it, ok := w.Equipped(); ok {
		return []catalog.Item{it}
	}
	return []catalog.Item{}
}

// EquippedID returns the id of the worn item or "".
func (w *Wardrobe) EquippedID() string {
	if it, ok := w.Equipped(); ok {
		return it.ID
	}
	return ""
}
