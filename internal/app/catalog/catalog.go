/*
Package catalog defines the static set of cosmetic items sold in the shop.

Items are values; the catalog never changes at runtime.
*/
package catalog

import (
	"encoding/json"
	"fmt"
)

// Category is the avatar slot an item is drawn on.
type Category string

const (
	CategoryHead  Category = "head"
	CategoryNeck  Category = "neck"
	CategoryHands Category = "hands"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryHead, CategoryNeck, CategoryHands:
		return true
	}
	return false
}

// UnmarshalJSON rejects categories outside the closed set.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !Category(s).Valid() {
		return fmt.Errorf("unknown item category %q", s)
	}
	*c = Category(s)
	return nil
}

// Position is the overlay rectangle on the avatar canvas.
type Position struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Item is a purchasable cosmetic.
type Item struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Image    string   `json:"image"`
	Price    int      `json:"price"`
	Category Category `json:"category"`
	Position Position `json:"position"`
}

var items = []Item{
	{ID: "1", Name: "Beanie", Image: "alien/beanie.png", Price: 50, Category: CategoryHead, Position: Position{X: 50, Y: 10, Width: 100, Height: 80}},
	{ID: "2", Name: "Chain", Image: "alien/goldchain.png", Price: 75, Category: CategoryNeck, Position: Position{X: 60, Y: 80, Width: 80, Height: 40}},
	{ID: "3", Name: "Cowboy Hat", Image: "alien/cowboyhat.png", Price: 100, Category: CategoryHead, Position: Position{X: 40, Y: 5, Width: 120, Height: 90}},
	{ID: "4", Name: "Headphones", Image: "alien/headphones.png", Price: 80, Category: CategoryHead, Position: Position{X: 30, Y: 20, Width: 140, Height: 70}},
	{ID: "5", Name: "Purse", Image: "alien/purse.png", Price: 60, Category: CategoryHands, Position: Position{X: 120, Y: 140, Width: 60, Height: 50}},
	{ID: "6", Name: "Scarf", Image: "alien/scarf.png", Price: 40, Category: CategoryNeck, Position: Position{X: 50, Y: 70, Width: 100, Height: 60}},
	{ID: "7", Name: "Spin Hat", Image: "alien/spinhat.png", Price: 90, Category: CategoryHead, Position: Position{X: 45, Y: 8, Width: 110, Height: 85}},
	{ID: "8", Name: "Sunglasses", Image: "alien/sunglasses.png", Price: 70, Category: CategoryHead, Position: Position{X: 60, Y: 50, Width: 80, Height: 30}},
	{ID: "9", Name: "Tie", Image: "alien/tie.png", Price: 55, Category: CategoryNeck, Position: Position{X: 70, Y: 85, Width: 60, Height: 50}},
	{ID: "10", Name: "Top Hat", Image: "alien/tophat.png", Price: 120, Category: CategoryHead, Position: Position{X: 55, Y: 0, Width: 90, Height: 100}},
}

var byID = func() map[string]Item {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}()

// All returns a copy of the catalog in shop order.
func All() []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Lookup finds an item by id.
func Lookup(id string) (Item, bool) {
	it, ok := byID[id]
	return it, ok
}
