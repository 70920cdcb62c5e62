/*
Package profile holds the per-learner session state shared by the shop, the avatar
fitting room and the missions: point balance, wardrobe and planet progress.

Profiles are loaded through a Repository and cached by the Registry. Every mutation is
written through to the repository by the service that performs it.
*/
package profile

import (
	"errors"
	"sort"
	"sync"
	"time"

	"speechquest/internal/app/catalog"
	"speechquest/internal/app/wallet"
	"speechquest/internal/app/wardrobe"
)

var (
	// ErrNotFound is returned for unknown profile or device ids.
	ErrNotFound = errors.New("profile not found")

	// ErrDeviceTaken is returned by Repository.Create when the device id already has a profile.
	ErrDeviceTaken = errors.New("device already registered")
)

// Record is the persisted form of a profile.
type Record struct {
	ID         string
	DeviceID   string
	Nickname   string
	Balance    int
	Purchased  []string
	EquippedID string
	Completed  []int
	CreatedAt  time.Time
}

// Profile is the live, in-memory state of one learner.
type Profile struct {
	ID       string
	DeviceID string
	Nickname string

	Wallet   *wallet.Wallet
	Wardrobe *wardrobe.Wardrobe

	// op serializes multi-step mutations such as check-then-spend.
	op sync.Mutex

	mu        sync.RWMutex
	completed map[int]bool
	analyzed  map[int]bool
}

// FromRecord builds a live profile from its persisted form.
func FromRecord(rec Record) *Profile {
	p := &Profile{
		ID:        rec.ID,
		DeviceID:  rec.DeviceID,
		Nickname:  rec.Nickname,
		Wallet:    wallet.New(rec.Balance),
		Wardrobe:  wardrobe.Restore(rec.Purchased, rec.EquippedID),
		completed: make(map[int]bool, len(rec.Completed)),
		analyzed:  make(map[int]bool),
	}
	for _, planet := range rec.Completed {
		p.completed[planet] = true
	}
	return p
}

// Exclusive runs fn while holding the profile's operation lock.
func (p *Profile) Exclusive(fn func() error) error {
	p.op.Lock()
	defer p.op.Unlock()
	return fn()
}

// MarkAnalyzed records that planet has an analyzed attempt waiting to be completed.
func (p *Profile) MarkAnalyzed(planet int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.analyzed[planet] = true
}

// HasAnalyzed reports whether planet has an analyzed attempt.
func (p *Profile) HasAnalyzed(planet int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.analyzed[planet]
}

// Complete marks planet completed and reports whether this was the first completion.
// The pending analyzed attempt is consumed either way.
func (p *Profile) Complete(planet int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.analyzed, planet)
	if p.completed[planet] {
		return false
	}
	p.completed[planet] = true
	return true
}

// Uncomplete reverts Complete, used when persisting the completion fails.
func (p *Profile) Uncomplete(planet int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.completed, planet)
	p.analyzed[planet] = true
}

// CompletedPlanets returns the completed planets in ascending order.
func (p *Profile) CompletedPlanets() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]int, 0, len(p.completed))
	for planet := range p.completed {
		out = append(out, planet)
	}
	sort.Ints(out)
	return out
}

// View is the JSON shape of a profile returned to the client.
type View struct {
	ID               string         `json:"id"`
	Nickname         string         `json:"nickname"`
	Points           int            `json:"points"`
	PurchasedItems   []catalog.Item `json:"purchasedItems"`
	EquippedItems    []catalog.Item `json:"equippedItems"`
	CompletedPlanets []int          `json:"completedPlanets"`
}

// View snapshots the profile for the client.
func (p *Profile) View() View {
	return View{
		ID:               p.ID,
		Nickname:         p.Nickname,
		Points:           p.Wallet.Balance(),
		PurchasedItems:   p.Wardrobe.Purchased(),
		EquippedItems:    p.Wardrobe.EquippedItems(),
		CompletedPlanets: p.CompletedPlanets(),
	}
}
