package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/randx"
)

// Registry caches live profiles and creates new ones on device registration.
type Registry struct {
	repo            Repository
	startingBalance int

	mu       sync.Mutex
	profiles map[string]*Profile
}

// NewRegistry returns a registry backed by repo. New profiles start with startingBalance points.
func NewRegistry(repo Repository, startingBalance int) *Registry {
	return &Registry{
		repo:            repo,
		startingBalance: startingBalance,
		profiles:        make(map[string]*Profile),
	}
}

// Repository exposes the backing store to the services that write through it.
func (r *Registry) Repository() Repository {
	return r.repo
}

// Get returns the live profile for id, loading it on first access.
func (r *Registry) Get(ctx context.Context, id string) (*Profile, error) {
	r.mu.Lock()
	p, ok := r.profiles[id]
	r.mu.Unlock()
	if ok {
		return p, nil
	}

	rec, err := r.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.remember(FromRecord(rec)), nil
}

// Register returns the profile bound to deviceID, creating one if the device is new.
// It reports whether a profile was created.
func (r *Registry) Register(ctx context.Context, deviceID string) (*Profile, bool, error) {
	rec, err := r.repo.FindByDevice(ctx, deviceID)
	if err == nil {
		p, err := r.Get(ctx, rec.ID)
		return p, false, err
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("find profile by device: %w", err)
	}

	nickname, err := randx.CallSign()
	if err != nil {
		return nil, false, err
	}

	rec = Record{
		ID:       randx.ProfileID(),
		DeviceID: deviceID,
		Nickname: nickname,
		Balance:  r.startingBalance,
	}

	if err := r.repo.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrDeviceTaken) {
			// lost a race with a concurrent registration of the same device
			existing, findErr := r.repo.FindByDevice(ctx, deviceID)
			if findErr != nil {
				return nil, false, findErr
			}
			p, getErr := r.Get(ctx, existing.ID)
			return p, false, getErr
		}
		return nil, false, fmt.Errorf("create profile: %w", err)
	}

	logx.Info("Profile registered", "profile_id", rec.ID, "nickname", nickname)

	return r.remember(FromRecord(rec)), true, nil
}

func (r *Registry) remember(p *Profile) *Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.profiles[p.ID]; ok {
		return existing
	}
	r.profiles[p.ID] = p
	return p
}
