package profile

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Repository persists profiles. Implementations must be safe for concurrent use.
type Repository interface {
	Create(ctx context.Context, rec Record) error
	Load(ctx context.Context, id string) (Record, error)
	FindByDevice(ctx context.Context, deviceID string) (Record, error)

	// AddPurchase stores ownership of itemID and the balance after paying for it atomically.
	AddPurchase(ctx context.Context, id, itemID string, balance int) error
	SetEquipped(ctx context.Context, id, itemID string) error

	// CompleteMission stores the completion and the balance after the reward atomically.
	CompleteMission(ctx context.Context, id string, planet, balance int) error
}

// MemoryRepository keeps records in process memory. It backs tests and local tools.
type MemoryRepository struct {
	mu       sync.Mutex
	records  map[string]Record
	byDevice map[string]string

	// FailWrites makes every write return the error, for exercising rollback paths.
	FailWrites error
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:  make(map[string]Record),
		byDevice: make(map[string]string),
	}
}

func (m *MemoryRepository) Create(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}
	if _, ok := m.byDevice[rec.DeviceID]; ok {
		return ErrDeviceTaken
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records[rec.ID] = cloneRecord(rec)
	m.byDevice[rec.DeviceID] = rec.ID
	return nil
}

func (m *MemoryRepository) Load(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryRepository) FindByDevice(ctx context.Context, deviceID string) (Record, error) {
	m.mu.Lock()
	id, ok := m.byDevice[deviceID]
	m.mu.Unlock()

	if !ok {
		return Record{}, ErrNotFound
	}
	return m.Load(ctx, id)
}

func (m *MemoryRepository) AddPurchase(_ context.Context, id, itemID string, balance int) error {
	return m.update(id, func(rec *Record) {
		if !slices.Contains(rec.Purchased, itemID) {
			rec.Purchased = append(rec.Purchased, itemID)
		}
		rec.Balance = balance
	})
}

func (m *MemoryRepository) SetEquipped(_ context.Context, id, itemID string) error {
	return m.update(id, func(rec *Record) {
		rec.EquippedID = itemID
	})
}

func (m *MemoryRepository) CompleteMission(_ context.Context, id string, planet, balance int) error {
	return m.update(id, func(rec *Record) {
		if !slices.Contains(rec.Completed, planet) {
			rec.Completed = append(rec.Completed, planet)
		}
		rec.Balance = balance
	})
}

func (m *MemoryRepository) update(id string, fn func(rec *Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	fn(&rec)
	m.records[id] = rec
	return nil
}

func cloneRecord(rec Record) Record {
	rec.Purchased = slices.Clone(rec.Purchased)
	rec.Completed = slices.Clone(rec.Completed)
	return rec
}
