package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"speechquest/internal/app/profile"
)

// ProfileStore implements profile.Repository on PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore returns a store using pool.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

var _ profile.Repository = (*ProfileStore)(nil)

const (
	insertProfileSQL = `
INSERT INTO profiles (id, device_id, nickname, balance)
VALUES ($1, $2, $3, $4)`

	selectProfileSQL = `
SELECT id::text, device_id, nickname, balance, COALESCE(equipped_item, ''), created_at
FROM profiles
WHERE id = $1`

	selectProfileIDByDeviceSQL = `
SELECT id::text FROM profiles WHERE device_id = $1`

	selectPurchasesSQL = `
SELECT item_id FROM purchases WHERE profile_id = $1 ORDER BY purchased_at, item_id`

	selectCompletionsSQL = `
SELECT planet FROM mission_completions WHERE profile_id = $1 ORDER BY planet`

	insertPurchaseSQL = `
INSERT INTO purchases (profile_id, item_id) VALUES ($1, $2)
ON CONFLICT (profile_id, item_id) DO NOTHING`

	updateBalanceSQL = `
UPDATE profiles SET balance = $2, updated_at = now() WHERE id = $1`

	updateEquippedSQL = `
UPDATE profiles SET equipped_item = NULLIF($2, ''), updated_at = now() WHERE id = $1`

	insertCompletionSQL = `
INSERT INTO mission_completions (profile_id, planet) VALUES ($1, $2)
ON CONFLICT (profile_id, planet) DO NOTHING`
)

func (s *ProfileStore) Create(ctx context.Context, rec profile.Record) error {
	_, err := s.pool.Exec(ctx, insertProfileSQL, rec.ID, rec.DeviceID, rec.Nickname, rec.Balance)
	if err != nil {
		if IsUniqueViolation(err) {
			return profile.ErrDeviceTaken
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) Load(ctx context.Context, id string) (profile.Record, error) {
	var rec profile.Record

	err := s.pool.QueryRow(ctx, selectProfileSQL, id).Scan(
		&rec.ID, &rec.DeviceID, &rec.Nickname, &rec.Balance, &rec.EquippedID, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Record{}, profile.ErrNotFound
		}
		return profile.Record{}, fmt.Errorf("select profile: %w", err)
	}

	rows, err := s.pool.Query(ctx, selectPurchasesSQL, id)
	if err != nil {
		return profile.Record{}, fmt.Errorf("select purchases: %w", err)
	}
	rec.Purchased, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return profile.Record{}, fmt.Errorf("scan purchases: %w", err)
	}

	rows, err = s.pool.Query(ctx, selectCompletionsSQL, id)
	if err != nil {
		return profile.Record{}, fmt.Errorf("select completions: %w", err)
	}
	rec.Completed, err = pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return profile.Record{}, fmt.Errorf("scan completions: %w", err)
	}

	return rec, nil
}

func (s *ProfileStore) FindByDevice(ctx context.Context, deviceID string) (profile.Record, error) {
	var id string
	if err := s.pool.QueryRow(ctx, selectProfileIDByDeviceSQL, deviceID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Record{}, profile.ErrNotFound
		}
		return profile.Record{}, fmt.Errorf("select profile by device: %w", err)
	}
	return s.Load(ctx, id)
}

func (s *ProfileStore) AddPurchase(ctx context.Context, id, itemID string, balance int) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertPurchaseSQL, id, itemID); err != nil {
			if IsForeignKeyViolation(err) {
				return profile.ErrNotFound
			}
			return fmt.Errorf("insert purchase: %w", err)
		}
		return updateBalance(ctx, tx, id, balance)
	})
}

func (s *ProfileStore) SetEquipped(ctx context.Context, id, itemID string) error {
	tag, err := s.pool.Exec(ctx, updateEquippedSQL, id, itemID)
	if err != nil {
		return fmt.Errorf("update equipped item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrNotFound
	}
	return nil
}

func (s *ProfileStore) CompleteMission(ctx context.Context, id string, planet, balance int) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertCompletionSQL, id, planet); err != nil {
			if IsForeignKeyViolation(err) {
				return profile.ErrNotFound
			}
			return fmt.Errorf("insert completion: %w", err)
		}
		return updateBalance(ctx, tx, id, balance)
	})
}

func updateBalance(ctx context.Context, tx pgx.Tx, id string, balance int) error {
	tag, err := tx.Exec(ctx, updateBalanceSQL, id, balance)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrNotFound
	}
	return nil
}
