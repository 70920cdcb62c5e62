/*
Package pow implements the Proof-of-Work gate in front of device registration.

A client asks for a challenge, searches for a counter whose SHA-256 over nonce+counter
has the required number of leading hex zeros, and submits both with its registration.
Nonces live in Redis with a TTL and are consumed on first successful use.
*/
package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// NonceExpiryDuration is the validity period for a challenge nonce.
	NonceExpiryDuration = 5 * time.Minute

	keyPrefix = "pow:nonce:"
)

var (
	// ErrNonceInvalid covers unknown, expired and already consumed nonces.
	ErrNonceInvalid = errors.New("nonce expired or invalid")

	// ErrProofTooWeak means the hash does not meet the difficulty.
	ErrProofTooWeak = errors.New("proof does not meet difficulty requirement")
)

// Challenge is handed to the client.
type Challenge struct {
	Nonce      string `json:"nonce"`
	Difficulty int    `json:"difficulty"`
	ExpiresIn  int    `json:"expiresIn"`
}

// Manager issues and verifies challenges.
type Manager struct {
	rdb        redis.Cmdable
	difficulty int
}

// NewManager returns a manager storing nonces in rdb.
func NewManager(rdb redis.Cmdable, difficulty int) *Manager {
	return &Manager{rdb: rdb, difficulty: difficulty}
}

// Issue stores a fresh nonce and returns the challenge for it.
func (m *Manager) Issue(ctx context.Context) (Challenge, error) {
	nonce := uuid.New().String()
	if err := m.rdb.Set(ctx, keyPrefix+nonce, m.difficulty, NonceExpiryDuration).Err(); err != nil {
		return Challenge{}, fmt.Errorf("store pow nonce: %w", err)
	}

	return Challenge{
		Nonce:      nonce,
		Difficulty: m.difficulty,
		ExpiresIn:  int(NonceExpiryDuration.Seconds()),
	}, nil
}

// Verify checks the proof and consumes the nonce. A nonce can back one registration only.
func (m *Manager) Verify(ctx context.Context, nonce, counter string) error {
	if nonce == "" || counter == "" {
		return ErrNonceInvalid
	}

	n, err := m.rdb.Exists(ctx, keyPrefix+nonce).Result()
	if err != nil {
		return fmt.Errorf("lookup pow nonce: %w", err)
	}
	if n == 0 {
		return ErrNonceInvalid
	}

	if !Satisfies(nonce, counter, m.difficulty) {
		return ErrProofTooWeak
	}

	if err := m.rdb.GetDel(ctx, keyPrefix+nonce).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			// consumed by a concurrent request
			return ErrNonceInvalid
		}
		return fmt.Errorf("consume pow nonce: %w", err)
	}

	return nil
}

// Satisfies reports whether sha256(nonce+counter) starts with difficulty hex zeros.
func Satisfies(nonce, counter string, difficulty int) bool {
	hash := sha256.Sum256([]byte(nonce + counter))
	return strings.HasPrefix(hex.EncodeToString(hash[:]), strings.Repeat("0", difficulty))
}

// Solve brute-forces a counter for nonce. Used by the CLI and tests.
func Solve(ctx context.Context, nonce string, difficulty int) (string, error) {
	for i := 0; ; i++ {
		if i%4096 == 0 && ctx.Err() != nil {
			return "", ctx.Err()
		}
		counter := fmt.Sprint(i)
		if Satisfies(nonce, counter, difficulty) {
			return counter, nil
		}
	}
}
