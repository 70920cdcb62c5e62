/*
Package onboarding persists the one-time onboarding outcome of each profile: whether the
flow has been completed and the id of the cloned voice. Both live in Redis under
onboarding:<profile>:completed and onboarding:<profile>:voice_id.
*/
package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Route is the screen stack the client opens on launch.
type Route string

const (
	RouteOnboarding Route = "onboarding"
	RouteMainTabs   Route = "main_tabs"
)

// State is the persisted onboarding outcome.
type State struct {
	Completed bool   `json:"completed"`
	VoiceID   string `json:"voiceId,omitempty"`
}

// InitialRoute gates the launch screen on the completion flag.
func InitialRoute(s State) Route {
	if s.Completed {
		return RouteMainTabs
	}
	return RouteOnboarding
}

// Store reads and writes onboarding state.
type Store struct {
	rdb redis.Cmdable
}

// NewStore returns a store on rdb.
func NewStore(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

func completedKey(profileID string) string { return "onboarding:" + profileID + ":completed" }
func voiceKey(profileID string) string     { return "onboarding:" + profileID + ":voice_id" }

// Load returns the onboarding state of profileID. A profile that never onboarded has the zero State.
func (s *Store) Load(ctx context.Context, profileID string) (State, error) {
	vals, err := s.rdb.MGet(ctx, completedKey(profileID), voiceKey(profileID)).Result()
	if err != nil {
		return State{}, fmt.Errorf("load onboarding state: %w", err)
	}

	var st State
	if v, ok := vals[0].(string); ok {
		st.Completed = v == "true"
	}
	if v, ok := vals[1].(string); ok {
		st.VoiceID = v
	}
	return st, nil
}

// VoiceID returns the cloned voice id, or "" when none is registered.
func (s *Store) VoiceID(ctx context.Context, profileID string) (string, error) {
	v, err := s.rdb.Get(ctx, voiceKey(profileID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load voice id: %w", err)
	}
	return v, nil
}

// RegisterVoice stores voiceID and sets the completion flag in one transaction.
func (s *Store) RegisterVoice(ctx context.Context, profileID, voiceID string) error {
	if voiceID == "" {
		return errors.New("empty voice id")
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, voiceKey(profileID), voiceID, 0)
		pipe.Set(ctx, completedKey(profileID), "true", 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("register voice: %w", err)
	}
	return nil
}

// Clear removes both keys, sending the profile back through onboarding.
func (s *Store) Clear(ctx context.Context, profileID string) error {
	if err := s.rdb.Del(ctx, completedKey(profileID), voiceKey(profileID)).Err(); err != nil {
		return fmt.Errorf("clear onboarding state: %w", err)
	}
	return nil
}
