package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"speechquest/internal/pkg/metrics"
)

const (
	cacheKeyPrefix = "tts:prompt:"

	DefaultPromptCacheTTL = 24 * time.Hour
)

// CachedSynthesizer keeps generated prompt audio in Redis so repeated mission
// prompts do not hit the speech service.
type CachedSynthesizer struct {
	next   Synthesizer
	rdb    redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedSynthesizer wraps next with a Redis cache entries expire from after ttl.
func NewCachedSynthesizer(next Synthesizer, rdb redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *CachedSynthesizer {
	if ttl <= 0 {
		ttl = DefaultPromptCacheTTL
	}
	return &CachedSynthesizer{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "prompt_cache").Logger(),
	}
}

// CacheKey is sha256(voice|text).
func CacheKey(text, voiceID string) string {
	sum := sha256.Sum256([]byte(voiceID + "|" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Generate serves from the cache when possible. Cache failures degrade to a direct call.
func (s *CachedSynthesizer) Generate(ctx context.Context, text, voiceID string) (Audio, error) {
	key := CacheKey(text, voiceID)

	fields, err := s.rdb.HGetAll(ctx, key).Result()
	switch {
	case err != nil && !errors.Is(err, redis.Nil):
		metrics.PromptCache.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Msg("Prompt cache read failed")
	case len(fields["data"]) > 0:
		metrics.PromptCache.WithLabelValues("hit").Inc()
		return Audio{Data: []byte(fields["data"]), ContentType: fields["content_type"]}, nil
	default:
		metrics.PromptCache.WithLabelValues("miss").Inc()
	}

	audio, err := s.next.Generate(ctx, text, voiceID)
	if err != nil {
		return Audio{}, err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "data", audio.Data, "content_type", audio.ContentType)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Prompt cache write failed")
	}

	return audio, nil
}

// Invalidate drops the cached clip for text and voiceID.
func (s *CachedSynthesizer) Invalidate(ctx context.Context, text, voiceID string) error {
	return s.rdb.Del(ctx, CacheKey(text, voiceID)).Err()
}
