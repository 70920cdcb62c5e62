package mission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"speechquest/internal/app/profile"
	"speechquest/internal/app/recorder"
	"speechquest/internal/app/speech"
	"speechquest/internal/app/storage"
	"speechquest/internal/pkg/metrics"
	"speechquest/internal/pkg/randx"
)

// DefaultReward is the number of points a first mission completion awards.
const DefaultReward = 25

var ErrNotAnalyzed = errors.New("mission has no analyzed attempt")

// VoiceStore resolves and registers cloned voices.
type VoiceStore interface {
	VoiceRegistry
	VoiceID(ctx context.Context, profileID string) (string, error)
}

// SpeechBackend is the part of the speech client a mission needs.
type SpeechBackend interface {
	Analyzer
	Cloner
}

// ServiceConfig wires a mission Service.
type ServiceConfig struct {
	Repo        profile.Repository
	Speech      SpeechBackend
	Prompts     speech.Synthesizer // usually cached
	Reference   speech.Synthesizer
	Voices      VoiceStore
	Archive     storage.Archive
	TempDir     string
	MaxDuration time.Duration
	Reward      int
	Logger      zerolog.Logger
}

// Service runs planet missions for profiles.
type Service struct {
	cfg ServiceConfig
	log zerolog.Logger
}

// CompletionResult reports the outcome of Complete.
type CompletionResult struct {
	Planet    int  `json:"planet"`
	Awarded   int  `json:"awarded"`
	Points    int  `json:"points"`
	FirstTime bool `json:"firstTime"`
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Reward <= 0 {
		cfg.Reward = DefaultReward
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = recorder.DefaultMaxDuration
	}
	return &Service{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "mission").Logger(),
	}
}

// Prompt synthesizes the planet's prompt, in the learner's cloned voice when registered.
func (s *Service) Prompt(ctx context.Context, p *profile.Profile, planet int) (speech.Audio, error) {
	pl, err := LookupPlanet(planet)
	if err != nil {
		return speech.Audio{}, err
	}

	voiceID, err := s.cfg.Voices.VoiceID(ctx, p.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("profile_id", p.ID).Msg("Voice lookup failed, using default voice")
		voiceID = ""
	}

	return s.cfg.Prompts.Generate(ctx, pl.Prompt, voiceID)
}

// SessionOptions configures NewSession.
type SessionOptions struct {
	Kind       Kind
	Planet     int
	Microphone recorder.Microphone
	Observer   func(Snapshot)
}

// NewSession builds a recording session for p. Mission sessions mark their planet as
// ready to complete once an attempt is analyzed.
func (s *Service) NewSession(p *profile.Profile, opts SessionOptions) (*Session, error) {
	cfg := Config{
		ID:        randx.SessionID(),
		ProfileID: p.ID,
		Kind:      opts.Kind,
	}

	switch opts.Kind {
	case KindMission:
		pl, err := LookupPlanet(opts.Planet)
		if err != nil {
			return nil, err
		}
		cfg.Planet = pl.Number
		cfg.Reference = pl.Reference
	case KindOnboarding:
	default:
		return nil, fmt.Errorf("unknown session kind %q", opts.Kind)
	}

	next := opts.Observer
	cfg.Observer = func(snap Snapshot) {
		if snap.Kind == KindMission && snap.State == StateAnalyzed {
			p.MarkAnalyzed(snap.Planet)
		}
		if next != nil {
			next(snap)
		}
	}

	return NewSession(cfg, Deps{
		Microphone:  opts.Microphone,
		Synth:       s.cfg.Reference,
		Analyzer:    s.cfg.Speech,
		Cloner:      s.cfg.Speech,
		Voices:      s.cfg.Voices,
		Archive:     s.cfg.Archive,
		TempDir:     s.cfg.TempDir,
		MaxDuration: s.cfg.MaxDuration,
		Logger:      s.log.With().Str("profile_id", p.ID).Logger(),
	}), nil
}

// Complete finishes planet for p. The first completion awards the reward.
func (s *Service) Complete(ctx context.Context, p *profile.Profile, planet int) (CompletionResult, error) {
	if _, err := LookupPlanet(planet); err != nil {
		return CompletionResult{}, err
	}

	var res CompletionResult
	err := p.Exclusive(func() error {
		if !p.HasAnalyzed(planet) {
			return ErrNotAnalyzed
		}

		res = CompletionResult{Planet: planet}
		if !p.Complete(planet) {
			res.Points = p.Wallet.Balance()
			return nil
		}

		before := p.Wallet.Balance()
		after := p.Wallet.Add(s.cfg.Reward)
		if err := s.cfg.Repo.CompleteMission(ctx, p.ID, planet, after); err != nil {
			p.Wallet.Set(before)
			p.Uncomplete(planet)
			return fmt.Errorf("persist completion: %w", err)
		}

		res.Awarded = s.cfg.Reward
		res.Points = after
		res.FirstTime = true
		return nil
	})
	if err != nil {
		return CompletionResult{}, err
	}

	if res.FirstTime {
		metrics.MissionsCompleted.WithLabelValues(strconv.Itoa(planet)).Inc()
		s.log.Info().
			Str("profile_id", p.ID).
			Int("planet", planet).
			Int("points", res.Points).
			Msg("Mission completed")
	}
	return res, nil
}

// Attempt records an uploaded clip for planet and analyzes it in one call.
func (s *Service) Attempt(ctx context.Context, p *profile.Profile, planet int, audio io.Reader, format string) (Snapshot, error) {
	sess, err := s.oneShot(p, SessionOptions{Kind: KindMission, Planet: planet}, format)
	if err != nil {
		return Snapshot{}, err
	}
	defer sess.Close()

	if err := s.upload(ctx, sess, audio); err != nil {
		return sess.Snapshot(), err
	}
	if err := sess.Analyze(ctx); err != nil {
		return sess.Snapshot(), err
	}
	return sess.Snapshot(), nil
}

// RegisterVoiceSample clones the learner's voice from an uploaded sample and completes
// onboarding.
func (s *Service) RegisterVoiceSample(ctx context.Context, p *profile.Profile, audio io.Reader, format, name, description string) (Snapshot, error) {
	sess, err := s.oneShot(p, SessionOptions{Kind: KindOnboarding}, format)
	if err != nil {
		return Snapshot{}, err
	}
	defer sess.Close()

	if err := s.upload(ctx, sess, audio); err != nil {
		return sess.Snapshot(), err
	}
	if err := sess.Clone(ctx, name, description); err != nil {
		return sess.Snapshot(), err
	}
	return sess.Snapshot(), nil
}

func (s *Service) oneShot(p *profile.Profile, opts SessionOptions, format string) (*Session, error) {
	mic := recorder.NewStreamMicrophone(s.cfg.TempDir)
	if err := mic.SetFormat(format); err != nil {
		return nil, err
	}
	mic.Grant(true)
	opts.Microphone = mic
	return s.NewSession(p, opts)
}

func (s *Service) upload(ctx context.Context, sess *Session, audio io.Reader) error {
	if err := sess.Start(ctx); err != nil {
		return err
	}
	if _, err := io.Copy(sess.Writer(), audio); err != nil {
		_ = sess.Reset()
		return fmt.Errorf("copy upload: %w", err)
	}
	return sess.Stop(ctx)
}
