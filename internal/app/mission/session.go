/*
Package mission runs the record, stop, upload and analyze flow of a planet mission and
its voice-clone variant used during onboarding.

A Session is one screen visit. It owns the capture, the local recording file and any
in-flight speech call; Close releases all of them.
*/
package mission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speechquest/internal/app/recorder"
	"speechquest/internal/app/speech"
	"speechquest/internal/app/storage"
	"speechquest/internal/pkg/metrics"
)

// State of a recording session.
type State string

const (
	StateIdle            State = "IDLE"
	StateRecording       State = "RECORDING"
	StateStopped         State = "STOPPED"
	StateUploading       State = "UPLOADING"
	StateAnalyzed        State = "ANALYZED"
	StateCloning         State = "CLONING"
	StateCloneRegistered State = "CLONE_REGISTERED"
	StateFailed          State = "FAILED"
)

// Kind selects which flow a session serves.
type Kind string

const (
	KindMission    Kind = "mission"
	KindOnboarding Kind = "onboarding"
)

var (
	ErrSessionBusy       = errors.New("session busy")
	ErrSessionClosed     = errors.New("session closed")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNoReference       = errors.New("session has no reference text")
)

// Analyzer compares a recording with a reference clip.
type Analyzer interface {
	Analyze(ctx context.Context, truth, recorded speech.Clip) (speech.Analysis, error)
}

// Cloner turns a voice sample into a cloned voice id.
type Cloner interface {
	Clone(ctx context.Context, sample speech.Clip, name, description string) (string, error)
}

// VoiceRegistry stores a cloned voice id for a profile and completes onboarding.
type VoiceRegistry interface {
	RegisterVoice(ctx context.Context, profileID, voiceID string) error
}

// Failure describes why a session ended in FAILED.
type Failure struct {
	Reason  FailureReason `json:"reason"`
	Message string        `json:"message"`
}

// FailureReason classifies failures for the client.
type FailureReason string

const (
	ReasonNetworkOrServer   FailureReason = "network_or_server"
	ReasonMalformedResponse FailureReason = "malformed_response"
	ReasonInternal          FailureReason = "internal"
)

// Archived lists the object keys of an archived attempt.
type Archived struct {
	RecordedKey string `json:"recordedKey"`
	TruthKey    string `json:"truthKey,omitempty"`
}

// Snapshot is the observable state of a session.
type Snapshot struct {
	SessionID   string           `json:"sessionId"`
	Kind        Kind             `json:"kind"`
	Planet      int              `json:"planet,omitempty"`
	State       State            `json:"state"`
	AutoStopped bool             `json:"autoStopped"`
	Analysis    *speech.Analysis `json:"analysis,omitempty"`
	VoiceID     string           `json:"voiceId,omitempty"`
	Archived    *Archived        `json:"archived,omitempty"`
	Failure     *Failure         `json:"failure,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Deps are the collaborators of a session.
type Deps struct {
	Microphone  recorder.Microphone
	Synth       speech.Synthesizer
	Analyzer    Analyzer
	Cloner      Cloner
	Voices      VoiceRegistry
	Archive     storage.Archive
	TempDir     string
	MaxDuration time.Duration
	Logger      zerolog.Logger
}

// Config identifies a session.
type Config struct {
	ID        string
	ProfileID string
	Kind      Kind
	Planet    int

	// Reference is the text the learner repeats; its synthesized clip is the analysis truth.
	Reference string

	// Observer sees every transition, in order, while the session lock is held.
	// It must not call back into the session.
	Observer func(Snapshot)
}

// Session is the recording state machine. Safe for concurrent use.
type Session struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	lifetime context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	mu          sync.Mutex
	state       State
	closed      bool
	capture     recorder.Capture
	artifact    *recorder.Artifact
	watchdog    *time.Timer
	generation  uint64
	autoStopped bool
	analysis    *speech.Analysis
	voiceID     string
	archived    *Archived
	failure     *Failure
	updatedAt   time.Time
}

// NewSession returns an IDLE session.
func NewSession(cfg Config, deps Deps) *Session {
	if deps.MaxDuration <= 0 {
		deps.MaxDuration = recorder.DefaultMaxDuration
	}
	lifetime, cancel := context.WithCancel(context.Background())

	return &Session{
		cfg:  cfg,
		deps: deps,
		log: deps.Logger.With().
			Str("component", "session").
			Str("session_id", cfg.ID).
			Str("kind", string(cfg.Kind)).
			Logger(),
		lifetime:  lifetime,
		cancel:    cancel,
		state:     StateIdle,
		updatedAt: time.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.cfg.ID }

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:   s.cfg.ID,
		Kind:        s.cfg.Kind,
		Planet:      s.cfg.Planet,
		State:       s.state,
		AutoStopped: s.autoStopped,
		Analysis:    s.analysis,
		VoiceID:     s.voiceID,
		Archived:    s.archived,
		Failure:     s.failure,
		UpdatedAt:   s.updatedAt,
	}
}

func (s *Session) setLocked(state State) {
	s.state = state
	s.updatedAt = time.Now()

	metrics.SessionTransitions.WithLabelValues(string(s.cfg.Kind), string(state)).Inc()
	s.log.Debug().Str("state", string(state)).Msg("Session transition")

	if s.cfg.Observer != nil {
		s.cfg.Observer(s.snapshotLocked())
	}
}

func (s *Session) guardLocked(op string, allowed ...State) error {
	if s.closed {
		return ErrSessionClosed
	}
	for _, st := range allowed {
		if s.state == st {
			return nil
		}
	}
	if s.state == StateRecording || s.state == StateUploading || s.state == StateCloning {
		return fmt.Errorf("%w: %s while %s", ErrSessionBusy, op, s.state)
	}
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, s.state)
}

// Start asks for microphone permission and begins capturing. The watchdog stops the
// capture after MaxDuration as if Stop had been called.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked("start", StateIdle); err != nil {
		return err
	}

	granted, err := s.deps.Microphone.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request microphone permission: %w", err)
	}
	if !granted {
		s.log.Warn().Msg("Microphone permission denied")
		return recorder.ErrPermissionDenied
	}

	capture, err := s.deps.Microphone.Open(ctx)
	if err != nil {
		return err
	}

	s.capture = capture
	s.autoStopped = false
	s.failure = nil
	s.generation++
	gen := s.generation
	s.watchdog = time.AfterFunc(s.deps.MaxDuration, func() { s.expire(gen) })

	s.setLocked(StateRecording)
	return nil
}

// Feed appends streamed audio to the open capture.
func (s *Session) Feed(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked("feed", StateRecording); err != nil {
		return err
	}
	_, err := s.capture.Write(p)
	return err
}

// Writer adapts Feed to io.Writer.
func (s *Session) Writer() io.Writer {
	return feedWriter{s}
}

type feedWriter struct{ s *Session }

func (w feedWriter) Write(p []byte) (int, error) {
	if err := w.s.Feed(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Stop finalizes the capture. An empty capture returns ErrRecordingUnavailable and the
// session goes back to IDLE.
func (s *Session) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked("stop", StateRecording); err != nil {
		return err
	}
	return s.stopLocked(false)
}

func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation || s.state != StateRecording {
		return
	}

	s.log.Info().Dur("max_duration", s.deps.MaxDuration).Msg("Recording reached duration ceiling")
	metrics.WatchdogStops.Inc()
	_ = s.stopLocked(true)
}

func (s *Session) stopLocked(auto bool) error {
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}

	capture := s.capture
	s.capture = nil

	art, err := capture.Finish()
	if err != nil {
		s.log.Warn().Err(err).Bool("auto", auto).Msg("Recording produced no artifact")
		s.setLocked(StateIdle)
		if errors.Is(err, recorder.ErrRecordingUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", recorder.ErrRecordingUnavailable, err)
	}

	s.artifact = &art
	s.autoStopped = auto
	s.setLocked(StateStopped)
	return nil
}

// Analyze uploads the recording with a freshly synthesized reference clip and stores the
// result. Failures move the session to FAILED and are returned.
func (s *Session) Analyze(ctx context.Context) error {
	s.mu.Lock()
	if err := s.guardLocked("analyze", StateStopped); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.cfg.Reference == "" {
		s.mu.Unlock()
		return ErrNoReference
	}
	art := *s.artifact
	opCtx, done := s.beginLocked(ctx)
	s.setLocked(StateUploading)
	s.mu.Unlock()
	defer done()

	result, archived, err := s.analyze(opCtx, art)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err != nil {
		s.failLocked(err)
		return err
	}

	s.analysis = &result
	s.archived = archived
	s.setLocked(StateAnalyzed)
	return nil
}

func (s *Session) analyze(ctx context.Context, art recorder.Artifact) (speech.Analysis, *Archived, error) {
	truthAudio, err := s.deps.Synth.Generate(ctx, s.cfg.Reference, "")
	if err != nil {
		return speech.Analysis{}, nil, err
	}

	truthFile, cleanup, err := writeTemp(s.deps.TempDir, "truth-*.mp3", truthAudio.Data)
	if err != nil {
		return speech.Analysis{}, nil, err
	}
	defer cleanup()

	result, err := withFiles(truthFile, art.Path, func(truth, recorded *os.File) (speech.Analysis, error) {
		return s.deps.Analyzer.Analyze(ctx,
			speech.Clip{Filename: "truth_audio.mp3", ContentType: "audio/mpeg", Body: truth},
			speech.Clip{Filename: art.Filename, ContentType: art.ContentType, Body: recorded},
		)
	})
	if err != nil {
		return speech.Analysis{}, nil, err
	}

	return result, s.archive(ctx, art, truthFile), nil
}

// archive copies a successful attempt to object storage as a recording/reference pair.
// Archive errors are logged only.
func (s *Session) archive(ctx context.Context, art recorder.Artifact, truthPath string) *Archived {
	if s.deps.Archive == nil {
		return nil
	}

	out := &Archived{
		RecordedKey: storage.RecordingKey(s.cfg.ProfileID, s.cfg.ID, art.Filename),
		TruthKey:    storage.RecordingKey(s.cfg.ProfileID, s.cfg.ID, "truth_audio.mp3"),
	}

	if err := putFile(ctx, s.deps.Archive, out.RecordedKey, art.Path, art.ContentType); err != nil {
		s.log.Warn().Err(err).Msg("Archiving recording failed")
		return nil
	}
	if err := putFile(ctx, s.deps.Archive, out.TruthKey, truthPath, "audio/mpeg"); err != nil {
		s.log.Warn().Err(err).Msg("Archiving reference clip failed")
		// a recording without its reference cannot be replayed side by side
		if err := s.deps.Archive.Delete(ctx, out.RecordedKey); err != nil {
			s.log.Warn().Err(err).Str("key", out.RecordedKey).Msg("Removing half-archived recording failed")
		}
		return nil
	}
	return out
}

// Clone registers the recording as the learner's voice sample.
func (s *Session) Clone(ctx context.Context, name, description string) error {
	s.mu.Lock()
	if err := s.guardLocked("clone", StateStopped); err != nil {
		s.mu.Unlock()
		return err
	}
	art := *s.artifact
	opCtx, done := s.beginLocked(ctx)
	s.setLocked(StateCloning)
	s.mu.Unlock()
	defer done()

	voiceID, err := s.clone(opCtx, art, name, description)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err != nil {
		s.failLocked(err)
		return err
	}

	s.voiceID = voiceID
	s.setLocked(StateCloneRegistered)
	return nil
}

func (s *Session) clone(ctx context.Context, art recorder.Artifact, name, description string) (string, error) {
	f, err := os.Open(art.Path)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	voiceID, err := s.deps.Cloner.Clone(ctx, speech.Clip{
		Filename:    art.Filename,
		ContentType: art.ContentType,
		Body:        f,
	}, name, description)
	if err != nil {
		return "", err
	}

	if err := s.deps.Voices.RegisterVoice(ctx, s.cfg.ProfileID, voiceID); err != nil {
		return "", fmt.Errorf("register voice: %w", err)
	}

	s.log.Info().Str("voice_id", voiceID).Msg("Voice clone registered")
	return voiceID, nil
}

// beginLocked derives the context of a remote call: it ends when the caller's context
// ends or the session closes.
func (s *Session) beginLocked(ctx context.Context) (context.Context, func()) {
	s.inflight.Add(1)
	opCtx, cancel := context.WithCancel(s.lifetime)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
		s.inflight.Done()
	}
}

func (s *Session) failLocked(err error) {
	s.failure = classify(err)
	s.log.Error().Err(err).Str("reason", string(s.failure.Reason)).Msg("Session step failed")
	s.setLocked(StateFailed)
}

// Reset discards the capture, the recording file and any result, returning to IDLE.
// It is refused while a remote call is in flight.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.state == StateUploading || s.state == StateCloning {
		return fmt.Errorf("%w: reset while %s", ErrSessionBusy, s.state)
	}

	s.releaseLocked()
	s.autoStopped = false
	s.analysis = nil
	s.voiceID = ""
	s.archived = nil
	s.failure = nil
	s.setLocked(StateIdle)
	return nil
}

// Close abandons the session: in-flight calls are cancelled, the capture is aborted
// and every local file is removed. Close waits for in-flight calls to return.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	s.releaseLocked()
	s.mu.Unlock()

	s.inflight.Wait()
	return nil
}

func (s *Session) releaseLocked() {
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
	s.generation++

	if s.capture != nil {
		if err := s.capture.Abort(); err != nil {
			s.log.Warn().Err(err).Msg("Abort capture failed")
		}
		s.capture = nil
	}
	if s.artifact != nil {
		if err := s.artifact.Remove(); err != nil {
			s.log.Warn().Err(err).Msg("Remove recording failed")
		}
		s.artifact = nil
	}
}

// HasLocalRecording reports whether a recording file is currently held.
func (s *Session) HasLocalRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact != nil
}

func classify(err error) *Failure {
	var svcErr *speech.ServiceError
	switch {
	case errors.As(err, &svcErr), errors.Is(err, context.DeadlineExceeded):
		return &Failure{Reason: ReasonNetworkOrServer, Message: "Failed to analyze recording. Please try again."}
	case errors.Is(err, speech.ErrMalformedResponse):
		return &Failure{Reason: ReasonMalformedResponse, Message: "Failed to analyze recording. Please try again."}
	default:
		return &Failure{Reason: ReasonInternal, Message: "Something went wrong. Please try again."}
	}
}
