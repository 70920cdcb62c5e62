package mission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"speechquest/internal/app/recorder"
	"speechquest/internal/app/speech"
)

// fakeSpeech serves the three speech endpoints. A non-zero failNext is returned as the
// status of the next analyze call only.
type fakeSpeech struct {
	analyzeCalls atomic.Int32
	cloneCalls   atomic.Int32
	failNext     atomic.Int32
	block        chan struct{}
	seenFiles    sync.Map
}

func (f *fakeSpeech) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case speech.EndpointGenerate:
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3-truth"))

		case speech.EndpointAnalyze:
			f.analyzeCalls.Add(1)
			if f.block != nil {
				select {
				case <-f.block:
				case <-r.Context().Done():
					return
				}
			}
			if r.ParseMultipartForm(1<<20) == nil {
				for name := range r.MultipartForm.File {
					f.seenFiles.Store(name, true)
				}
			}
			if status := f.failNext.Swap(0); status != 0 {
				http.Error(w, "model crashed", int(status))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"truth_transcription":    "sally sells sea shells",
				"recorded_transcription": "thally thells thea thells",
				"lisp_analysis":          map[string]any{"has_lisp": true, "confidence": 0.8},
			})

		case speech.EndpointClone:
			f.cloneCalls.Add(1)
			_, _ = w.Write([]byte(`{"voice_id":"voice-7"}`))

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func newSpeechClient(t *testing.T, f *fakeSpeech) *speech.Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return speech.NewClient(speech.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, zerolog.Nop())
}

type memoryVoices struct {
	mu     sync.Mutex
	voices map[string]string
	err    error
}

func newMemoryVoices() *memoryVoices {
	return &memoryVoices{voices: make(map[string]string)}
}

func (m *memoryVoices) RegisterVoice(_ context.Context, profileID, voiceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.voices[profileID] = voiceID
	return nil
}

func (m *memoryVoices) VoiceID(_ context.Context, profileID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voices[profileID], nil
}

// recorderLog collects observed states.
type recorderLog struct {
	mu     sync.Mutex
	states []State
}

func (l *recorderLog) observe(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s.State)
}

func (l *recorderLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

type sessionFixture struct {
	session *Session
	mic     *recorder.StreamMicrophone
	speech  *fakeSpeech
	voices  *memoryVoices
	dir     string
	log     *recorderLog
}

func newFixture(t *testing.T, kind Kind, tweak func(*Deps)) *sessionFixture {
	t.Helper()

	dir := t.TempDir()
	fs := &fakeSpeech{}
	client := newSpeechClient(t, fs)
	mic := recorder.NewStreamMicrophone(dir)
	mic.Grant(true)
	voices := newMemoryVoices()
	log := &recorderLog{}

	deps := Deps{
		Microphone:  mic,
		Synth:       client,
		Analyzer:    client,
		Cloner:      client,
		Voices:      voices,
		TempDir:     dir,
		MaxDuration: time.Minute,
		Logger:      zerolog.Nop(),
	}
	if tweak != nil {
		tweak(&deps)
	}

	planet, err := LookupPlanet(1)
	require.NoError(t, err)

	cfg := Config{
		ID:        "session-1",
		ProfileID: "profile-1",
		Kind:      kind,
		Observer:  log.observe,
	}
	if kind == KindMission {
		cfg.Planet = planet.Number
		cfg.Reference = planet.Reference
	}

	s := NewSession(cfg, deps)
	t.Cleanup(func() { _ = s.Close() })

	return &sessionFixture{session: s, mic: mic, speech: fs, voices: voices, dir: dir, log: log}
}

// record runs Start, Feed and Stop with a small clip.
func (f *sessionFixture) record(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))
	require.NoError(t, f.session.Feed([]byte("fake-m4a-audio")))
	require.NoError(t, f.session.Stop(ctx))
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
