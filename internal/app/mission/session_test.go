package mission

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechquest/internal/app/recorder"
	"speechquest/internal/app/storage"
)

func TestSessionAnalyzeSuccess(t *testing.T) {
	f := newFixture(t, KindMission, nil)
	f.record(t)

	require.NoError(t, f.session.Analyze(context.Background()))

	snap := f.session.Snapshot()
	assert.Equal(t, StateAnalyzed, snap.State)
	require.NotNil(t, snap.Analysis)
	assert.Equal(t, "sally sells sea shells", snap.Analysis.TruthTranscription)
	assert.Equal(t, "thally thells thea thells", snap.Analysis.RecordedTranscription)
	require.NotNil(t, snap.Analysis.LispAnalysis)
	assert.True(t, snap.Analysis.LispAnalysis.HasLisp)
	assert.Nil(t, snap.Failure)
	assert.False(t, snap.AutoStopped)

	_, truth := f.speech.seenFiles.Load("truth_audio")
	_, recorded := f.speech.seenFiles.Load("recorded_audio")
	assert.True(t, truth)
	assert.True(t, recorded)

	assert.Equal(t,
		[]State{StateRecording, StateStopped, StateUploading, StateAnalyzed},
		f.log.all())

	// only the recording survives; the reference clip is gone
	for _, name := range dirEntries(t, f.dir) {
		assert.False(t, strings.HasPrefix(name, "truth-"), name)
	}
	assert.True(t, f.session.HasLocalRecording())
}

func TestSessionAnalyzeFailureThenRetry(t *testing.T) {
	f := newFixture(t, KindMission, nil)
	f.speech.failNext.Store(http.StatusInternalServerError)
	f.record(t)

	err := f.session.Analyze(context.Background())
	require.Error(t, err)

	snap := f.session.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	require.NotNil(t, snap.Failure)
	assert.Equal(t, ReasonNetworkOrServer, snap.Failure.Reason)
	assert.Nil(t, snap.Analysis)

	require.NoError(t, f.session.Reset())
	assert.Equal(t, StateIdle, f.session.Snapshot().State)
	assert.Empty(t, dirEntries(t, f.dir))

	f.record(t)
	require.NoError(t, f.session.Analyze(context.Background()))
	assert.Equal(t, StateAnalyzed, f.session.Snapshot().State)
	assert.EqualValues(t, 2, f.speech.analyzeCalls.Load())
}

func TestSessionPermissionDenied(t *testing.T) {
	f := newFixture(t, KindMission, nil)
	f.mic.Grant(false)

	err := f.session.Start(context.Background())
	assert.ErrorIs(t, err, recorder.ErrPermissionDenied)
	assert.Equal(t, StateIdle, f.session.Snapshot().State)
	assert.Empty(t, f.log.all())
}

func TestSessionStartWhileRecording(t *testing.T) {
	f := newFixture(t, KindMission, nil)
	ctx := context.Background()

	require.NoError(t, f.session.Start(ctx))
	err := f.session.Start(ctx)
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.Equal(t, StateRecording, f.session.Snapshot().State)
}

func TestSessionInvalidTransitions(t *testing.T) {
	f := newFixture(t, KindMission, nil)
	ctx := context.Background()

	assert.ErrorIs(t, f.session.Stop(ctx), ErrInvalidTransition)
	assert.ErrorIs(t, f.session.Analyze(ctx), ErrInvalidTransition)
	assert.ErrorIs(t, f.session.Clone(ctx, "", ""), ErrInvalidTransition)
	assert.ErrorIs(t, f.session.Feed([]byte("x")), ErrInvalidTransition)
}

func TestSessionEmptyStopReturnsToIdle(t *testing.T) {
	f := newFixture(t, KindMission, nil)
	ctx := context.Background()

	require.NoError(t, f.session.Start(ctx))
	err := f.session.Stop(ctx)
	assert.ErrorIs(t, err, recorder.ErrRecordingUnavailable)
	assert.Equal(t, StateIdle, f.session.Snapshot().State)
	assert.Empty(t, dirEntries(t, f.dir))
}

func TestSessionWatchdogStopsRecording(t *testing.T) {
	f := newFixture(t, KindMission, func(d *Deps) { d.MaxDuration = 20 * time.Millisecond })
	require.NoError(t, f.session.Start(context.Background()))
	require.NoError(t, f.session.Feed([]byte("audio")))

	require.Eventually(t, func() bool {
		return f.session.Snapshot().State == StateStopped
	}, time.Second, 5*time.Millisecond)

	snap := f.session.Snapshot()
	assert.True(t, snap.AutoStopped)
	assert.ErrorIs(t, f.session.Stop(context.Background()), ErrInvalidTransition)

	require.NoError(t, f.session.Analyze(context.Background()))
	assert.Equal(t, StateAnalyzed, f.session.Snapshot().State)
}

func TestSessionManualStopDisarmsWatchdog(t *testing.T) {
	f := newFixture(t, KindMission, func(d *Deps) { d.MaxDuration = 30 * time.Millisecond })
	f.record(t)
	require.NoError(t, f.session.Reset())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateIdle, f.session.Snapshot().State)
	assert.Equal(t, []State{StateRecording, StateStopped, StateIdle}, f.log.all())
}

func TestSessionResetIsIdempotent(t *testing.T) {
	f := newFixture(t, KindMission, nil)
	f.record(t)

	require.NoError(t, f.session.Reset())
	first := f.session.Snapshot()
	require.NoError(t, f.session.Reset())
	second := f.session.Snapshot()

	assert.Equal(t, StateIdle, first.State)
	assert.Equal(t, first.State, second.State)
	assert.Nil(t, second.Analysis)
	assert.False(t, f.session.HasLocalRecording())
	assert.Empty(t, dirEntries(t, f.dir))
}

func TestSessionCloseCancelsUpload(t *testing.T) {
	f := newFixture(t, KindMission, nil)
	f.speech.block = make(chan struct{})
	defer close(f.speech.block)
	f.record(t)

	done := make(chan error, 1)
	go func() { done <- f.session.Analyze(context.Background()) }()

	require.Eventually(t, func() bool {
		return f.session.Snapshot().State == StateUploading
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, f.session.Reset(), ErrSessionBusy)
	require.NoError(t, f.session.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("analyze did not return after close")
	}

	assert.Empty(t, dirEntries(t, f.dir))
	assert.ErrorIs(t, f.session.Start(context.Background()), ErrSessionClosed)
	assert.NoError(t, f.session.Close())
}

func TestSessionCallerCancelFailsUpload(t *testing.T) {
	f := newFixture(t, KindMission, nil)
	f.speech.block = make(chan struct{})
	defer close(f.speech.block)
	f.record(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := f.session.Analyze(ctx)
	require.Error(t, err)
	snap := f.session.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, ReasonNetworkOrServer, snap.Failure.Reason)
}

func TestSessionCloneRegistersVoice(t *testing.T) {
	f := newFixture(t, KindOnboarding, nil)
	f.record(t)

	require.NoError(t, f.session.Clone(context.Background(), "", ""))

	snap := f.session.Snapshot()
	assert.Equal(t, StateCloneRegistered, snap.State)
	assert.Equal(t, "voice-7", snap.VoiceID)

	voice, err := f.voices.VoiceID(context.Background(), "profile-1")
	require.NoError(t, err)
	assert.Equal(t, "voice-7", voice)
}

func TestSessionCloneRegistryFailure(t *testing.T) {
	f := newFixture(t, KindOnboarding, nil)
	f.voices.err = errors.New("redis down")
	f.record(t)

	err := f.session.Clone(context.Background(), "", "")
	require.Error(t, err)
	snap := f.session.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, ReasonInternal, snap.Failure.Reason)
}

func TestSessionOnboardingHasNoReference(t *testing.T) {
	f := newFixture(t, KindOnboarding, nil)
	f.record(t)
	assert.ErrorIs(t, f.session.Analyze(context.Background()), ErrNoReference)
	assert.Equal(t, StateStopped, f.session.Snapshot().State)
}

func TestSessionArchivesSuccessfulAttempt(t *testing.T) {
	archive := storage.NewMemoryArchive()
	f := newFixture(t, KindMission, func(d *Deps) { d.Archive = archive })
	f.record(t)

	require.NoError(t, f.session.Analyze(context.Background()))

	snap := f.session.Snapshot()
	require.NotNil(t, snap.Archived)
	assert.Equal(t, "recordings/profile-1/session-1/recorded_audio.m4a", snap.Archived.RecordedKey)
	assert.Equal(t, "recordings/profile-1/session-1/truth_audio.mp3", snap.Archived.TruthKey)

	recorded, ok := archive.Bytes(snap.Archived.RecordedKey)
	require.True(t, ok)
	assert.Equal(t, []byte("fake-m4a-audio"), recorded)
	truth, ok := archive.Bytes(snap.Archived.TruthKey)
	require.True(t, ok)
	assert.Equal(t, []byte("ID3-truth"), truth)
}

// truthlessArchive rejects reference clips.
type truthlessArchive struct {
	*storage.MemoryArchive
}

func (a truthlessArchive) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if strings.HasSuffix(key, "truth_audio.mp3") {
		return errors.New("bucket unavailable")
	}
	return a.MemoryArchive.Put(ctx, key, body, contentType)
}

func TestSessionArchivesPairsOnly(t *testing.T) {
	archive := truthlessArchive{storage.NewMemoryArchive()}
	f := newFixture(t, KindMission, func(d *Deps) { d.Archive = archive })
	f.record(t)

	require.NoError(t, f.session.Analyze(context.Background()))

	snap := f.session.Snapshot()
	assert.Equal(t, StateAnalyzed, snap.State)
	assert.Nil(t, snap.Archived)
	assert.Empty(t, archive.Keys())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ReasonNetworkOrServer, classify(context.DeadlineExceeded).Reason)
	assert.Equal(t, ReasonInternal, classify(errors.New("disk full")).Reason)
}
