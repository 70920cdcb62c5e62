package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechquest/internal/app/live"
	"speechquest/internal/app/mission"
	"speechquest/internal/app/onboarding"
	"speechquest/internal/app/profile"
	"speechquest/internal/app/shop"
	"speechquest/internal/app/speech"
	"speechquest/internal/app/storage"
	"speechquest/internal/configs"
	"speechquest/internal/pkg/errs"
	"speechquest/internal/pkg/pow"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	router  http.Handler
	deps    *AppDeps
	archive *storage.MemoryArchive
	mr      *miniredis.Miniredis
}

func fakeSpeechService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case speech.EndpointHealth:
			_, _ = w.Write([]byte(`{"status":"healthy","model_loaded":true,"device":"cpu"}`))
		case speech.EndpointGenerate:
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3-" + r.FormValue("voice_id")))
		case speech.EndpointAnalyze:
			_, _ = w.Write([]byte(`{"Truth":{"Transcription":"sally sells"},"Recorded":{"Transcription":"thally thells"}}`))
		case speech.EndpointClone:
			_, _ = w.Write([]byte(`{"id":"voice-123"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &configs.AppConfig{
		Environment:    configs.EnvDevelopment,
		JWTSecret:      "test-secret",
		PowDifficulty:  1,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		TempDir:        t.TempDir(),
		StartingPoints: 100,
		MissionReward:  25,
	}

	client := speech.NewClient(speech.Config{BaseURL: fakeSpeechService(t).URL, Timeout: 2 * time.Second}, zerolog.Nop())
	repo := profile.NewMemoryRepository()
	ob := onboarding.NewStore(rdb)
	archive := storage.NewMemoryArchive()

	deps := &AppDeps{
		Config:     cfg,
		Profiles:   profile.NewRegistry(repo, cfg.StartingPoints),
		Shop:       shop.NewService(repo),
		Onboarding: ob,
		Speech:     client,
		Pow:        pow.NewManager(rdb, cfg.PowDifficulty),
		Live:       live.NewManager(),
		Archive:    archive,
		Missions: mission.NewService(mission.ServiceConfig{
			Repo:      repo,
			Speech:    client,
			Prompts:   speech.NewCachedSynthesizer(client, rdb, time.Hour, zerolog.Nop()),
			Reference: client,
			Voices:    ob,
			Archive:   archive,
			TempDir:   cfg.TempDir,
			Reward:    cfg.MissionReward,
			Logger:    zerolog.Nop(),
		}),
	}

	limits := NewLimiters(deps)
	t.Cleanup(limits.Stop)

	return &testEnv{router: Router(deps, limits), deps: deps, archive: archive, mr: mr}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	contentType := ""
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}
	w := e.do(t, method, path, token, reader, contentType)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (e *testEnv) upload(t *testing.T, path, token, field, filename string, data []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := e.do(t, http.MethodPost, path, token, &buf, mw.FormDataContentType())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

// register runs the challenge and registration round-trip and returns the token.
func (e *testEnv) register(t *testing.T, deviceID string) (string, RegisterDeviceOutput) {
	t.Helper()

	_, env := e.doJSON(t, http.MethodPost, "/api/device/challenge", "", nil)
	require.Equal(t, 0, env.Code)
	var challenge pow.Challenge
	require.NoError(t, json.Unmarshal(env.Data, &challenge))

	counter, err := pow.Solve(context.Background(), challenge.Nonce, challenge.Difficulty)
	require.NoError(t, err)

	_, env = e.doJSON(t, http.MethodPost, "/api/device/register", "", RegisterDeviceInput{
		DeviceID: deviceID,
		Nonce:    challenge.Nonce,
		Counter:  counter,
	})
	require.Equal(t, 0, env.Code, env.Message)

	var out RegisterDeviceOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out.Token)
	return out.Token, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	w, env := e.doJSON(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)

	_, env = e.doJSON(t, http.MethodGet, "/health/speech", "", nil)
	status := decode[speech.HealthStatus](t, env.Data)
	assert.Equal(t, "healthy", status.Status)
	assert.True(t, status.ModelLoaded)

	w = e.do(t, http.MethodGet, "/metrics", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "speechquest_http_requests_total")
}

func TestRegisterDeviceIsIdempotent(t *testing.T) {
	e := newTestEnv(t)

	_, first := e.register(t, "device-abc-123")
	assert.True(t, first.Created)
	assert.Equal(t, 100, first.Profile.Points)
	assert.True(t, strings.HasPrefix(first.Profile.Nickname, "Cadet_"))

	_, second := e.register(t, "device-abc-123")
	assert.False(t, second.Created)
	assert.Equal(t, first.Profile.ID, second.Profile.ID)
}

func TestRegisterDeviceRejectsBadProof(t *testing.T) {
	e := newTestEnv(t)

	_, env := e.doJSON(t, http.MethodPost, "/api/device/register", "", RegisterDeviceInput{DeviceID: "device-abc-123"})
	assert.Equal(t, errs.ErrPowChallengeRequired, env.Code)

	_, env = e.doJSON(t, http.MethodPost, "/api/device/register", "", RegisterDeviceInput{
		DeviceID: "device-abc-123", Nonce: "forged", Counter: "1",
	})
	assert.Equal(t, errs.ErrPowChallengeInvalid, env.Code)

	_, env = e.doJSON(t, http.MethodPost, "/api/device/register", "", RegisterDeviceInput{
		DeviceID: "bad id!", Nonce: "n", Counter: "1",
	})
	assert.Equal(t, errs.ErrInvalidParams, env.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestEnv(t)

	w, env := e.doJSON(t, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errs.ErrUnauthorized, env.Code)

	w, _ = e.doJSON(t, http.MethodGet, "/api/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestThemeIsStatic(t *testing.T) {
	e := newTestEnv(t)
	_, env := e.doJSON(t, http.MethodGet, "/api/theme", "", nil)
	theme := decode[Theme](t, env.Data)
	assert.Equal(t, "#160b20", theme.Background)
	assert.Equal(t, "#60359c", theme.Button)
}

func TestOnboardingGatesInitialRoute(t *testing.T) {
	e := newTestEnv(t)
	token, _ := e.register(t, "device-onboard-1")

	_, env := e.doJSON(t, http.MethodGet, "/api/profile", token, nil)
	prof := decode[ProfileOutput](t, env.Data)
	assert.Equal(t, onboarding.RouteOnboarding, prof.InitialRoute)
	assert.False(t, prof.Onboarding.Completed)

	_, env = e.upload(t, "/api/onboarding/voice-sample", token, VoiceSampleField, "sample.m4a", []byte("voice"))
	require.Equal(t, 0, env.Code, env.Message)
	snap := decode[mission.Snapshot](t, env.Data)
	assert.Equal(t, mission.StateCloneRegistered, snap.State)
	assert.Equal(t, "voice-123", snap.VoiceID)

	_, env = e.doJSON(t, http.MethodGet, "/api/profile", token, nil)
	prof = decode[ProfileOutput](t, env.Data)
	assert.Equal(t, onboarding.RouteMainTabs, prof.InitialRoute)
	assert.Equal(t, "voice-123", prof.Onboarding.VoiceID)

	// prompts are now spoken in the cloned voice
	w := e.do(t, http.MethodPost, "/api/missions/1/prompt", token, nil, "")
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "ID3-voice-123", w.Body.String())

	_, env = e.doJSON(t, http.MethodDelete, "/api/onboarding", token, nil)
	require.Equal(t, 0, env.Code)
	_, env = e.doJSON(t, http.MethodGet, "/api/onboarding", token, nil)
	out := decode[OnboardingOutput](t, env.Data)
	assert.False(t, out.Completed)
	assert.Equal(t, onboarding.RouteOnboarding, out.InitialRoute)
}

func TestVoiceSampleRejectsUnsupportedAudio(t *testing.T) {
	e := newTestEnv(t)
	token, _ := e.register(t, "device-onboard-2")

	_, env := e.upload(t, "/api/onboarding/voice-sample", token, VoiceSampleField, "sample.txt", []byte("voice"))
	assert.Equal(t, errs.ErrUnsupportedAudio, env.Code)

	_, env = e.upload(t, "/api/onboarding/voice-sample", token, "wrong_field", "sample.m4a", []byte("voice"))
	assert.Equal(t, errs.ErrRecordingUnavailable, env.Code)
}

func TestShopPurchaseFlow(t *testing.T) {
	e := newTestEnv(t)
	token, _ := e.register(t, "device-shop-1")

	_, env := e.doJSON(t, http.MethodPost, "/api/shop/purchase", token, ItemInput{ItemID: "1"})
	require.Equal(t, 0, env.Code, env.Message)
	receipt := decode[shop.Receipt](t, env.Data)
	assert.Equal(t, 50, receipt.Balance)
	assert.Equal(t, "Beanie", receipt.Item.Name)

	_, env = e.doJSON(t, http.MethodPost, "/api/shop/purchase", token, ItemInput{ItemID: "1"})
	assert.Equal(t, errs.ErrItemAlreadyPurchased, env.Code)
	assert.Equal(t, "You have already purchased this item!", env.Message)

	_, env = e.doJSON(t, http.MethodPost, "/api/shop/purchase", token, ItemInput{ItemID: "10"})
	assert.Equal(t, errs.ErrInsufficientPoints, env.Code)
	assert.Equal(t, "You need 70 more points to buy Top Hat.", env.Message)

	_, env = e.doJSON(t, http.MethodPost, "/api/shop/purchase", token, ItemInput{ItemID: "99"})
	assert.Equal(t, errs.ErrItemNotFound, env.Code)

	_, env = e.doJSON(t, http.MethodGet, "/api/shop/items", token, nil)
	listing := decode[struct {
		Points int            `json:"points"`
		Items  []shop.Listing `json:"items"`
	}](t, env.Data)
	assert.Equal(t, 50, listing.Points)
	require.Len(t, listing.Items, 10)
	assert.True(t, listing.Items[0].Purchased)
	assert.False(t, listing.Items[1].Purchased)
}

func TestAvatarEquip(t *testing.T) {
	e := newTestEnv(t)
	token, _ := e.register(t, "device-avatar-1")

	_, env := e.doJSON(t, http.MethodPost, "/api/avatar/equip", token, ItemInput{ItemID: "1"})
	assert.Equal(t, errs.ErrItemNotOwned, env.Code)

	_, env = e.doJSON(t, http.MethodPost, "/api/shop/purchase", token, ItemInput{ItemID: "1"})
	require.Equal(t, 0, env.Code)

	_, env = e.doJSON(t, http.MethodPost, "/api/avatar/equip", token, ItemInput{ItemID: "1"})
	require.Equal(t, 0, env.Code, env.Message)
	avatar := decode[AvatarOutput](t, env.Data)
	require.Len(t, avatar.EquippedItems, 1)
	assert.Equal(t, "1", avatar.EquippedItems[0].ID)

	_, env = e.doJSON(t, http.MethodPost, "/api/avatar/unequip", token, ItemInput{ItemID: "1"})
	avatar = decode[AvatarOutput](t, env.Data)
	assert.Empty(t, avatar.EquippedItems)
	assert.Len(t, avatar.PurchasedItems, 1)

	_, env = e.doJSON(t, http.MethodPost, "/api/avatar/equip", token, map[string]string{"item": "1"})
	assert.Equal(t, errs.ErrInvalidJSONFormat, env.Code)
}

func TestMissionAttemptCompleteAndReplay(t *testing.T) {
	e := newTestEnv(t)
	token, reg := e.register(t, "device-mission-1")

	w, env := e.doJSON(t, http.MethodPost, "/api/missions/1/complete", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errs.ErrMissionNotReady, env.Code)

	_, env = e.upload(t, "/api/missions/1/attempts", token, RecordingField, "recorded_audio.m4a", []byte("clip"))
	require.Equal(t, 0, env.Code, env.Message)
	snap := decode[mission.Snapshot](t, env.Data)
	assert.Equal(t, mission.StateAnalyzed, snap.State)
	require.NotNil(t, snap.Analysis)
	assert.Equal(t, "thally thells", snap.Analysis.RecordedTranscription)
	require.NotNil(t, snap.Archived)

	_, env = e.doJSON(t, http.MethodPost, "/api/missions/1/complete", token, nil)
	require.Equal(t, 0, env.Code, env.Message)
	result := decode[mission.CompletionResult](t, env.Data)
	assert.True(t, result.FirstTime)
	assert.Equal(t, 125, result.Points)

	_, env = e.doJSON(t, http.MethodGet, "/api/missions", token, nil)
	planets := decode[[]PlanetOutput](t, env.Data)
	require.Len(t, planets, 3)
	assert.True(t, planets[0].Completed)
	assert.False(t, planets[1].Completed)

	// replay the archived recording
	w = e.do(t, http.MethodGet, "/api/recordings/download?k="+snap.Archived.RecordedKey, token, nil, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "recorded_audio.m4a")

	// another profile cannot reach it
	other, _ := e.register(t, "device-mission-2")
	w = e.do(t, http.MethodGet, "/api/recordings/download?k="+snap.Archived.RecordedKey, other, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.True(t, strings.Contains(snap.Archived.RecordedKey, reg.Profile.ID))
}

func TestMissionUnknownPlanet(t *testing.T) {
	e := newTestEnv(t)
	token, _ := e.register(t, "device-mission-3")

	w, env := e.doJSON(t, http.MethodPost, "/api/missions/2/prompt", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errs.ErrPlanetNotFound, env.Code)

	_, env = e.doJSON(t, http.MethodPost, "/api/missions/abc/complete", token, nil)
	assert.Equal(t, errs.ErrInvalidParams, env.Code)
}
