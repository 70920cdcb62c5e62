package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, zerolog.Nop())
}

func clip(name, body string) Clip {
	return Clip{Filename: name, ContentType: "audio/m4a", Body: strings.NewReader(body)}
}

func TestGenerateSendsTextAndVoice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, EndpointGenerate, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Repeat after me cadet!", r.FormValue("text"))
		assert.Equal(t, "voice-1", r.FormValue("voice_id"))

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	})

	audio, err := c.Generate(context.Background(), "Repeat after me cadet!", "voice-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio.Data)
	assert.Equal(t, "audio/mpeg", audio.ContentType)
}

func TestGenerateOmitsEmptyVoice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, present := r.MultipartForm.Value["voice_id"]
		assert.False(t, present)
		_, _ = w.Write([]byte("audio"))
	})

	_, err := c.Generate(context.Background(), "Sssss", "")
	require.NoError(t, err)
}

func TestCloneAcceptsBothIDFields(t *testing.T) {
	for _, body := range []string{`{"id":"v-42"}`, `{"voice_id":"v-42","name":"userClone"}`} {
		t.Run(body, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, EndpointClone, r.URL.Path)
				require.NoError(t, r.ParseMultipartForm(1<<20))
				assert.Equal(t, DefaultCloneName, r.FormValue("name"))
				assert.Equal(t, DefaultCloneDescription, r.FormValue("description"))

				f, hdr, err := r.FormFile("audio_file")
				require.NoError(t, err)
				defer f.Close()
				data, _ := io.ReadAll(f)
				assert.Equal(t, "sample", string(data))
				assert.Equal(t, "voice_sample.m4a", hdr.Filename)

				_, _ = w.Write([]byte(body))
			})

			id, err := c.Clone(context.Background(), clip("voice_sample.m4a", "sample"), "", "")
			require.NoError(t, err)
			assert.Equal(t, "v-42", id)
		})
	}
}

func TestCloneWithoutIDIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	_, err := c.Clone(context.Background(), clip("a.m4a", "x"), "n", "d")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestAnalyzeParsesCurrentShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("truth_audio")
		require.NoError(t, err)
		_, _, err = r.FormFile("recorded_audio")
		require.NoError(t, err)

		_, _ = w.Write([]byte(`{
			"truth_transcription": "Sally sells sea shells...",
			"recorded_transcription": "Sally sells sea shells...",
			"lisp_analysis": {"has_lisp": false, "confidence": 0.95}
		}`))
	})

	got, err := c.Analyze(context.Background(), clip("truth.mp3", "t"), clip("rec.m4a", "r"))
	require.NoError(t, err)
	assert.Equal(t, "Sally sells sea shells...", got.TruthTranscription)
	assert.Equal(t, "Sally sells sea shells...", got.RecordedTranscription)
	require.NotNil(t, got.LispAnalysis)
	assert.False(t, got.LispAnalysis.HasLisp)
	assert.InDelta(t, 0.95, got.LispAnalysis.Confidence, 1e-9)
}

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		truth     string
		malformed bool
	}{
		{name: "legacy nested shape", body: `{"Truth":{"Transcription":"a"},"Recorded":{"Transcription":"b"}}`, truth: "a"},
		{name: "empty strings are valid", body: `{"truth_transcription":"","recorded_transcription":""}`, truth: ""},
		{name: "missing recorded", body: `{"truth_transcription":"a"}`, malformed: true},
		{name: "not json", body: `<html>oops</html>`, malformed: true},
		{name: "wrong type", body: `{"truth_transcription":1,"recorded_transcription":2}`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnalysis([]byte(tt.body))
			if tt.malformed {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.truth, got.TruthTranscription)
		})
	}
}

func TestServerErrorCarriesRawText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "TTS generation failed: quota exceeded", http.StatusInternalServerError)
	})

	_, err := c.Analyze(context.Background(), clip("t.mp3", "t"), clip("r.m4a", "r"))

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, EndpointAnalyze, svcErr.Endpoint)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Contains(t, svcErr.Body, "TTS generation failed: quota exceeded")
}

func TestTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, zerolog.Nop())

	_, err := c.Generate(context.Background(), "slow", "")

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, 0, svcErr.StatusCode)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHealth(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"status":"healthy","model_loaded":true,"device":"cpu"}`))
	})

	st, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", st.Status)
	assert.True(t, st.ModelLoaded)
	assert.EqualValues(t, 1, calls.Load())
}
