/*
Package speech is the client of the remote text-to-speech and pronunciation analysis
service. Every call is a multipart POST (or a GET for the health probe) bounded by a
per-call timeout; nothing is retried automatically.
*/
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"speechquest/internal/pkg/metrics"
)

const (
	EndpointGenerate = "/tts/generate"
	EndpointClone    = "/tts/clone"
	EndpointAnalyze  = "/analyze"
	EndpointHealth   = "/health"

	DefaultTimeout = 30 * time.Second

	DefaultCloneName        = "userClone"
	DefaultCloneDescription = "User's custom voice clone"

	maxResponseBytes = 32 << 20
)

// ErrMalformedResponse means the service answered 2xx with a body of the wrong shape.
var ErrMalformedResponse = errors.New("malformed speech service response")

// ServiceError is a non-2xx answer or a transport failure (StatusCode 0).
type ServiceError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("speech %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("speech %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Audio is a synthesized clip.
type Audio struct {
	Data        []byte
	ContentType string
}

// Clip is an audio file sent to the service.
type Clip struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// LispAnalysis is the optional phoneme judgement attached to an analysis.
type LispAnalysis struct {
	HasLisp    bool    `json:"has_lisp"`
	Confidence float64 `json:"confidence"`
	Details    string  `json:"details,omitempty"`
}

// Analysis is the result of comparing a recording with its reference.
type Analysis struct {
	TruthTranscription    string        `json:"truthTranscription"`
	RecordedTranscription string        `json:"recordedTranscription"`
	LispAnalysis          *LispAnalysis `json:"lispAnalysis,omitempty"`
}

// HealthStatus is the liveness probe answer.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Device      string `json:"device,omitempty"`
}

// Synthesizer turns text into speech.
type Synthesizer interface {
	Generate(ctx context.Context, text, voiceID string) (Audio, error)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// HTTPClient defaults to a client without its own timeout; the per-call
	// context deadline bounds every request.
	HTTPClient *http.Client
}

// Client talks to the speech service.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient builds a client for cfg.BaseURL.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		logger:  logger.With().Str("component", "speech").Logger(),
	}
}

// Generate synthesizes text, in the cloned voice when voiceID is set.
func (c *Client) Generate(ctx context.Context, text, voiceID string) (Audio, error) {
	form := newForm()
	form.field("text", text)
	if voiceID != "" {
		form.field("voice_id", voiceID)
	}

	body, header, err := c.post(ctx, EndpointGenerate, form)
	if err != nil {
		return Audio{}, err
	}
	if len(body) == 0 {
		return Audio{}, fmt.Errorf("%w: empty audio", ErrMalformedResponse)
	}

	ct := header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = "audio/mpeg"
	}
	return Audio{Data: body, ContentType: ct}, nil
}

// Clone registers sample as a new voice and returns its id.
func (c *Client) Clone(ctx context.Context, sample Clip, name, description string) (string, error) {
	if name == "" {
		name = DefaultCloneName
	}
	if description == "" {
		description = DefaultCloneDescription
	}

	form := newForm()
	form.file("audio_file", sample)
	form.field("name", name)
	form.field("description", description)

	body, _, err := c.post(ctx, EndpointClone, form)
	if err != nil {
		return "", err
	}

	var out struct {
		ID      string `json:"id"`
		VoiceID string `json:"voice_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch {
	case out.VoiceID != "":
		return out.VoiceID, nil
	case out.ID != "":
		return out.ID, nil
	}
	return "", fmt.Errorf("%w: no voice id in clone response", ErrMalformedResponse)
}

type transcriptionWire struct {
	Transcription *string `json:"Transcription"`
}

type analysisWire struct {
	TruthTranscription    *string            `json:"truth_transcription"`
	RecordedTranscription *string            `json:"recorded_transcription"`
	LispAnalysis          *LispAnalysis      `json:"lisp_analysis"`
	Truth                 *transcriptionWire `json:"Truth"`
	Recorded              *transcriptionWire `json:"Recorded"`
}

// Analyze compares the recording with the reference clip.
func (c *Client) Analyze(ctx context.Context, truth, recorded Clip) (Analysis, error) {
	form := newForm()
	form.file("truth_audio", truth)
	form.file("recorded_audio", recorded)

	body, _, err := c.post(ctx, EndpointAnalyze, form)
	if err != nil {
		return Analysis{}, err
	}

	return parseAnalysis(body)
}

func parseAnalysis(body []byte) (Analysis, error) {
	var w analysisWire
	if err := json.Unmarshal(body, &w); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if w.TruthTranscription != nil && w.RecordedTranscription != nil {
		return Analysis{
			TruthTranscription:    *w.TruthTranscription,
			RecordedTranscription: *w.RecordedTranscription,
			LispAnalysis:          w.LispAnalysis,
		}, nil
	}

	// older servers nest the transcriptions
	if w.Truth != nil && w.Truth.Transcription != nil && w.Recorded != nil && w.Recorded.Transcription != nil {
		return Analysis{
			TruthTranscription:    *w.Truth.Transcription,
			RecordedTranscription: *w.Recorded.Transcription,
			LispAnalysis:          w.LispAnalysis,
		}, nil
	}

	return Analysis{}, fmt.Errorf("%w: missing transcriptions", ErrMalformedResponse)
}

// Health calls the liveness probe.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+EndpointHealth, nil)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("failed to create request: %w", err)
	}

	body, _, err := c.do(req, EndpointHealth)
	if err != nil {
		return HealthStatus{}, err
	}

	var st HealthStatus
	if err := json.Unmarshal(body, &st); err != nil || st.Status == "" {
		return HealthStatus{}, fmt.Errorf("%w: health status", ErrMalformedResponse)
	}
	return st, nil
}

func (c *Client) post(ctx context.Context, endpoint string, form *multipartForm) ([]byte, http.Header, error) {
	payload, contentType, err := form.finish()
	if err != nil {
		return nil, nil, fmt.Errorf("build %s form: %w", endpoint, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	return c.do(req, endpoint)
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, http.Header, error) {
	start := time.Now()
	defer func() {
		metrics.SpeechLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.SpeechCalls.WithLabelValues(endpoint, "transport_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Speech service unreachable")
		return nil, nil, &ServiceError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.SpeechCalls.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, nil, &ServiceError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.SpeechCalls.WithLabelValues(endpoint, "status_error").Inc()
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("endpoint", endpoint).
			Str("body", string(body)).
			Msg("Speech service error")
		return nil, nil, &ServiceError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	metrics.SpeechCalls.WithLabelValues(endpoint, "ok").Inc()
	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("Speech call complete")

	return body, resp.Header, nil
}

// multipartForm collects fields and files, remembering the first write error.
type multipartForm struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *multipartForm {
	f := &multipartForm{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *multipartForm) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.w.WriteField(name, value)
}

func (f *multipartForm) file(name string, clip Clip) {
	if f.err != nil {
		return
	}
	if clip.Body == nil {
		f.err = fmt.Errorf("%s: no audio", name)
		return
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, clip.Filename))
	ct := clip.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = io.Copy(part, clip.Body)
}

func (f *multipartForm) finish() (io.Reader, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if err := f.w.Close(); err != nil {
		return nil, "", err
	}
	return &f.buf, f.w.FormDataContentType(), nil
}
