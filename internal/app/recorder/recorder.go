/*
Package recorder abstracts the capture side of a recording: permission, an open capture
that accepts audio bytes, and the finalized artifact on local disk.

The client device owns the real microphone. The server-side Microphone receives the
permission answer and the audio stream from it and spools the bytes to a temp file.
*/
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxDuration is the ceiling after which a recording is stopped automatically.
const DefaultMaxDuration = 15 * time.Second

// MaxCaptureBytes bounds a single capture on disk.
const MaxCaptureBytes int64 = 20 << 20

var (
	ErrPermissionDenied     = errors.New("microphone permission denied")
	ErrRecordingUnavailable = errors.New("no recording artifact produced")
	ErrCaptureTooLarge      = errors.New("recording exceeds size limit")
	ErrCaptureClosed        = errors.New("capture already finished")
)

// Microphone grants permission and opens captures.
type Microphone interface {
	RequestPermission(ctx context.Context) (bool, error)
	Open(ctx context.Context) (Capture, error)
}

// Capture receives audio until it is finished or aborted.
type Capture interface {
	Write(p []byte) (int, error)

	// Finish closes the capture and returns the artifact. An empty capture yields
	// ErrRecordingUnavailable and leaves nothing on disk.
	Finish() (Artifact, error)

	// Abort discards the capture and its file.
	Abort() error
}

// Artifact is a finished recording on local disk.
type Artifact struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// Remove deletes the artifact file. Missing files are not an error.
func (a Artifact) Remove() error {
	if a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

var contentTypes = map[string]string{
	"m4a":  "audio/m4a",
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"webm": "audio/webm",
	"ogg":  "audio/ogg",
	"aac":  "audio/aac",
}

// DefaultFormat is assumed when the client does not name one.
const DefaultFormat = "m4a"

// NormalizeFormat maps a client-declared format to a known container, or "" if unknown.
func NormalizeFormat(format string) string {
	f := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	if f == "" {
		return DefaultFormat
	}
	if _, ok := contentTypes[f]; ok {
		return f
	}
	return ""
}

// ContentTypeFor returns the MIME type of a normalized format.
func ContentTypeFor(format string) string {
	if ct, ok := contentTypes[format]; ok {
		return ct
	}
	return "application/octet-stream"
}

// StreamMicrophone is fed by the client: it relays the device's permission answer and
// spools streamed audio into temp files under Dir.
type StreamMicrophone struct {
	Dir string

	granted atomic.Bool
	mu      sync.Mutex
	format  string
}

// NewStreamMicrophone returns a microphone spooling into dir ("" means os.TempDir).
func NewStreamMicrophone(dir string) *StreamMicrophone {
	return &StreamMicrophone{Dir: dir, format: DefaultFormat}
}

// Grant records the permission answer the device reported.
func (m *StreamMicrophone) Grant(granted bool) {
	m.granted.Store(granted)
}

// SetFormat sets the container of the next capture. Unknown formats are rejected.
func (m *StreamMicrophone) SetFormat(format string) error {
	f := NormalizeFormat(format)
	if f == "" {
		return fmt.Errorf("unsupported audio format %q", format)
	}
	m.mu.Lock()
	m.format = f
	m.mu.Unlock()
	return nil
}

func (m *StreamMicrophone) RequestPermission(context.Context) (bool, error) {
	return m.granted.Load(), nil
}

func (m *StreamMicrophone) Open(context.Context) (Capture, error) {
	if !m.granted.Load() {
		return nil, ErrPermissionDenied
	}
	m.mu.Lock()
	format := m.format
	m.mu.Unlock()
	return NewFileCapture(m.Dir, format)
}

// FileCapture spools audio into a temp file.
type FileCapture struct {
	mu     sync.Mutex
	file   *os.File
	format string
	size   int64
	done   bool
}

// NewFileCapture creates the temp file backing a capture.
func NewFileCapture(dir, format string) (*FileCapture, error) {
	f, err := os.CreateTemp(dir, "recording-*."+format)
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	return &FileCapture{file: f, format: format}, nil
}

func (c *FileCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return 0, ErrCaptureClosed
	}
	if c.size+int64(len(p)) > MaxCaptureBytes {
		return 0, ErrCaptureTooLarge
	}
	n, err := c.file.Write(p)
	c.size += int64(n)
	return n, err
}

func (c *FileCapture) Finish() (Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return Artifact{}, ErrCaptureClosed
	}
	c.done = true

	path := c.file.Name()
	if err := c.file.Close(); err != nil {
		_ = os.Remove(path)
		return Artifact{}, fmt.Errorf("close capture file: %w", err)
	}

	if c.size == 0 {
		_ = os.Remove(path)
		return Artifact{}, ErrRecordingUnavailable
	}

	return Artifact{
		Path:        path,
		Filename:    "recorded_audio." + c.format,
		ContentType: ContentTypeFor(c.format),
		Size:        c.size,
	}, nil
}

func (c *FileCapture) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.file.Name()
	if !c.done {
		c.done = true
		_ = c.file.Close()
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
