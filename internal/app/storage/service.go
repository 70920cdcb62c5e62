/*
Package storage archives recordings and their reference clips in S3-compatible object
storage and hands out presigned replay URLs.
*/
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// DownloadURLDuration is how long a presigned replay link stays valid.
const DownloadURLDuration = 15 * time.Minute

// ErrNotFound is returned for keys that do not exist.
var ErrNotFound = errors.New("object not found")

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Archive stores audio objects.
type Archive interface {
	// Put uploads body under key.
	Put(ctx context.Context, key string, body io.Reader, contentType string) error

	// PresignDownload generates a pre-signed URL for downloading key.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Stat returns the content type and size of key.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// ObjectInfo is the metadata of a stored object.
type ObjectInfo struct {
	ContentType string
	Size        int64
}

// NewArchive returns the S3-backed archive for cfg.
func NewArchive(ctx context.Context, cfg ServiceConfig) (Archive, error) {
	return newS3Client(ctx, cfg)
}

const recordingsPrefix = "recordings"

// RecordingKey builds recordings/<profile>/<session>/<name>.
func RecordingKey(profileID, sessionID, name string) string {
	return path.Join(recordingsPrefix, profileID, sessionID, name)
}

// OwnedBy reports whether key lies under profileID's recordings prefix.
func OwnedBy(profileID, key string) bool {
	if profileID == "" || strings.Contains(key, "..") {
		return false
	}
	return strings.HasPrefix(key, path.Join(recordingsPrefix, profileID)+"/")
}
