package mission

import (
	"context"
	"fmt"
	"os"

	"speechquest/internal/app/storage"
)

// writeTemp stores data in a new temp file. The returned cleanup removes it and is
// safe to call more than once.
func writeTemp(dir, pattern string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}

func withFiles[T any](a, b string, fn func(fa, fb *os.File) (T, error)) (T, error) {
	var zero T

	fa, err := os.Open(a)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", a, err)
	}
	defer fa.Close()

	fb, err := os.Open(b)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", b, err)
	}
	defer fb.Close()

	return fn(fa, fb)
}

func putFile(ctx context.Context, archive storage.Archive, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return archive.Put(ctx, key, f, contentType)
}
