// Package storage provides the working directory for rendered clips and
// optional publishing of finished artifacts to S3.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and S3 storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage defines the interface for the clip working directory and artifact
// publishing.
type Storage interface {
	// Dir returns the working directory shared by fetched inputs and outputs.
	Dir() string

	// OutputPath returns the deterministic artifact path for a job.
	OutputPath(jobID string) string

	// Open reads a file from the working directory.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes the specified files.
	// It continues even if some files fail to delete.
	Remove(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}

// WriteTemp writes data to a new file in dir and returns its path.
// The file is named <base>_<random><ext> after name, so the extension of
// name survives; a partial file is removed on failure.
func WriteTemp(ctx context.Context, dir, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(filepath.Base(name), ext)
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "input"
	}

	f, err := os.CreateTemp(dir, base+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}
