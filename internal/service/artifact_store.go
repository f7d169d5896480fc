package service

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// ArtifactStore persists derived interview artifacts (audio, transcript text)
// and returns a reference the recording row keeps.
type ArtifactStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

type LocalArtifactStore struct {
	dir string
}

func NewLocalArtifactStore(dir string) (*LocalArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &LocalArtifactStore{dir: dir}, nil
}

// Save writes through a temp file and renames it, so a retried reconciliation
// never leaves a truncated artifact behind.
func (s *LocalArtifactStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// Escaping keeps the whole name, separators included, in one file name
	// inside dir, so distinct conversation ids never share a file.
	clean := url.PathEscape(name)
	if clean == "" || clean == "." || clean == ".." {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	path := filepath.Join(s.dir, clean)

	tmp, err := os.CreateTemp(s.dir, clean+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("rename artifact: %w", err)
	}
	return path, nil
}
