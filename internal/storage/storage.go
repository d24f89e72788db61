// Package storage is the blob-store boundary for raw uploaded files.
// Callers address blobs by asset ID only and never assume a path format.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNotFound = errors.New("blob not found")

type BlobStore interface {
	Write(assetID string, content []byte) error
	Read(assetID string) ([]byte, error)
	Delete(assetID string) error
}

// LocalStore keeps blobs as flat files under a base directory.
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

func (s *LocalStore) path(assetID string) string {
	// assetID is a UUID minted by this service, not user input
	return filepath.Join(s.baseDir, filepath.Base(assetID))
}

func (s *LocalStore) Write(assetID string, content []byte) error {
	return os.WriteFile(s.path(assetID), content, 0o600)
}

func (s *LocalStore) Read(assetID string) ([]byte, error) {
	content, err := os.ReadFile(s.path(assetID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, assetID)
	}
	return content, err
}

func (s *LocalStore) Delete(assetID string) error {
	err := os.Remove(s.path(assetID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
