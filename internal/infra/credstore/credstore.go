// Package credstore persists the delegated ledger credential as a single
// JSON document on local disk. It is a passive serialization boundary: the
// token service owns the value and calls Save on every mutation.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/deskledger/finance-embed-go/internal/domain"

	"go.uber.org/zap"
)

// FileStore reads and writes the credential file.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore creates a store backed by the given path. The file is created
// on first Save.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Load reads the credential from disk. Read failures are non-fatal: a
// missing or unreadable file yields an empty, unauthorized credential so the
// process can start and report itself as not connected.
func (s *FileStore) Load() (*domain.Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("credstore: read failed, starting unauthorized",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
		return &domain.Credential{}, nil
	}

	var cred domain.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		s.logger.Warn("credstore: corrupt credential file, starting unauthorized",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return &domain.Credential{}, nil
	}

	return &cred, nil
}

// Save rewrites the credential file atomically: write to a temp file in the
// same directory, then rename over the target.
func (s *FileStore) Save(cred *domain.Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close credential file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace credential file: %w", err)
	}

	s.logger.Debug("credstore: credential persisted", zap.String("path", s.path))
	return nil
}
