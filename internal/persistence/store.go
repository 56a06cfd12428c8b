package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vitalsense/mlserve/internal/model"
)

const registryFilename = "model_registry.json"

// Store persists the registry document as a single JSON file at the base
// directory root, rewritten in full on every mutation.
type Store struct {
	path string
}

// NewStore creates a store for the registry document under baseDir.
func NewStore(baseDir string) *Store {
	return &Store{path: filepath.Join(baseDir, registryFilename)}
}

// Read loads the registry document. A missing or corrupt document degrades
// to an empty registry so startup never fails on registry state; callers
// must treat "no models found" as a normal, recoverable state.
func (s *Store) Read() *model.Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read model registry, starting empty", "path", s.path, "error", err)
		}
		return model.NewDocument()
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("Model registry document is corrupt, starting empty", "path", s.path, "error", err)
		return model.NewDocument()
	}
	if doc.Models == nil {
		doc.Models = make(map[string]map[string]model.Entry)
	}
	return &doc
}

// Write persists the document. The write is refused when the on-disk
// revision advanced past the revision the mutation was based on, so a
// concurrent writer's update is never silently discarded. Transient
// filesystem errors are retried with exponential backoff; a revision
// conflict is not retried. On success the document revision is bumped.
func (s *Store) Write(ctx context.Context, doc *model.Document) error {
	if current := s.Read(); current.Revision != doc.Revision {
		return fmt.Errorf("%w: disk revision %d, expected %d", model.ErrConcurrentWrite, current.Revision, doc.Revision)
	}

	doc.Revision++
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		doc.Revision--
		return fmt.Errorf("%w: marshal registry document: %v", model.ErrSerialization, err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.writeAtomic(data); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		doc.Revision--
		return fmt.Errorf("write registry document: %w", err)
	}
	return nil
}

// writeAtomic writes via a temp file and rename so readers never observe a
// partially written document.
func (s *Store) writeAtomic(data []byte) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Ping reports whether the registry document location is reachable. A
// registry that does not exist yet is healthy as long as its directory is.
func (s *Store) Ping() error {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			_, dirErr := os.Stat(filepath.Dir(s.path))
			return dirErr
		}
		return err
	}
	return nil
}
