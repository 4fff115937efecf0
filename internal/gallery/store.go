// Package gallery provides the per-instrument store of saved chart analyses
// with write-through file persistence.
//
// The gallery maps an instrument ID to the ordered sequence of images the user
// chose to save. An instrument key always maps to a non-empty sequence:
// deleting the last image for an instrument removes the key entirely. The full
// map is rewritten to disk after every mutation using an atomic tmp-write +
// rename, so there is no concept of a partial write. A missing or corrupt
// persistence file degrades to an empty gallery rather than failing startup.
package gallery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/finlens/chartoracle/internal/logger"
	"github.com/finlens/chartoracle/internal/models"
)

// Store holds saved chart analyses partitioned by instrument. Mutations are
// sequential (they only happen from the orchestrator's completion callbacks),
// but reads can come from the UI thread, so access is mutex-guarded.
type Store struct {
	mu       sync.RWMutex
	images   map[string][]models.SavedImage
	filePath string
}

// persistenceFile is the on-disk representation of the gallery.
type persistenceFile struct {
	Version   string                        `json:"version"`
	SavedAt   time.Time                     `json:"saved_at"`
	Galleries map[string][]models.SavedImage `json:"galleries"`
}

const persistenceVersion = "1.0"

// New creates a gallery store persisting to filePath. If filePath is empty an
// OS-appropriate default under the user temp directory is used.
func New(filePath string) *Store {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "chartoracle", "gallery.json")
	}
	return &Store{
		images:   make(map[string][]models.SavedImage),
		filePath: filePath,
	}
}

// Load restores the gallery from disk. A missing file starts an empty gallery;
// an unreadable or corrupt file is logged and likewise degrades to empty.
// Load never returns an error that should abort startup.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clean up any stale temp file from a previous crash.
	tempPath := s.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		return
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		logger.Warn("Failed to read gallery file %s, starting empty: %v", s.filePath, err)
		return
	}

	var file persistenceFile
	if err := json.Unmarshal(data, &file); err != nil {
		logger.Warn("Failed to parse gallery file %s, starting empty: %v", s.filePath, err)
		return
	}

	if file.Galleries == nil {
		return
	}

	// Drop empty sequences that should never have been persisted.
	for id, imgs := range file.Galleries {
		if len(imgs) > 0 {
			s.images[id] = imgs
		}
	}
}

// List returns the saved images for an instrument in insertion order. The
// returned slice is a copy; an instrument with no saved images yields an empty
// slice.
func (s *Store) List(instrumentID string) []models.SavedImage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	imgs := s.images[instrumentID]
	out := make([]models.SavedImage, len(imgs))
	copy(out, imgs)
	return out
}

// Add appends a saved image to its instrument's sequence, creating the key if
// absent, and rewrites the persistence file.
func (s *Store) Add(img models.SavedImage) error {
	if err := img.Validate(); err != nil {
		return fmt.Errorf("invalid saved image: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.images[img.AssetID] = append(s.images[img.AssetID], img)
	s.save()
	return nil
}

// Delete removes the image with the given ID from an instrument's sequence.
// When the sequence becomes empty the instrument key is removed entirely, so
// no empty sequences ever persist. Deleting an unknown image is an error.
func (s *Store) Delete(instrumentID, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	imgs, ok := s.images[instrumentID]
	if !ok {
		return fmt.Errorf("no saved images for instrument %s", instrumentID)
	}

	idx := -1
	for i, img := range imgs {
		if img.ID == imageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("saved image %s not found for instrument %s", imageID, instrumentID)
	}

	remaining := append(append([]models.SavedImage{}, imgs[:idx]...), imgs[idx+1:]...)
	if len(remaining) == 0 {
		delete(s.images, instrumentID)
	} else {
		s.images[instrumentID] = remaining
	}

	s.save()
	return nil
}

// Instruments returns the IDs of all instruments that currently have saved
// images.
func (s *Store) Instruments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.images))
	for id := range s.images {
		ids = append(ids, id)
	}
	return ids
}

// save rewrites the full gallery to disk. Write failures are logged, never
// propagated: persistence problems must not interrupt the prediction flow.
// Callers must hold the write lock.
func (s *Store) save() {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("Failed to create gallery directory %s: %v", dir, err)
		return
	}

	file := persistenceFile{
		Version:   persistenceVersion,
		SavedAt:   time.Now(),
		Galleries: s.images,
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		logger.Warn("Failed to marshal gallery: %v", err)
		return
	}

	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		logger.Warn("Failed to write gallery file: %v", err)
		return
	}

	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath)
		logger.Warn("Failed to replace gallery file: %v", err)
	}
}
