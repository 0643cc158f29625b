package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kantinpay/kantin/ledger/models"
)

// FileStore keeps the cards as an indented JSON array, the same layout as the
// kiosk's data/cards.json. Writes go to a temp file that is renamed over the
// original so a crash never leaves a half-written file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates the parent directory and an empty file when they do not exist.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
	}
	s := &FileStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.Save(context.Background(), nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) ([]models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Card{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	cards := []models.Card{}
	if err := json.NewDecoder(f).Decode(&cards); err != nil {
		return nil, fmt.Errorf("decoding %s: %w: %v", s.path, ErrCorrupt, err)
	}
	return cards, nil
}

func (s *FileStore) Save(_ context.Context, cards []models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cards == nil {
		cards = []models.Card{}
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cards); err != nil {
		f.Close()
		return fmt.Errorf("encoding cards: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *FileStore) Close() error {
	return nil
}
