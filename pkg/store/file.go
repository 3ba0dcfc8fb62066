package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const DefaultFileName = ".fusion-swap-orders.json"

// FileStore keeps records in a single JSON file, rewritten atomically on
// every change.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	records  map[string]*Record
}

// fileContents is the JSON structure on disk.
type fileContents struct {
	Orders map[string]*Record `json:"orders"`
}

// NewFileStore opens or creates the store at filePath. An empty path uses the
// home directory.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}

	s := &FileStore{
		filePath: filePath,
		records:  make(map[string]*Record),
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	return s, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return fmt.Errorf("failed to unmarshal orders: %w", err)
	}
	if contents.Orders != nil {
		s.records = contents.Orders
	}
	return nil
}

// persist writes the current records. Callers hold s.mu.
func (s *FileStore) persist() error {
	data, err := json.MarshalIndent(fileContents{Orders: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal orders: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write orders: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *FileStore) Save(_ context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec.clone()
	return s.persist()
}

func (s *FileStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return rec.clone(), nil
}

func (s *FileStore) FindByOrderHash(_ context.Context, orderHash string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.OrderHash != "" && rec.OrderHash == orderHash {
			return rec.clone(), nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", orderHash, ErrNotFound)
}

func (s *FileStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec.clone())
	}
	sortNewestFirst(records)
	return records, nil
}

func (s *FileStore) Update(_ context.Context, id string, fn func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	updated := rec.clone()
	if err := fn(updated); err != nil {
		return err
	}
	updated.ID = id
	updated.LastUpdated = time.Now().UTC()
	s.records[id] = updated
	return s.persist()
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	delete(s.records, id)
	return s.persist()
}

func (s *FileStore) Close() error { return nil }

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.filePath
}
