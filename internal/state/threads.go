// internal/state/threads.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/gopherthread/internal/types"
)

// ThreadStore is a JSON-file-backed index of pinned threads.
// It stores one record per session key in threads/threads.json.
type ThreadStore struct {
	root string
	mu   sync.RWMutex
}

// NewThreadStore creates a new file-backed ThreadStore rooted at the given directory.
func NewThreadStore(root string) *ThreadStore {
	return &ThreadStore{root: root}
}

func (s *ThreadStore) indexPath() string {
	return filepath.Join(s.root, "threads", "threads.json")
}

// loadIndex reads threads.json and returns a map keyed by SessionKey.
func (s *ThreadStore) loadIndex() (map[types.SessionKey]*types.ThreadRecord, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.SessionKey]*types.ThreadRecord), nil
		}
		return nil, fmt.Errorf("read thread index: %w", err)
	}

	var records []*types.ThreadRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal thread index: %w", err)
	}

	index := make(map[types.SessionKey]*types.ThreadRecord, len(records))
	for _, rec := range records {
		index[rec.SessionKey] = rec
	}
	return index, nil
}

// saveIndex converts the map to a slice sorted by key and writes atomically.
func (s *ThreadStore) saveIndex(index map[types.SessionKey]*types.ThreadRecord) error {
	records := sortedRecords(index)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal thread index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.indexPath()), 0o755); err != nil {
		return fmt.Errorf("create threads dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp index: %w", err)
	}
	return nil
}

func sortedRecords(index map[types.SessionKey]*types.ThreadRecord) []*types.ThreadRecord {
	records := make([]*types.ThreadRecord, 0, len(index))
	for _, rec := range index {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].UpdatedAt.After(records[j].UpdatedAt)
		}
		return records[i].SessionKey < records[j].SessionKey
	})
	return records
}

// Lookup returns the record pinned under key, if any.
func (s *ThreadStore) Lookup(_ context.Context, key types.SessionKey) (*types.ThreadRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, false, err
	}
	rec, ok := index[key]
	return rec, ok, nil
}

// Pin records thread as the thread for key. Re-pinning the same thread only
// refreshes UpdatedAt.
func (s *ThreadStore) Pin(_ context.Context, key types.SessionKey, thread types.ThreadID, assistant types.AssistantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}

	now := time.Now()
	rec, ok := index[key]
	if !ok || rec.ThreadID != thread {
		rec = &types.ThreadRecord{
			SessionKey: key,
			ThreadID:   thread,
			CreatedAt:  now,
		}
		index[key] = rec
	}
	rec.AssistantID = assistant
	rec.UpdatedAt = now

	return s.saveIndex(index)
}

// List returns all records, most recently used first.
func (s *ThreadStore) List(_ context.Context) ([]*types.ThreadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	return sortedRecords(index), nil
}

// Forget removes the record for key.
func (s *ThreadStore) Forget(_ context.Context, key types.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}
	if _, ok := index[key]; !ok {
		return fmt.Errorf("session not found: %s", key)
	}
	delete(index, key)
	return s.saveIndex(index)
}

// ForgetAll removes the whole index.
func (s *ThreadStore) ForgetAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.indexPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove thread index: %w", err)
	}
	return nil
}
