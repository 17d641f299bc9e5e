package message

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// FileStore keeps the full room -> messages mapping in memory and
// writes the whole file back on every mutation. Acceptable at chat
// scale; the write happens before the call returns, so an acknowledged
// append or delete is never lost to a restart.
type FileStore struct {
	path     string
	mu       sync.Mutex
	messages map[string][]Message
}

// NewFileStore loads (or creates) the messages file at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &FileStore{
		path:     path,
		messages: make(map[string][]Message),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read messages file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.messages); err != nil {
			return nil, fmt.Errorf("parse messages file: %w", err)
		}
	}
	return s, nil
}

// Append implements Store.
func (s *FileStore) Append(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], *msg)
	if err := s.save(); err != nil {
		// Roll back the in-memory append so a failed write does not
		// leave a message that was never acknowledged.
		list := s.messages[msg.RoomID]
		s.messages[msg.RoomID] = list[:len(list)-1]
		return err
	}
	return nil
}

// ListActive implements Store.
func (s *FileStore) ListActive(ctx context.Context, roomID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := []Message{}
	for _, m := range s.messages[roomID] {
		if !m.Deleted {
			active = append(active, m)
		}
	}
	return active, nil
}

// SoftDelete implements Store.
func (s *FileStore) SoftDelete(ctx context.Context, messageID, roomID, requestingUserID string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[roomID]
	for i := range list {
		m := &list[i]
		if m.ID != messageID || m.UserID != requestingUserID || m.Deleted {
			continue
		}
		now := time.Now().UTC()
		m.Deleted = true
		m.DeletedAt = &now
		if err := s.save(); err != nil {
			m.Deleted = false
			m.DeletedAt = nil
			return nil, err
		}
		deleted := *m
		return &deleted, nil
	}
	return nil, ErrNotFound
}

// Close implements Store. The file is already durable after every
// mutation, so there is nothing to flush.
func (s *FileStore) Close() error { return nil }

// save writes the whole mapping to a temp file and renames it into
// place. Callers must hold s.mu.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.messages, "", "  ")
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write messages file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace messages file: %w", err)
	}
	return nil
}
