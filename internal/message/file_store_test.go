package message

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s, path
}

func testMessage(id, roomID, userID, content string) *Message {
	return &Message{
		ID:        id,
		RoomID:    roomID,
		UserID:    userID,
		Username:  userID,
		Content:   content,
		Type:      TypeText,
		Timestamp: time.Now().UTC(),
	}
}

func TestAppendAndListActiveOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		if err := s.Append(ctx, testMessage("m-"+content, "general", "alice", content)); err != nil {
			t.Fatalf("Append(%s): %v", content, err)
		}
	}

	active, err := s.ListActive(ctx, "general")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("got %d messages, want 3", len(active))
	}
	for i, want := range []string{"first", "second", "third"} {
		if active[i].Content != want {
			t.Errorf("message %d = %q, want %q", i, active[i].Content, want)
		}
	}
}

func TestListActiveUnknownRoom(t *testing.T) {
	s, _ := newTestStore(t)

	active, err := s.ListActive(context.Background(), "nowhere")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("got %d messages for unknown room, want 0", len(active))
	}
}

func TestSoftDeleteHidesMessage(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, testMessage("m1", "general", "alice", "hello")); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.SoftDelete(ctx, "m1", "general", "alice")
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if !deleted.Deleted || deleted.DeletedAt == nil {
		t.Errorf("deleted message not marked: deleted=%v deletedAt=%v", deleted.Deleted, deleted.DeletedAt)
	}

	active, err := s.ListActive(ctx, "general")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("got %d active messages after delete, want 0", len(active))
	}

	// A second delete of the same message is NotFound.
	if _, err := s.SoftDelete(ctx, "m1", "general", "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestSoftDeleteOwnership(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, testMessage("m1", "general", "alice", "hello")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name              string
		messageID, roomID string
		userID            string
	}{
		{"wrong owner", "m1", "general", "bob"},
		{"wrong room", "m1", "random", "alice"},
		{"missing id", "m2", "general", "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.SoftDelete(ctx, tt.messageID, tt.roomID, tt.userID); !errors.Is(err, ErrNotFound) {
				t.Errorf("SoftDelete error = %v, want ErrNotFound", err)
			}
		})
	}

	// The failed attempts must leave the message active.
	active, err := s.ListActive(ctx, "general")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Deleted {
		t.Errorf("message no longer active after denied deletes: %+v", active)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, testMessage("m1", "general", "alice", "kept")); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, testMessage("m2", "general", "alice", "dropped")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SoftDelete(ctx, "m2", "general", "alice"); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	active, err := reopened.ListActive(ctx, "general")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Content != "kept" {
		t.Errorf("reopened store lists %+v, want the single kept message", active)
	}
}

func TestMessagesPartitionedByRoom(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, testMessage("m1", "general", "alice", "in general")); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, testMessage("m2", "dm:alice:bob", "alice", "in dm")); err != nil {
		t.Fatal(err)
	}

	general, _ := s.ListActive(ctx, "general")
	dm, _ := s.ListActive(ctx, "dm:alice:bob")
	if len(general) != 1 || general[0].Content != "in general" {
		t.Errorf("general = %+v", general)
	}
	if len(dm) != 1 || dm[0].Content != "in dm" {
		t.Errorf("dm = %+v", dm)
	}
}
