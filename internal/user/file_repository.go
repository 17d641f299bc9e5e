package user

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

// FileRepository stores the user table as a JSON array, rewritten on
// every mutation. Fine at chat scale; the write completes before Create
// returns.
type FileRepository struct {
	path  string
	mu    sync.Mutex
	users []User
}

// NewFileRepository loads (or creates) the users file at path.
func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	r := &FileRepository{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read users file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.users); err != nil {
			return nil, fmt.Errorf("parse users file: %w", err)
		}
	}
	return r, nil
}

// Create implements Repository.
func (r *FileRepository) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == u.Username {
			return ErrUsernameTaken
		}
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}

	r.users = append(r.users, *u)
	if err := r.save(); err != nil {
		r.users = r.users[:len(r.users)-1]
		return err
	}
	return nil
}

// FindByID implements Repository.
func (r *FileRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.find(func(u *User) bool { return u.ID == id })
}

// FindByUsername implements Repository.
func (r *FileRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.find(func(u *User) bool { return u.Username == username })
}

// FindByEmail implements Repository.
func (r *FileRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.find(func(u *User) bool { return u.Email == email })
}

// All implements Repository.
func (r *FileRepository) All(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]User, len(r.users))
	copy(users, r.users)
	return users, nil
}

// Close implements Repository.
func (r *FileRepository) Close() error { return nil }

func (r *FileRepository) find(match func(*User) bool) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if match(&r.users[i]) {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// save writes the table to a temp file and renames it into place.
// Callers must hold r.mu.
func (r *FileRepository) save() error {
	data, err := json.MarshalIndent(r.users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write users file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}
	return nil
}
