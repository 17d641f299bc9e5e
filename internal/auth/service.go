package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/varun72004/Twin-Talk/internal/security"
	"github.com/varun72004/Twin-Talk/internal/user"
)

// ErrInvalidCredentials is returned for a failed login. Wrong username
// and wrong password produce the same error.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ValidationError marks a rejected registration input; handlers map it
// to a 400 instead of a 500.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Service registers accounts and exchanges credentials for tokens.
type Service struct {
	users     user.Repository
	hasher    *PasswordHasher
	tokens    *TokenManager
	validator *security.Validator
}

// NewService wires the auth service.
func NewService(users user.Repository, hasher *PasswordHasher, tokens *TokenManager, validator *security.Validator) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens, validator: validator}
}

// Result is a successful register or login outcome.
type Result struct {
	Token string      `json:"token"`
	User  user.Public `json:"user"`
}

// Register creates an account and returns a fresh token for it.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Result, error) {
	username, err := s.validator.Username(username)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	email, err = s.validator.Email(email)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if err := s.validator.Password(password); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		Password:  hash,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrUsernameTaken) || errors.Is(err, user.ErrEmailTaken) {
			return nil, &ValidationError{Reason: err.Error()}
		}
		return nil, err
	}

	return s.result(u)
}

// Login verifies a username/password pair and returns a token.
func (s *Service) Login(ctx context.Context, username, password string) (*Result, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, u.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.result(u)
}

func (s *Service) result(u *user.User) (*Result, error) {
	token, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, User: u.Public(true)}, nil
}
