// Package security holds input validation shared by the REST API and
// the event handlers.
package security

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxUsernameLength = 30
	MinPasswordLength = 6
)

var validUsername = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// Validator checks user-supplied input before it reaches persistence.
type Validator struct {
	maxMessageLength int
}

// NewValidator creates a validator with the given message length cap.
func NewValidator(maxMessageLength int) *Validator {
	return &Validator{maxMessageLength: maxMessageLength}
}

// Username trims and validates an account name.
func (v *Validator) Username(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("username cannot be empty")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return "", fmt.Errorf("username too long (max %d characters)", MaxUsernameLength)
	}
	if !validUsername.MatchString(username) {
		return "", fmt.Errorf("username may only contain letters, numbers, _ and -")
	}
	return username, nil
}

// Email validates an address with the stdlib parser.
func (v *Validator) Email(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", fmt.Errorf("invalid email address")
	}
	return addr.Address, nil
}

// Password checks the minimum length only; everything else is the
// user's business.
func (v *Validator) Password(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// MessageContent enforces the length cap on message text. Emptiness is
// checked per message type by the caller: image and voice messages may
// legitimately carry no text.
func (v *Validator) MessageContent(content string) error {
	if utf8.RuneCountInString(content) > v.maxMessageLength {
		return fmt.Errorf("message too long (max %d characters)", v.maxMessageLength)
	}
	return nil
}
