// Package room implements the addressing scheme for chat rooms.
//
// A room is either operator-named ("general") or a direct-message room
// derived from exactly two user ids. DM room ids are canonical: the two
// ids are sorted before encoding, so either participant computes the
// same id. On the wire a DM room id looks like "dm:<a>:<b>".
package room

import (
	"errors"
	"fmt"
	"strings"
)

// DMPrefix marks the DM namespace. Named rooms must never start with it.
const DMPrefix = "dm:"

const dmDelimiter = ":"

var (
	// ErrNotDM is returned when a room id is not a validly shaped DM id.
	ErrNotDM = errors.New("room: not a dm room id")

	// ErrInvalidName is returned for empty names or names that would
	// collide with the DM namespace.
	ErrInvalidName = errors.New("room: invalid room name")

	// ErrInvalidPeer is returned for DM targets that cannot form a pair.
	ErrInvalidPeer = errors.New("room: invalid dm peer")
)

// Kind distinguishes the two room flavours.
type Kind int

const (
	// KindNamed is an operator-defined room such as "general".
	KindNamed Kind = iota
	// KindDirect is a two-party DM room.
	KindDirect
)

// ID is a parsed room identity. It is computed once at the edge and
// passed around as a value instead of re-parsing prefixed strings at
// each use site. The zero value is not a valid ID.
type ID struct {
	kind Kind
	name string // named rooms
	a, b string // direct rooms, sorted so a < b
}

// Named builds the ID of an operator-defined room. Names inside the DM
// namespace are rejected so the two kinds can never collide.
func Named(name string) (ID, error) {
	if name == "" || strings.HasPrefix(name, DMPrefix) {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return ID{kind: KindNamed, name: name}, nil
}

// Direct builds the canonical DM room ID for two users. The pair is
// unordered: Direct(a, b) == Direct(b, a).
func Direct(userA, userB string) (ID, error) {
	if userA == "" || userB == "" || userA == userB {
		return ID{}, ErrInvalidPeer
	}
	if strings.Contains(userA, dmDelimiter) || strings.Contains(userB, dmDelimiter) {
		return ID{}, ErrInvalidPeer
	}
	if userA > userB {
		userA, userB = userB, userA
	}
	return ID{kind: KindDirect, a: userA, b: userB}, nil
}

// Parse decodes a wire room id into an ID, accepting both kinds.
func Parse(s string) (ID, error) {
	if !strings.HasPrefix(s, DMPrefix) {
		return Named(s)
	}
	parts := strings.Split(s[len(DMPrefix):], dmDelimiter)
	if len(parts) != 2 {
		return ID{}, fmt.Errorf("%w: %q", ErrNotDM, s)
	}
	id, err := Direct(parts[0], parts[1])
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrNotDM, s)
	}
	return id, nil
}

// Kind reports whether the room is named or direct.
func (id ID) Kind() Kind { return id.kind }

// IsDirect reports whether the room is a two-party DM.
func (id ID) IsDirect() bool { return id.kind == KindDirect }

// String returns the wire encoding: the plain name for named rooms,
// "dm:<a>:<b>" for DM rooms.
func (id ID) String() string {
	if id.kind == KindDirect {
		return DMPrefix + id.a + dmDelimiter + id.b
	}
	return id.name
}

// Participants returns the two user ids of a DM room in canonical order.
func (id ID) Participants() (string, string, error) {
	if id.kind != KindDirect {
		return "", "", ErrNotDM
	}
	return id.a, id.b, nil
}

// Peer returns the other participant of a DM room. It fails if the room
// is not a DM or if self is not one of the two encoded ids.
func (id ID) Peer(self string) (string, error) {
	if id.kind != KindDirect {
		return "", ErrNotDM
	}
	switch self {
	case id.a:
		return id.b, nil
	case id.b:
		return id.a, nil
	}
	return "", fmt.Errorf("%w: %s is not a participant of %s", ErrNotDM, self, id.String())
}

// HasParticipant reports whether the user is one of the two DM parties.
// Named rooms have no participant restriction and always return true.
func (id ID) HasParticipant(userID string) bool {
	if id.kind != KindDirect {
		return true
	}
	return userID == id.a || userID == id.b
}
