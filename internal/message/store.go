package message

import (
	"context"
	"errors"
)

// ErrNotFound is returned by SoftDelete when no active message matches
// the id, room and requesting user. Ownership mismatches are folded
// into the same result on purpose: callers must not be able to learn
// whether a message they do not own exists.
var ErrNotFound = errors.New("message: not found")

// Store is the durable room -> messages mapping. Implementations must
// persist before returning (write-through): a successful Append or
// SoftDelete survives a process restart.
//
// Appends to the same room must serialize; the hub's single dispatch
// loop guarantees that for the server, and implementations additionally
// lock internally so they are safe for direct concurrent use in tests.
type Store interface {
	// Append assigns nothing to the message; the caller provides id,
	// room, author and timestamp. The message is added after all prior
	// appends to the same room.
	Append(ctx context.Context, msg *Message) error

	// ListActive returns the non-deleted messages of a room in send
	// order. Unknown rooms yield an empty slice, not an error.
	ListActive(ctx context.Context, roomID string) ([]Message, error)

	// SoftDelete marks a message deleted and returns it. It returns
	// ErrNotFound if no message with that id exists in the room, if the
	// author is not requestingUserID, or if it is already deleted.
	SoftDelete(ctx context.Context, messageID, roomID, requestingUserID string) (*Message, error)

	// Close releases any underlying resources.
	Close() error
}
