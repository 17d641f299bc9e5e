// Package message defines the chat message entity and its persistent
// store. Messages are partitioned by room, append-only, and removed
// only by soft delete.
package message

import "time"

// Message kinds accepted by the server.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeVoice = "voice"
)

// ValidType reports whether t is one of the three message kinds.
func ValidType(t string) bool {
	return t == TypeText || t == TypeImage || t == TypeVoice
}

// Message is a single chat message. The JSON field names are the wire
// protocol: clients receive exactly this shape in receive-message and
// room-messages events. Content travels under the "message" key.
type Message struct {
	ID        string     `json:"id" bson:"id"`
	RoomID    string     `json:"roomId" bson:"room_id"`
	UserID    string     `json:"userId" bson:"user_id"`
	Username  string     `json:"username" bson:"username"`
	Content   string     `json:"message" bson:"content"`
	Type      string     `json:"type" bson:"type"`
	FileURL   *string    `json:"fileUrl" bson:"file_url,omitempty"`
	Timestamp time.Time  `json:"timestamp" bson:"timestamp"`
	Deleted   bool       `json:"deleted" bson:"deleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" bson:"deleted_at,omitempty"`
}
