// Package ws implements the realtime core: the per-connection session,
// the broadcast hub and the JSON event protocol carried over a
// websocket. Every frame is an Envelope {event, data}.
package ws

import (
	"github.com/goccy/go-json"

	"github.com/varun72004/Twin-Talk/internal/message"
	"github.com/varun72004/Twin-Talk/internal/user"
)

// Client -> server events.
const (
	EventJoinRoom      = "join-room"
	EventJoinDM        = "join-dm"
	EventLeaveRoom     = "leave-room"
	EventSendMessage   = "send-message"
	EventDeleteMessage = "delete-message"
	EventTyping        = "typing"
)

// Server -> client events.
const (
	EventRoomMessages     = "room-messages"
	EventReceiveMessage   = "receive-message"
	EventMessageDeleted   = "message-deleted"
	EventDeleteError      = "delete-error"
	EventUserOnline       = "user-online"
	EventUserOffline      = "user-offline"
	EventUsersList        = "users-list"
	EventUsersListUpdated = "users-list-updated"
	EventUserTyping       = "user-typing"
	EventDMRoomCreated    = "dm-room-created"
	EventError            = "error"
)

// Envelope is the wire frame. Data is decoded per event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// sendMessagePayload is the client's send-message data. Content rides
// under "message" as in the original protocol; Type defaults to text.
type sendMessagePayload struct {
	RoomID  string  `json:"roomId"`
	Content string  `json:"message"`
	Type    string  `json:"type"`
	FileURL *string `json:"fileUrl"`
}

type deleteMessagePayload struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

type typingPayload struct {
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

type roomMessagesPayload struct {
	RoomID   string            `json:"roomId"`
	Messages []message.Message `json:"messages"`
}

type messageDeletedPayload struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

type dmRoomCreatedPayload struct {
	RoomID       string `json:"roomId"`
	TargetUserID string `json:"targetUserId"`
}

type presencePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type userTypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// errorPayload is sent only to the requester, never broadcast. Event
// names the client event that failed, when known.
type errorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

type deleteErrorPayload struct {
	Message string `json:"message"`
}

type usersListPayload = []user.Public

// encode marshals an outbound frame.
func encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
