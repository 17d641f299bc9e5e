package ws

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/varun72004/Twin-Talk/internal/message"
	"github.com/varun72004/Twin-Talk/internal/presence"
	"github.com/varun72004/Twin-Talk/internal/room"
	"github.com/varun72004/Twin-Talk/internal/security"
	"github.com/varun72004/Twin-Talk/internal/user"
)

const deleteDeniedMessage = "Message not found or you do not have permission to delete it"

// inboundEvent is a client frame queued for the hub loop.
type inboundEvent struct {
	client   *Client
	envelope Envelope
}

// Hub routes every event in the system. All shared state — the client
// table, room membership and every store or registry mutation — is
// touched only inside Run's single loop, so any two events for the
// same room are inherently serialized.
type Hub struct {
	store     message.Store
	users     user.Repository
	presence  presence.Registry
	validator *security.Validator

	clients map[string]*Client            // connID -> client
	rooms   map[string]map[string]*Client // roomID -> connID -> client

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
}

// NewHub wires the router with its collaborators. The presence
// registry is injected, never global, so a distributed backend can be
// swapped in without touching session logic.
func NewHub(store message.Store, users user.Repository, reg presence.Registry, validator *security.Validator) *Hub {
	return &Hub{
		store:      store,
		users:      users,
		presence:   reg,
		validator:  validator,
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent, 256),
	}
}

// Run is the single dispatch loop. It owns all hub state.
func (h *Hub) Run(ctx context.Context) {
	slog.Info("hub started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("hub stopping")
			for _, c := range h.clients {
				c.conn.Close()
			}
			return

		case c := <-h.register:
			h.handleRegister(ctx, c)

		case c := <-h.unregister:
			h.handleUnregister(ctx, c)

		case ev := <-h.inbound:
			// The owning connection may have deregistered while this
			// event sat in the queue; presence and the client table are
			// the enforcement point, so drop stale events here.
			if h.clients[ev.client.id] != ev.client {
				continue
			}
			h.handleEvent(ctx, ev.client, ev.envelope)
		}
	}
}

// Register queues a freshly authenticated connection.
func (h *Hub) Register(c *Client) { h.register <- c }

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	h.clients[c.id] = c
	h.presence.Connect(c.userID, c.id)
	slog.Info("user connected", "user", c.userID, "username", c.username, "conn", c.id, "total", len(h.clients))

	// The new client needs full state before it can absorb deltas, so
	// it gets the complete roster once. Everyone else learns about the
	// new entrant from the user-online delta plus a refreshed roster.
	h.deliver(c, EventUsersList, h.roster(ctx, c.userID))
	h.broadcastAll(EventUserOnline, presencePayload{UserID: c.userID, Username: c.username}, nil)
	h.broadcastAll(EventUsersListUpdated, h.roster(ctx, c.userID), c)
}

func (h *Hub) handleUnregister(ctx context.Context, c *Client) {
	if h.clients[c.id] != c {
		return
	}
	delete(h.clients, c.id)
	for roomID := range c.rooms {
		h.removeFromRoom(roomID, c)
	}
	close(c.send)

	h.presence.Disconnect(c.userID, c.id)
	slog.Info("user disconnected", "user", c.userID, "username", c.username, "conn", c.id, "total", len(h.clients))

	// A newer connection for the same user may have overwritten the
	// presence entry; only announce offline if the user really left.
	if h.presence.IsOnline(c.userID) {
		return
	}
	h.broadcastAll(EventUserOffline, presencePayload{UserID: c.userID, Username: c.username}, nil)
	h.broadcastAll(EventUsersListUpdated, h.roster(ctx, c.userID), nil)
}

func (h *Hub) handleEvent(ctx context.Context, c *Client, env Envelope) {
	switch env.Event {
	case EventJoinRoom:
		h.handleJoinRoom(ctx, c, env.Data)
	case EventJoinDM:
		h.handleJoinDM(ctx, c, env.Data)
	case EventLeaveRoom:
		h.handleLeaveRoom(c, env.Data)
	case EventSendMessage:
		h.handleSendMessage(ctx, c, env.Data)
	case EventDeleteMessage:
		h.handleDeleteMessage(ctx, c, env.Data)
	case EventTyping:
		h.handleTyping(c, env.Data)
	default:
		slog.Warn("unknown event", "event", env.Event, "user", c.userID)
	}
}

func (h *Hub) handleJoinRoom(ctx context.Context, c *Client, data json.RawMessage) {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		h.sendError(c, EventJoinRoom, "roomId must be a string")
		return
	}

	id, err := room.Parse(roomID)
	if err != nil {
		h.sendError(c, EventJoinRoom, "invalid room id")
		return
	}
	if !id.HasParticipant(c.userID) {
		// Joining someone else's DM is an authorization failure, but it
		// is reported the same as any bad room id.
		h.sendError(c, EventJoinRoom, "invalid room id")
		return
	}

	h.join(ctx, c, id)
}

func (h *Hub) handleJoinDM(ctx context.Context, c *Client, data json.RawMessage) {
	var targetUserID string
	if err := json.Unmarshal(data, &targetUserID); err != nil {
		h.sendError(c, EventJoinDM, "targetUserId must be a string")
		return
	}

	id, err := room.Direct(c.userID, targetUserID)
	if err != nil {
		h.sendError(c, EventJoinDM, "invalid dm target")
		return
	}

	// The caller only knows the peer; tell it the canonical room id
	// before the backlog arrives.
	h.deliver(c, EventDMRoomCreated, dmRoomCreatedPayload{RoomID: id.String(), TargetUserID: targetUserID})
	h.join(ctx, c, id)
}

// join is idempotent: re-joining only refreshes the backlog.
func (h *Hub) join(ctx context.Context, c *Client, id room.ID) {
	roomID := id.String()
	c.rooms[roomID] = id
	members := h.rooms[roomID]
	if members == nil {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[c.id] = c
	slog.Debug("joined room", "user", c.userID, "room", roomID)

	backlog, err := h.store.ListActive(ctx, roomID)
	if err != nil {
		slog.Error("backlog load failed", "room", roomID, "error", err)
		h.sendError(c, EventJoinRoom, "could not load room messages")
		return
	}
	h.deliver(c, EventRoomMessages, roomMessagesPayload{RoomID: roomID, Messages: backlog})
}

func (h *Hub) handleLeaveRoom(c *Client, data json.RawMessage) {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		h.sendError(c, EventLeaveRoom, "roomId must be a string")
		return
	}
	delete(c.rooms, roomID)
	h.removeFromRoom(roomID, c)
	slog.Debug("left room", "user", c.userID, "room", roomID)
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(c, EventSendMessage, "malformed send-message payload")
		return
	}

	id, joined := c.rooms[payload.RoomID]
	if !joined {
		h.sendError(c, EventSendMessage, "cannot send to a room you have not joined")
		return
	}

	msgType := payload.Type
	if msgType == "" {
		msgType = message.TypeText
	}
	if !message.ValidType(msgType) {
		h.sendError(c, EventSendMessage, "unknown message type")
		return
	}
	if err := h.validator.MessageContent(payload.Content); err != nil {
		h.sendError(c, EventSendMessage, err.Error())
		return
	}
	// Image and voice messages may carry an empty body and even a
	// missing fileUrl; only text must be non-blank.
	if msgType == message.TypeText && strings.TrimSpace(payload.Content) == "" {
		h.sendError(c, EventSendMessage, "message cannot be empty")
		return
	}

	msg := &message.Message{
		ID:        uuid.NewString(),
		RoomID:    payload.RoomID,
		UserID:    c.userID,
		Username:  c.username,
		Content:   payload.Content,
		Type:      msgType,
		FileURL:   payload.FileURL,
		Timestamp: time.Now().UTC(),
	}

	// Durable before any delivery: a fanned-out message must never be
	// one the store lost.
	if err := h.store.Append(ctx, msg); err != nil {
		slog.Error("message append failed", "room", msg.RoomID, "user", c.userID, "error", err)
		h.sendError(c, EventSendMessage, "message could not be saved")
		return
	}

	if id.IsDirect() {
		h.deliverDM(c, id, msg)
		return
	}
	h.broadcastRoom(msg.RoomID, EventReceiveMessage, msg, nil)
}

// deliverDM sends to the author and, if currently online, the peer.
// The presence lookup happens here, at delivery time, so a peer that
// disconnected while the message was in flight is simply skipped.
func (h *Hub) deliverDM(c *Client, id room.ID, msg *message.Message) {
	h.deliver(c, EventReceiveMessage, msg)

	peerID, err := id.Peer(c.userID)
	if err != nil {
		slog.Error("dm peer resolution failed", "room", msg.RoomID, "user", c.userID, "error", err)
		return
	}
	connID, online := h.presence.Handle(peerID)
	if !online {
		return
	}
	if peer, ok := h.clients[connID]; ok {
		h.deliver(peer, EventReceiveMessage, msg)
	}
}

func (h *Hub) handleDeleteMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var payload deleteMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(c, EventDeleteMessage, "malformed delete-message payload")
		return
	}

	_, err := h.store.SoftDelete(ctx, payload.MessageID, payload.RoomID, c.userID)
	if err != nil {
		if errors.Is(err, message.ErrNotFound) {
			// Missing and not-owned collapse into one private notice so
			// non-owners cannot probe for a message's existence.
			h.deliver(c, EventDeleteError, deleteErrorPayload{Message: deleteDeniedMessage})
			return
		}
		slog.Error("message delete failed", "room", payload.RoomID, "user", c.userID, "error", err)
		h.sendError(c, EventDeleteMessage, "message could not be deleted")
		return
	}

	h.broadcastRoom(payload.RoomID, EventMessageDeleted,
		messageDeletedPayload{MessageID: payload.MessageID, RoomID: payload.RoomID}, nil)
}

func (h *Hub) handleTyping(c *Client, data json.RawMessage) {
	var payload typingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	// Ephemeral: no persistence, and never echoed back to the sender.
	h.broadcastRoom(payload.RoomID, EventUserTyping, userTypingPayload{
		UserID:   c.userID,
		Username: c.username,
		IsTyping: payload.IsTyping,
	}, c)
}

// roster builds the full online/offline user list, excluding the
// subject user the event is about.
func (h *Hub) roster(ctx context.Context, excludeUserID string) usersListPayload {
	all, err := h.users.All(ctx)
	if err != nil {
		slog.Error("roster load failed", "error", err)
		return usersListPayload{}
	}

	roster := usersListPayload{}
	for i := range all {
		if all[i].ID == excludeUserID {
			continue
		}
		roster = append(roster, all[i].Public(h.presence.IsOnline(all[i].ID)))
	}
	return roster
}

func (h *Hub) removeFromRoom(roomID string, c *Client) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c.id)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// deliver encodes and queues one frame for one client.
func (h *Hub) deliver(c *Client, event string, data interface{}) {
	payload, err := encode(event, data)
	if err != nil {
		slog.Error("encode event failed", "event", event, "error", err)
		return
	}
	c.enqueue(payload)
}

// broadcastAll queues a frame for every connected client except skip.
func (h *Hub) broadcastAll(event string, data interface{}, skip *Client) {
	payload, err := encode(event, data)
	if err != nil {
		slog.Error("encode event failed", "event", event, "error", err)
		return
	}
	for _, c := range h.clients {
		if c == skip {
			continue
		}
		c.enqueue(payload)
	}
}

// broadcastRoom queues a frame for every member of a room except skip.
func (h *Hub) broadcastRoom(roomID, event string, data interface{}, skip *Client) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	payload, err := encode(event, data)
	if err != nil {
		slog.Error("encode event failed", "event", event, "error", err)
		return
	}
	for _, c := range members {
		if c == skip {
			continue
		}
		c.enqueue(payload)
	}
}

func (h *Hub) sendError(c *Client, event, msg string) {
	h.deliver(c, EventError, errorPayload{Event: event, Message: msg})
}
