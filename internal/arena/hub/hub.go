// Package hub carries realtime session traffic over websockets: moderator
// events out to every connected client, decision requests out to human
// participants, and their answers back to the waiting game loop.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emirks/werewolf-arena/internal/werewolf/agent"
	"github.com/emirks/werewolf-arena/internal/werewolf/master"
)

var (
	// ErrUnknownRequest indicates an answer for a request that does not
	// exist or was already fulfilled.
	ErrUnknownRequest = errors.New("unknown or already fulfilled request")
	// ErrWrongPlayer indicates an answer from someone other than the asked
	// player.
	ErrWrongPlayer = errors.New("request addressed to another player")
	// ErrIllegalAnswer indicates an answer outside the request's legal
	// options. The request stays open.
	ErrIllegalAnswer = errors.New("answer outside the legal options")
)

// Conn is the subset of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

const textMessage = 1

// Client is one websocket participant or spectator in a room.
type Client struct {
	ID   uuid.UUID
	Name string

	mu   sync.Mutex
	conn Conn
}

func (c *Client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(textMessage, data)
}

// Hub manages rooms, one per running session.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*Room
	logf  func(format string, args ...any)
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{rooms: make(map[string]*Room), logf: log.Printf}
}

// Room returns the room for a session, creating it on first use.
func (h *Hub) Room(id string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[id]
	if !ok {
		room = &Room{
			ID:      id,
			clients: make(map[uuid.UUID]*Client),
			pending: make(map[string]*pendingRequest),
			logf:    h.logf,
		}
		h.rooms[id] = room
	}
	return room
}

// Close removes a room and drops its pending requests.
func (h *Hub) Close(id string) {
	h.mu.Lock()
	room, ok := h.rooms[id]
	delete(h.rooms, id)
	h.mu.Unlock()
	if !ok {
		return
	}
	room.dropPending()
}

// Room is the realtime surface of one session.
type Room struct {
	ID string

	mu      sync.Mutex
	clients map[uuid.UUID]*Client
	pending map[string]*pendingRequest
	logf    func(format string, args ...any)
}

type pendingRequest struct {
	req     agent.PendingRequest
	answers chan string
}

// Join registers a connection under a participant name.
func (r *Room) Join(name string, conn Conn) *Client {
	client := &Client{ID: uuid.New(), Name: name, conn: conn}
	r.mu.Lock()
	r.clients[client.ID] = client
	r.mu.Unlock()
	return client
}

// Leave drops a client from the room.
func (r *Room) Leave(id uuid.UUID) {
	r.mu.Lock()
	delete(r.clients, id)
	r.mu.Unlock()
}

// Broadcast sends a message to every client in the room.
func (r *Room) Broadcast(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		r.logf("marshal broadcast for room %s: %v", r.ID, err)
		return
	}
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	r.mu.Unlock()
	for _, client := range clients {
		if err := client.send(data); err != nil {
			r.logf("send to %s in room %s: %v", client.Name, r.ID, err)
		}
	}
}

func (r *Room) sendTo(name string, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		r.logf("marshal message for %s: %v", name, err)
		return
	}
	r.mu.Lock()
	clients := make([]*Client, 0, 1)
	for _, client := range r.clients {
		if client.Name == name {
			clients = append(clients, client)
		}
	}
	r.mu.Unlock()
	for _, client := range clients {
		if err := client.send(data); err != nil {
			r.logf("send to %s in room %s: %v", name, r.ID, err)
		}
	}
}

// Request implements agent.DecisionChannel: it registers a single-use
// request, pushes it to the addressed participant's connections, and hands
// back the answer channel. The request stays registered even when the
// participant is offline, so a reconnect within the deadline can still
// answer.
func (r *Room) Request(_ context.Context, req agent.PendingRequest) (<-chan string, func(), error) {
	pending := &pendingRequest{req: req, answers: make(chan string, 1)}
	r.mu.Lock()
	r.pending[req.ID] = pending
	r.mu.Unlock()

	r.sendTo(req.Player, decisionRequestMessage{
		Type:      "decision_request",
		RequestID: req.ID,
		Player:    req.Player,
		Action:    string(req.Action),
		Prompt:    req.Prompt,
		Options:   req.Options,
		TimeoutMS: req.Timeout.Milliseconds(),
		Timestamp: nowMillis(),
	})

	cancel := func() {
		r.mu.Lock()
		delete(r.pending, req.ID)
		r.mu.Unlock()
	}
	return pending.answers, cancel, nil
}

// Fulfill resolves a pending request with a participant's answer. The
// request is consumed only by a legal answer from the addressed player; an
// illegal one leaves it open for another try within the deadline.
func (r *Room) Fulfill(requestID, player, answer string) error {
	r.mu.Lock()
	pending, ok := r.pending[requestID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownRequest
	}
	if pending.req.Player != player {
		r.mu.Unlock()
		return ErrWrongPlayer
	}
	if len(pending.req.Options) > 0 && !legalOption(pending.req.Options, answer) {
		r.mu.Unlock()
		return ErrIllegalAnswer
	}
	delete(r.pending, requestID)
	r.mu.Unlock()

	pending.answers <- answer
	return nil
}

// PendingFor lists the open request ids addressed to a player, for replay on
// reconnect.
func (r *Room) PendingFor(player string) []agent.PendingRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var requests []agent.PendingRequest
	for _, pending := range r.pending {
		if pending.req.Player == player {
			requests = append(requests, pending.req)
		}
	}
	return requests
}

func (r *Room) dropPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, pending := range r.pending {
		close(pending.answers)
		delete(r.pending, id)
	}
}

// Notify implements master.Notifier by broadcasting the event to the room.
func (r *Room) Notify(_ context.Context, event master.Event) {
	r.Broadcast(eventMessage{
		Type:      "event",
		Kind:      string(event.Kind),
		Round:     event.Round,
		Data:      event.Data,
		Timestamp: nowMillis(),
	})
}

type eventMessage struct {
	Type      string         `json:"type"`
	Kind      string         `json:"kind"`
	Round     int            `json:"round"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

type decisionRequestMessage struct {
	Type      string   `json:"type"`
	RequestID string   `json:"request_id"`
	Player    string   `json:"player"`
	Action    string   `json:"action"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options,omitempty"`
	TimeoutMS int64    `json:"timeout_ms"`
	Timestamp int64    `json:"timestamp"`
}

func legalOption(options []string, answer string) bool {
	for _, option := range options {
		if option == answer {
			return true
		}
	}
	return false
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

var (
	_ agent.DecisionChannel = (*Room)(nil)
	_ master.Notifier       = (*Room)(nil)
)
