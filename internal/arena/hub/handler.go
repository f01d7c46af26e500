package hub

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// UpgradeMiddleware rejects plain HTTP requests on websocket routes.
func (h *Hub) UpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Register mounts the hub's websocket route on a fiber app.
func (h *Hub) Register(app *fiber.App) {
	app.Get("/ws/:room/:name", h.UpgradeMiddleware, websocket.New(h.HandleWebSocket))
}

type inboundMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Value     string `json:"value"`
}

type errorMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// HandleWebSocket serves one client connection: it replays any requests
// still pending for the participant, then pumps inbound answers into the
// room until the connection drops.
func (h *Hub) HandleWebSocket(c *websocket.Conn) {
	defer func() {
		_ = c.Close()
	}()

	roomID := c.Params("room")
	name := c.Params("name")
	if roomID == "" || name == "" {
		return
	}

	room := h.Room(roomID)
	client := room.Join(name, c)
	defer room.Leave(client.ID)

	for _, req := range room.PendingFor(name) {
		room.sendTo(name, decisionRequestMessage{
			Type:      "decision_request",
			RequestID: req.ID,
			Player:    req.Player,
			Action:    string(req.Action),
			Prompt:    req.Prompt,
			Options:   req.Options,
			TimeoutMS: req.Timeout.Milliseconds(),
			Timestamp: nowMillis(),
		})
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logf("malformed message from %s in room %s: %v", name, roomID, err)
			continue
		}
		if msg.Type != "decision" {
			continue
		}
		if err := room.Fulfill(msg.RequestID, name, msg.Value); err != nil {
			_ = client.send(mustMarshal(errorMessage{
				Type:      "error",
				RequestID: msg.RequestID,
				Error:     err.Error(),
				Timestamp: nowMillis(),
			}))
		}
	}
}

func mustMarshal(message any) []byte {
	data, err := json.Marshal(message)
	if err != nil {
		return []byte(`{"type":"error"}`)
	}
	return data
}
