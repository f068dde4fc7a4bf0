// Package collab is the collaboration transport: a websocket hub relaying
// typed timeline updates between editors of the same session. Inbound
// messages take the same apply path as local optimistic edits; outbound
// broadcasts are fire-and-forget.
package collab

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"videosync/models"
)

// Applier applies a remote update to the owning session's timeline. The hub
// stays decoupled from the session registry through this interface.
type Applier interface {
	ApplyRemoteUpdate(sessionID uuid.UUID, update models.TimelineUpdate) error
}

// Hub tracks connected editors per session and relays their updates. Last
// received update wins: there is no merge of concurrent edits to the same
// field, a known simplification of this transport.
type Hub struct {
	upgrader websocket.Upgrader
	applier  Applier
	log      *logrus.Logger

	mu    sync.Mutex
	rooms map[uuid.UUID]map[*wsClient]bool
}

type wsClient struct {
	id        string
	sessionID uuid.UUID
	conn      *websocket.Conn
	send      chan []byte
}

// NewHub creates a hub that applies inbound updates through the given applier.
func NewHub(applier Applier, log *logrus.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		applier: applier,
		log:     log,
		rooms:   make(map[uuid.UUID]map[*wsClient]bool),
	}
}

// HandleWS upgrades an HTTP request carrying a session_id query parameter
// into a collaboration connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		http.Error(w, "invalid session_id", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithField("error", err.Error()).Warn("Websocket upgrade failed")
		return
	}

	c := &wsClient{
		id:        uuid.NewString(),
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, 16),
	}
	h.register(c)
	h.log.WithFields(logrus.Fields{"client_id": c.id, "session_id": sessionID}).Info("Collaborator connected")

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.sessionID]
	if !ok {
		room = make(map[*wsClient]bool)
		h.rooms[c.sessionID] = room
	}
	room[c] = true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[c.sessionID]; ok {
		if room[c] {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, c.sessionID)
		}
	}
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			h.log.WithFields(logrus.Fields{"client_id": c.id, "error": err.Error()}).
				Info("Collaborator disconnected")
			return
		}

		var update models.TimelineUpdate
		if err := json.Unmarshal(raw, &update); err != nil {
			h.log.WithField("error", err.Error()).Warn("Discarded malformed collab message")
			continue
		}
		update.SessionID = c.sessionID
		update.Origin = c.id

		// Remote updates run through the same mutation path as local edits,
		// then fan out to the other collaborators.
		if err := h.applier.ApplyRemoteUpdate(c.sessionID, update); err != nil {
			h.log.WithFields(logrus.Fields{
				"client_id": c.id,
				"type":      string(update.Type),
				"error":     err.Error(),
			}).Warn("Remote update rejected")
			continue
		}
		h.Broadcast(update, c.id)
	}
}

func (h *Hub) writePump(c *wsClient) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// Transport failure: the peer keeps its local optimistic state,
			// nothing is rolled back on our side.
			h.log.WithFields(logrus.Fields{"client_id": c.id, "error": err.Error()}).
				Warn("Collab write failed")
			return
		}
	}
}

// Broadcast sends an update to every collaborator in the session except the
// originator. Fire-and-forget: a slow client gets intermediate updates
// dropped, keeping only the latest, since only final state matters for
// rendering.
func (h *Hub) Broadcast(update models.TimelineUpdate, excludeClientID string) {
	raw, err := json.Marshal(update)
	if err != nil {
		h.log.WithField("error", err.Error()).Error("Failed to encode collab update")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[update.SessionID] {
		if c.id == excludeClientID {
			continue
		}
		select {
		case c.send <- raw:
		default:
			// Coalesce: drop the oldest queued message to make room.
			select {
			case <-c.send:
			default:
			}
			select {
			case c.send <- raw:
			default:
			}
		}
	}
}

// Serve runs the hub on its own listener. Intended to be started on a
// dedicated goroutine next to the REST server.
func (h *Hub) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWS)
	h.log.WithField("addr", addr).Info("Collaboration hub listening")
	return http.ListenAndServe(addr, mux)
}
