package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// wsHub tracks connections per room. Writes happen with the hub lock held,
// which serializes frames on each connection without a per-conn pump.
type wsHub struct {
	mu    sync.Mutex
	rooms map[string]map[*websocket.Conn]string
}

func newWSHub() *wsHub {
	return &wsHub{
		rooms: make(map[string]map[*websocket.Conn]string),
	}
}

func (h *wsHub) Add(code string, conn *websocket.Conn, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.rooms[code]
	if group == nil {
		group = make(map[*websocket.Conn]string)
		h.rooms[code] = group
	}
	group[conn] = playerID
}

func (h *wsHub) Remove(code string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.rooms[code]
	if group == nil {
		return
	}
	delete(group, conn)
	_ = conn.Close()
	if len(group) == 0 {
		delete(h.rooms, code)
	}
}

func (h *wsHub) Send(conn *websocket.Conn, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

func (h *wsHub) Broadcast(code string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.rooms[code] {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(h.rooms[code], conn)
			_ = conn.Close()
		}
	}
}

// SendTo delivers to every connection of one player in one room. Other room
// members never see these frames.
func (h *wsHub) SendTo(code, playerID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, id := range h.rooms[code] {
		if id != playerID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(h.rooms[code], conn)
			_ = conn.Close()
		}
	}
}

// CloseRoom disconnects everyone; used when a room is destroyed.
func (h *wsHub) CloseRoom(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.rooms[code] {
		_ = conn.Close()
	}
	delete(h.rooms, code)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is the inbound event union. The action names mirror the
// transport events; create-room stays HTTP-only because a room code is the
// prerequisite for opening a socket.
type clientMessage struct {
	Action          string `json:"action"`
	Nickname        string `json:"nickname,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	ImageData       string `json:"image_data,omitempty"`
}

func (s *Server) handleWebsocket(c *gin.Context) {
	code := c.Param("code")
	playerID := c.Query("player_id")
	if playerID == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	if _, ok := s.store.GetRoom(code); !ok {
		c.Status(http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.log.Debug().Str("room_code", code).Str("player_id", playerID).Str("remote", c.Request.RemoteAddr).Msg("ws connected")
	s.ws.Add(code, conn, playerID)
	if snapshot, ok := s.roomSnapshot(code); ok {
		s.ws.Send(conn, wsEvent{Event: "room-state", Data: snapshot})
	}
	go s.readWS(code, playerID, conn)
}

func (s *Server) readWS(code, playerID string, conn *websocket.Conn) {
	defer func() {
		s.ws.Remove(code, conn)
		s.disconnect(playerID)
	}()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.log.Debug().Str("room_code", code).Str("player_id", playerID).Err(err).Msg("ws disconnected")
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendWSError(code, playerID, "bad_request", "malformed message")
			continue
		}
		s.dispatchWS(code, playerID, msg)
	}
}

// dispatchWS routes one inbound event to the lifecycle operation behind it.
// Failures go back to the sender only.
func (s *Server) dispatchWS(code, playerID string, msg clientMessage) {
	var err error
	switch msg.Action {
	case "join-room":
		err = s.joinRoom(code, playerID, msg.Nickname)
	case "leave-room":
		err = s.leaveRoom(code, playerID)
	case "start-game":
		err = s.startGame(code, playerID, s.roundDuration(msg.DurationSeconds))
	case "submit-drawing":
		var image []byte
		image, err = normalizeDrawing(msg.ImageData)
		if err == nil {
			err = s.submitDrawing(code, playerID, image)
		}
	case "next-round":
		err = s.nextRound(code, s.roundDuration(msg.DurationSeconds))
	case "judge-round":
		err = s.judgeRound(code, playerID)
	default:
		// ignore unknown actions
		return
	}
	if err != nil {
		s.sendWSError(code, playerID, errorKind(err), err.Error())
	}
}

func (s *Server) sendWSError(code, playerID, kind, message string) {
	s.ws.SendTo(code, playerID, wsEvent{Event: "error", Data: errorPayload{
		Kind:    kind,
		Message: message,
	}})
}

func (s *Server) roundDuration(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = s.cfg.RoundDurationSeconds
	}
	return time.Duration(seconds) * time.Second
}
