package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"drop-catch/internal/game"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 2000

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

// HubConfig configures the WebSocket hub
type HubConfig struct {
	MaxClientsPerGame int
	MaxClientsPerIP   int
	CommandsPerSec    float64
	AllowedOrigins    []string
}

// Message is the envelope of every frame sent to clients
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Command is a client request sent over the socket
type Command struct {
	Type   string      `json:"type"` // catch, expire, start, reset, difficulty
	DropID game.DropID `json:"dropId,omitempty"`
	Key    string      `json:"key,omitempty"`
}

// CommandResult acknowledges a Command
type CommandResult struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// PlayMessage tells clients to play a cue
type PlayMessage struct {
	Cue game.SoundCue `json:"cue"`
	URL string        `json:"url"`
}

var errUnknownCommand = errors.New("unknown command")

type wsClient struct {
	conn   *websocket.Conn
	ip     string
	gameID string
	send   chan []byte
}

// Hub fans engine events out to the WebSocket clients of each game and feeds
// their commands back into the engine.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*wsClient]struct{}
	total  int
	closed bool

	cfg       HubConfig
	wsLimiter *WebSocketRateLimiter
	origins   OriginChecker
	upgrader  websocket.Upgrader
}

// NewHub creates an empty hub
func NewHub(cfg HubConfig) *Hub {
	if cfg.MaxClientsPerGame <= 0 {
		cfg.MaxClientsPerGame = 8
	}
	if cfg.MaxClientsPerIP <= 0 {
		cfg.MaxClientsPerIP = MaxWSConnectionsPerIP
	}
	if cfg.CommandsPerSec <= 0 {
		cfg.CommandsPerSec = 30
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{"*"}
	}

	h := &Hub{
		rooms:     make(map[string]map[*wsClient]struct{}),
		cfg:       cfg,
		wsLimiter: NewWebSocketRateLimiter(cfg.MaxClientsPerIP),
		origins:   NewOriginChecker(cfg.AllowedOrigins),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if h.origins.Allowed(origin) {
				return true
			}
			logrus.Warnf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// OnEvent implements game.Observer. It never blocks: a client whose buffer is
// full misses the event.
func (h *Hub) OnEvent(ev game.Event) {
	h.Broadcast(ev.GameID, ev.Type.String(), ev)
}

// Broadcast sends a message to every client of one game
func (h *Hub) Broadcast(gameID, event string, data interface{}) {
	msg, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[gameID] {
		select {
		case c.send <- msg:
		default:
			// backpressure: slow client skips this message
		}
	}
}

// SoundRelay returns a sound player that asks the game's clients to play cues
func (h *Hub) SoundRelay(gameID string) game.SoundPlayer {
	return game.SoundPlayerFunc(func(cue game.SoundCue) {
		h.Broadcast(gameID, "play", PlayMessage{Cue: cue, URL: SoundURL(cue)})
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// GameClientCount returns the number of clients watching one game
func (h *Hub) GameClientCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[gameID])
}

// HandleWebSocket upgrades the request and attaches the connection to g
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, g *game.Game) {
	ip := GetClientIP(r)

	h.mu.RLock()
	total, inGame, closed := h.total, len(h.rooms[g.ID]), h.closed
	h.mu.RUnlock()

	switch {
	case closed:
		writeError(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	case total >= MaxWSConnectionsTotal:
		logrus.Warnf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	case inGame >= h.cfg.MaxClientsPerGame:
		RecordConnectionRejected("ws_game_limit")
		writeError(w, "Too many connections to this game", http.StatusTooManyRequests)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		logrus.Warnf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Debug("WebSocket upgrade failed")
		h.wsLimiter.Release(ip)
		return
	}

	c := &wsClient{conn: conn, ip: ip, gameID: g.ID, send: make(chan []byte, sendBufferSize)}
	if !h.register(c) {
		h.wsLimiter.Release(ip)
		conn.Close()
		return
	}

	if msg, err := json.Marshal(Message{Event: "snapshot", Data: g.Engine.Snapshot()}); err == nil {
		h.sendTo(c, msg)
	}

	go h.writePump(c)
	go h.readPump(c, g.Engine)
}

// CloseGame disconnects every client of a removed game
func (h *Hub) CloseGame(gameID string) {
	h.mu.Lock()
	room := h.rooms[gameID]
	clients := make([]*wsClient, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

// Close disconnects everyone and refuses new connections
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var clients []*wsClient
	for _, room := range h.rooms {
		for c := range room {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	room := h.rooms[c.gameID]
	if room == nil {
		room = make(map[*wsClient]struct{})
		h.rooms[c.gameID] = room
	}
	room[c] = struct{}{}
	h.total++
	count := h.total
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{"game": c.gameID, "ip": c.ip}).Infof("📱 Client connected (%d total)", count)
	UpdateWSConnections(count)
	return true
}

// unregister is idempotent; the send channel is closed exactly once, under
// the lock that guards every send.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	room, ok := h.rooms[c.gameID]
	if ok {
		_, ok = room[c]
	}
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.gameID)
	}
	h.total--
	count := h.total
	close(c.send)
	h.mu.Unlock()

	h.wsLimiter.Release(c.ip)
	logrus.WithField("game", c.gameID).Infof("📱 Client disconnected (%d remaining)", count)
	UpdateWSConnections(count)
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(c)
				return
			}
			IncrementWSMessages("out")
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

func (h *Hub) readPump(c *wsClient, engine *game.Engine) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	burst := int(h.cfg.CommandsPerSec)
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(h.cfg.CommandsPerSec), burst)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		IncrementWSMessages("in")

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.reply(c, CommandResult{Type: "invalid", Error: "malformed command"})
			continue
		}
		if !limiter.Allow() {
			RecordConnectionRejected("ws_command_rate")
			h.reply(c, CommandResult{Type: cmd.Type, Error: "rate limited"})
			continue
		}

		ok, err := runCommand(engine, cmd)
		res := CommandResult{Type: cmd.Type, OK: ok}
		if err != nil {
			res.Error = err.Error()
		}
		h.reply(c, res)
	}
}

// reply queues a command result for one client
func (h *Hub) reply(c *wsClient, res CommandResult) {
	msg, err := json.Marshal(Message{Event: "command", Data: res})
	if err != nil {
		return
	}
	h.sendTo(c, msg)
}

// sendTo queues msg unless c has already been unregistered
func (h *Hub) sendTo(c *wsClient, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.rooms[c.gameID][c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func runCommand(engine *game.Engine, cmd Command) (bool, error) {
	switch cmd.Type {
	case "catch":
		return engine.Catch(cmd.DropID), nil
	case "expire":
		return engine.Expire(cmd.DropID), nil
	case "start":
		return engine.StartGame(), nil
	case "reset":
		return engine.ResetGame(), nil
	case "difficulty":
		engine.SelectDifficulty(cmd.Key)
		return true, nil
	default:
		return false, errUnknownCommand
	}
}
