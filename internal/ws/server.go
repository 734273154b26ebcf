package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"resto-console/internal/auth"
	"resto-console/internal/config"
	"resto-console/internal/console"
	"resto-console/internal/gateway"
	"resto-console/pkg/response"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

type SessionSource interface {
	Acquire(userID, token string) (*console.Session, error)
}

type Server struct {
	Logger *zap.Logger
	Config config.Config

	sessions SessionSource
	hub      *Hub
}

func New(logger *zap.Logger, cfg config.Config, hub *Hub, sessions SessionSource) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	return &Server{Logger: logger, Config: cfg, sessions: sessions, hub: hub}
}

type wsRealtimeClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsRealtimeClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(value)
}

func (c *wsRealtimeClient) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub fans console snapshots out to each user's websocket clients. It
// implements console.Notifier.
type Hub struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[*wsRealtimeClient]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, subs: make(map[string]map[*wsRealtimeClient]struct{})}
}

func (h *Hub) subscribe(userID string, client *wsRealtimeClient) (unsubscribe func()) {
	key := strings.TrimSpace(userID)
	if key == "" {
		return func() {}
	}

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*wsRealtimeClient]struct{})
	}
	h.subs[key][client] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		clients := h.subs[key]
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.subs, key)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) broadcast(userID string, message any) {
	key := strings.TrimSpace(userID)
	if key == "" {
		return
	}

	h.mu.RLock()
	clientsMap := h.subs[key]
	clients := make([]*wsRealtimeClient, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			h.mu.Lock()
			if current := h.subs[key]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(h.subs, key)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Notify(userID string, snap console.Snapshot) {
	h.broadcast(userID, stateMessage(snap))
}

// Subscribers reports how many clients a user has connected.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[strings.TrimSpace(userID)])
}

func stateMessage(snap console.Snapshot) map[string]any {
	return map[string]any{"type": "console.state", "data": snap}
}

func queryToken(r *http.Request) string {
	raw := strings.TrimSpace(r.URL.Query().Get("token"))
	if token := auth.ParseBearerToken(raw); token != "" {
		return token
	}
	return raw
}

// ConsoleWS streams the caller's console snapshots. The token is checked and
// the session acquired before the upgrade, so a rejected caller gets a plain
// HTTP error. The first message is the current snapshot; a session that has
// never loaded is loaded in the background and pushes its result when done.
func (s *Server) ConsoleWS(w http.ResponseWriter, r *http.Request) {
	token := queryToken(r)
	claims, err := auth.VerifyAccessToken(token, s.Config.JWTSecret)
	if err != nil {
		response.Error(w, http.StatusUnauthorized, string(console.ErrUnauthorized), "Invalid or expired token")
		return
	}
	if s.sessions == nil {
		response.Error(w, http.StatusServiceUnavailable, string(console.ErrSessionClosed), "Console is not available")
		return
	}
	sess, err := s.sessions.Acquire(claims.UserID(), token)
	if err != nil {
		s.Logger.Warn("console session unavailable", zap.String("userId", claims.UserID()), zap.Error(err))
		response.Error(w, http.StatusServiceUnavailable, string(console.ErrSessionClosed), "Console session unavailable")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &wsRealtimeClient{conn: conn}
	unsubscribe := s.hub.subscribe(sess.UserID(), client)
	defer unsubscribe()

	snap, err := sess.Snapshot()
	if err == nil {
		_ = client.writeJSON(stateMessage(snap))
		if !snap.Loaded {
			go func() {
				loadCtx, cancelLoad := context.WithTimeout(context.Background(), s.Config.BackendTimeout+5*time.Second)
				defer cancelLoad()
				if _, loadErr := sess.Load(gateway.WithToken(loadCtx, token)); loadErr != nil {
					s.Logger.Debug("initial console load skipped", zap.String("userId", sess.UserID()), zap.Error(loadErr))
				}
			}()
		}
	}

	heartbeat := s.Config.WSHeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
	})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}
