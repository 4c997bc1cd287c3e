/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Seednode/wordrace/internal/auth"
	"github.com/Seednode/wordrace/internal/challenge"
	"github.com/Seednode/wordrace/internal/obslog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
	maxNameLength  = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "wordrace_id"

var errBadRequest = errors.New("malformed event")

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		obslog.L().Error("player_id_failed", zap.Error(err))
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// displayName trims a client-chosen name to something printable.
func displayName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxNameLength {
		s = string([]rune(s)[:maxNameLength])
	}

	return s
}

// Client is one WebSocket connection. It satisfies challenge.Peer: Send
// never blocks, and a client that cannot keep up is closed by the registry.
type Client struct {
	conn     *websocket.Conn
	send     chan any
	closed   chan struct{}
	once     sync.Once
	playerID string
}

func newClient(conn *websocket.Conn, playerID string) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan any, sendBuffer),
		closed:   make(chan struct{}),
		playerID: playerID,
	}
}

func (c *Client) Send(msg any) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) Close() error {
	c.once.Do(func() { close(c.closed) })

	return nil
}

func (c *Client) readPump(ctx context.Context, hub *challenge.Hub) {
	defer func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeWait)
		defer cancel()

		hub.Disconnect(dctx, c.playerID, c)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				obslog.L().Debug("connection_lost", zap.String("player_id", c.playerID), zap.Error(err))
			}
			return
		}

		var msg challenge.ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.fail(hub, fmt.Errorf("%w: %v", errBadRequest, err))
			continue
		}

		if err := c.dispatch(ctx, hub, msg); err != nil {
			c.fail(hub, err)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, hub *challenge.Hub, msg challenge.ClientMessage) error {
	switch msg.Type {
	case challenge.EventJoin:
		if msg.PlayerID != "" && msg.PlayerID != c.playerID {
			return challenge.ErrNotAuthenticated
		}
		return hub.Join(ctx, c.playerID, msg.GameType, msg.Level)
	case challenge.EventLeave:
		return hub.Leave(ctx, c.playerID)
	case challenge.EventSubmit:
		elapsed := time.Duration(msg.TimeSpent * float64(time.Second))
		return hub.Submit(ctx, c.playerID, msg.RoomID, msg.QuestionID, msg.Submitted(), elapsed)
	default:
		return fmt.Errorf("%w: unknown event type %q", errBadRequest, msg.Type)
	}
}

// fail reports err to this connection only.
func (c *Client) fail(hub *challenge.Hub, err error) {
	obslog.L().Debug("client_error", zap.String("player_id", c.playerID), zap.Error(err))

	if !c.Send(hub.ErrorEvent(err)) {
		_ = c.Close()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(msg any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	return c.conn.WriteJSON(msg)
}

// flush writes whatever was queued before the client was closed.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// identify resolves the player behind a request: a verified token when a
// verifier is configured, the anonymous cookie otherwise.
func identify(w http.ResponseWriter, r *http.Request, verifier *auth.Verifier) (auth.Identity, int, error) {
	if verifier != nil {
		id, err := verifier.Authenticate(r)
		if err != nil {
			return auth.Identity{}, http.StatusUnauthorized, err
		}

		return auth.Identity{PlayerID: id.PlayerID, Name: displayName(id.Name)}, 0, nil
	}

	playerID := getOrSetPlayerID(w, r)
	if playerID == "" {
		return auth.Identity{}, http.StatusInternalServerError, errors.New("unable to assign player id")
	}

	return auth.Identity{PlayerID: playerID, Name: displayName(r.URL.Query().Get("name"))}, 0, nil
}

func serveWS(hub *challenge.Hub, verifier *auth.Verifier) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, status, err := identify(w, r, verifier)
		if err != nil {
			obslog.L().Info("connection_rejected",
				zap.String("remote", realIP(r)),
				zap.Int("status", status),
				zap.Error(err),
			)
			http.Error(w, http.StatusText(status), status)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			obslog.L().Debug("upgrade_failed", zap.String("remote", realIP(r)), zap.Error(err))
			return
		}

		client := newClient(conn, id.PlayerID)

		go client.writePump()

		hub.Connect(r.Context(), id.PlayerID, id.Name, client)

		client.readPump(r.Context(), hub)
	}
}

// qrHandler renders a PNG QR code pointing at the landing page.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := cfg.scheme()
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/"

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func serveStats(cfg *Config, hub *challenge.Hub, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(hub.Stats()); err != nil {
			errs <- err
		}
	}
}

// registerChallenge sets up routes so that:
//   - $path/ws      → WebSocket for the matchmaking queue and sessions
//   - $path/qr      → PNG QR code of the landing page
//   - $path/stats   → connected, waiting and running counts as JSON
//   - $path/rooms   → running sessions with per-player counts as JSON
//   - $path/history → the caller's XP grants and recent matches as JSON
func registerChallenge(cfg *Config, path string, mux *httprouter.Router, hub *challenge.Hub, verifier *auth.Verifier, hist history, errs chan<- error) {
	mux.GET(cfg.prefix+path+"/ws", serveWS(hub, verifier))
	mux.GET(cfg.prefix+path+"/qr", qrHandler(cfg))
	mux.GET(cfg.prefix+path+"/stats", serveStats(cfg, hub, errs))
	mux.GET(cfg.prefix+path+"/rooms", serveRooms(cfg, hub, errs))
	mux.GET(cfg.prefix+path+"/history", serveHistory(cfg, verifier, hist, errs))
}
