package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/solarscope/backend/internal/api/middleware"
	"github.com/solarscope/backend/internal/services"
	"github.com/solarscope/backend/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingEvery    = 30 * time.Second
)

// WSHandler streams assistant replies chunk by chunk.
type WSHandler struct {
	chat     services.ChatService
	tokens   *middleware.Tokens
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(chat services.ChatService, tokens *middleware.Tokens, log logrus.FieldLogger, checkOrigin func(*http.Request) bool) *WSHandler {
	return &WSHandler{
		chat:   chat,
		tokens: tokens,
		log:    log,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin,
		},
	}
}

type wsClientMsg struct {
	Type                string   `json:"type"` // ask | ping
	Message             string   `json:"message"`
	ConversationHistory []string `json:"conversationHistory"`
}

type wsServerMsg struct {
	Type     string     `json:"type"` // chunk | done | error | pong
	Text     string     `json:"text,omitempty"`
	Response string     `json:"response,omitempty"`
	Category string     `json:"category,omitempty"`
	Code     utils.Code `json:"code,omitempty"`
	Message  string     `json:"message,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.c.WriteJSON(v)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (w *wsConn) writeError(err error) error {
	msg := wsServerMsg{Type: "error", Code: utils.CodeInternal, Message: "request failed"}
	var ae *utils.AppError
	if errors.As(err, &ae) {
		msg.Code, msg.Message = ae.Code, ae.Message
	}
	return w.writeJSON(msg)
}

// Chat upgrades the request. Browsers cannot set headers on a websocket
// handshake, so a token may also arrive as ?token=.
func (h *WSHandler) Chat(c *gin.Context) {
	owner := ownerOf(c)
	if owner.UserID == nil {
		if raw := c.Query("token"); raw != "" {
			id, username, err := h.tokens.Parse(raw)
			if err != nil {
				writeError(c, utils.E(utils.CodeUnauthorized, "WSHandler.Chat", "invalid token", err))
				return
			}
			owner.UserID, owner.Username = &id, username
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go h.keepAlive(ctx, wc)

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = wc.writeJSON(wsServerMsg{Type: "error", Code: utils.CodeInvalidArgument, Message: "invalid json"})
			continue
		}

		switch msg.Type {
		case "ask":
			advice, err := h.chat.StreamAsk(ctx, owner, msg.Message, msg.ConversationHistory, func(chunk string) error {
				return wc.writeJSON(wsServerMsg{Type: "chunk", Text: chunk})
			})
			if err != nil {
				h.log.WithError(err).Warn("ws chat failed")
				if werr := wc.writeError(err); werr != nil {
					return
				}
				continue
			}
			if err := wc.writeJSON(wsServerMsg{Type: "done", Response: advice.Response, Category: advice.Category}); err != nil {
				return
			}

		case "ping":
			_ = wc.writeJSON(wsServerMsg{Type: "pong"})

		default:
			_ = wc.writeJSON(wsServerMsg{Type: "error", Code: utils.CodeInvalidArgument, Message: "unknown message type"})
		}
	}
}

func (h *WSHandler) keepAlive(ctx context.Context, wc *wsConn) {
	t := time.NewTicker(wsPingEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := wc.ping(); err != nil {
				return
			}
		}
	}
}
