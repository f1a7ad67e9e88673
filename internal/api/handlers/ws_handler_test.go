package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/solarscope/backend/internal/api/middleware"
	"github.com/solarscope/backend/internal/logger"
	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/repositories/memory"
	"github.com/solarscope/backend/internal/services"
	"github.com/solarscope/backend/internal/session"
)

type chunkLLM struct{ chunks []string }

func (f chunkLLM) StreamAnswer(context.Context, string) (<-chan string, <-chan error) {
	out := make(chan string, len(f.chunks))
	errs := make(chan error)
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	close(errs)
	return out, errs
}

func (chunkLLM) AnalyzeImage(context.Context, string, []byte, string) (string, error) { return "", nil }
func (chunkLLM) Close() error                                                         { return nil }

func TestWSHandler_Chat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.Discard()
	st := memory.NewStore()
	sessions := session.NewMemoryStore()
	tokens := middleware.NewTokens("secret", time.Hour)
	h := NewWSHandler(services.NewChatService(st, chunkLLM{chunks: []string{"Angle ", "them south."}}, log), tokens, log, nil)

	r := gin.New()
	r.Use(middleware.Session(func() session.Store { return sessions }, middleware.SessionConfig{Cookie: "sid"}, log))
	r.GET("/ws/chat", h.Chat)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	token, _ := tokens.Issue(1, memory.DemoUsername)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() wsServerMsg {
		t.Helper()
		var m wsServerMsg
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return m
	}

	if err := conn.WriteJSON(wsClientMsg{Type: "ask", Message: "orientation?"}); err != nil {
		t.Fatal(err)
	}
	var text strings.Builder
	for {
		m := read()
		if m.Type == "done" {
			if m.Response != "Angle them south." {
				t.Errorf("done response = %q", m.Response)
			}
			break
		}
		if m.Type != "chunk" {
			t.Fatalf("unexpected message %+v", m)
		}
		text.WriteString(m.Text)
	}
	if text.String() != "Angle them south." {
		t.Errorf("streamed text = %q", text.String())
	}

	if err := conn.WriteJSON(wsClientMsg{Type: "ask", Message: " "}); err != nil {
		t.Fatal(err)
	}
	if m := read(); m.Type != "error" || m.Code != "INVALID_ARGUMENT" {
		t.Errorf("blank ask reply = %+v", m)
	}

	msgs, _ := st.GetChatMessagesByUser(context.Background(), 1, 0)
	if len(msgs) != 2 || msgs[0].Type != models.ChatMessageAI {
		t.Errorf("stored = %+v", msgs)
	}
}
