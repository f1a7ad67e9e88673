package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/providers/llm"
	"github.com/solarscope/backend/internal/store"
	"github.com/solarscope/backend/internal/utils"
)

const (
	AssistantName   = "AI Assistant"
	fallbackAdvice  = "I'm here to help with solar panel questions. Could you please provide more details about what you'd like to know?"
	aiUnavailable   = "AI service temporarily unavailable. Please try again later."
	maxMessageRunes = 2000
)

type Advice struct {
	Response string `json:"response"`
	Category string `json:"category"`
}

type ChatService interface {
	Send(ctx context.Context, owner Owner, message, category string) (*models.ChatMessage, error)
	List(ctx context.Context, owner Owner, limit int) ([]models.ChatMessage, error)
	Ask(ctx context.Context, owner Owner, message string, history []string) (*Advice, error)
	// StreamAsk calls onChunk for every piece of the reply as it arrives.
	StreamAsk(ctx context.Context, owner Owner, message string, history []string, onChunk func(string) error) (*Advice, error)
}

type chatService struct {
	store store.Store
	llm   llm.Provider
	log   logrus.FieldLogger
}

func NewChatService(s store.Store, p llm.Provider, log logrus.FieldLogger) ChatService {
	if log == nil {
		log = logrus.New()
	}
	return &chatService{store: s, llm: p, log: log}
}

func (s *chatService) Send(ctx context.Context, owner Owner, message, category string) (*models.ChatMessage, error) {
	const op = "ChatService.Send"

	message, err := cleanMessage(op, message)
	if err != nil {
		return nil, err
	}
	if category == "" {
		category = models.DefaultChatCategory
	}

	userID, sessionID := owner.anchors()
	m, err := s.store.CreateChatMessage(ctx, models.NewChatMessage{
		UserID:    userID,
		SessionID: sessionID,
		Username:  owner.displayName(),
		Message:   message,
		Type:      models.ChatMessageUser,
		Category:  &category,
	})
	if err != nil {
		return nil, storeErr(op, "Failed to send message", err)
	}
	return m, nil
}

func (s *chatService) List(ctx context.Context, owner Owner, limit int) ([]models.ChatMessage, error) {
	const op = "ChatService.List"

	var (
		out []models.ChatMessage
		err error
	)
	switch {
	case owner.UserID != nil:
		out, err = s.store.GetChatMessagesByUser(ctx, *owner.UserID, limit)
	case owner.SessionID != "":
		out, err = s.store.GetChatMessagesBySession(ctx, owner.SessionID, limit)
	default:
		return []models.ChatMessage{}, nil
	}
	if err != nil {
		return nil, storeErr(op, "Failed to fetch chat messages", err)
	}
	return out, nil
}

func (s *chatService) Ask(ctx context.Context, owner Owner, message string, history []string) (*Advice, error) {
	const op = "ChatService.Ask"

	message, err := cleanMessage(op, message)
	if err != nil {
		return nil, err
	}
	if s.llm == nil {
		return nil, utils.E(utils.CodeUnavailable, op, aiUnavailable, nil)
	}

	s.record(ctx, owner, owner.displayName(), message, models.ChatMessageUser, models.DefaultChatCategory)

	raw, err := llm.Collect(ctx, s.llm, advicePrompt(message, history))
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, aiUnavailable, err)
	}
	advice := parseAdvice(raw)

	s.record(ctx, owner, AssistantName, advice.Response, models.ChatMessageAI, advice.Category)
	return advice, nil
}

func (s *chatService) StreamAsk(ctx context.Context, owner Owner, message string, history []string, onChunk func(string) error) (*Advice, error) {
	const op = "ChatService.StreamAsk"

	message, err := cleanMessage(op, message)
	if err != nil {
		return nil, err
	}
	if s.llm == nil {
		return nil, utils.E(utils.CodeUnavailable, op, aiUnavailable, nil)
	}

	s.record(ctx, owner, owner.displayName(), message, models.ChatMessageUser, models.DefaultChatCategory)

	chunks, errs := s.llm.StreamAnswer(ctx, streamPrompt(message, history))
	var full strings.Builder
	for c := range chunks {
		full.WriteString(c)
		if err := onChunk(c); err != nil {
			// Receiver is gone; drain so the producer can exit.
			for range chunks {
			}
			return nil, utils.E(utils.CodeInternal, op, "stream aborted", err)
		}
	}
	if err := <-errs; err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, aiUnavailable, err)
	}

	advice := &Advice{Response: strings.TrimSpace(full.String()), Category: models.DefaultChatCategory}
	if advice.Response == "" {
		advice.Response = fallbackAdvice
	}
	s.record(ctx, owner, AssistantName, advice.Response, models.ChatMessageAI, advice.Category)
	return advice, nil
}

// record stores a conversation turn. Storage failures are logged and
// swallowed so the assistant still answers.
func (s *chatService) record(ctx context.Context, owner Owner, username, message string, typ models.ChatMessageType, category string) {
	userID, sessionID := owner.anchors()
	_, err := s.store.CreateChatMessage(ctx, models.NewChatMessage{
		UserID:    userID,
		SessionID: sessionID,
		Username:  username,
		Message:   message,
		Type:      typ,
		Category:  &category,
	})
	if err != nil {
		s.log.WithError(err).WithField("type", typ).Warn("failed to store chat message")
	}
}

func cleanMessage(op, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "Message content is required", nil)
	}
	if len([]rune(message)) > maxMessageRunes {
		return "", utils.E(utils.CodeInvalidArgument, op, "Message is too long", nil)
	}
	return message, nil
}

func parseAdvice(raw string) *Advice {
	cleaned := llm.CleanJSON(raw)

	var a Advice
	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		if cleaned == "" {
			cleaned = fallbackAdvice
		}
		return &Advice{Response: cleaned, Category: models.DefaultChatCategory}
	}
	if strings.TrimSpace(a.Response) == "" {
		a.Response = fallbackAdvice
	}
	if a.Category == "" {
		a.Category = models.DefaultChatCategory
	}
	return &a
}
