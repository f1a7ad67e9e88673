package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/solarscope/backend/internal/services"
	"github.com/solarscope/backend/internal/utils"
)

type ChatHandler struct {
	svc services.ChatService
}

func NewChatHandler(svc services.ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type SendMessageRequest struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

type AskRequest struct {
	Message             string   `json:"message"`
	ConversationHistory []string `json:"conversationHistory"`
}

func (h *ChatHandler) Messages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Messages", "limit must be a number", err))
			return
		}
		limit = n
	}

	out, err := h.svc.List(c.Request.Context(), ownerOf(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(out))
}

func (h *ChatHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Send", "invalid request body", err))
		return
	}
	m, err := h.svc.Send(c.Request.Context(), ownerOf(c), req.Message, req.Category)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *ChatHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Ask", "invalid request body", err))
		return
	}
	advice, err := h.svc.Ask(c.Request.Context(), ownerOf(c), req.Message, req.ConversationHistory)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, advice)
}
