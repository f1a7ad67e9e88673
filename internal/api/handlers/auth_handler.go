package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/solarscope/backend/internal/api/middleware"
	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/services"
	"github.com/solarscope/backend/internal/utils"
)

type AuthHandler struct {
	users    services.UserService
	tokens   *middleware.Tokens
	sessions middleware.SessionSource
	cookie   middleware.SessionConfig
	log      logrus.FieldLogger
}

func NewAuthHandler(users services.UserService, tokens *middleware.Tokens, sessions middleware.SessionSource, cookie middleware.SessionConfig, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, sessions: sessions, cookie: cookie, log: log}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type AuthResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token,omitempty"`
	User    UserResponse `json:"user"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Email: u.Email}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Register", "username, email and password are required", err))
		return
	}

	u, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondWithToken(c, http.StatusCreated, u)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Login", "email and password are required", err))
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondWithToken(c, http.StatusOK, u)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, u *models.User) {
	token, err := h.tokens.Issue(u.ID, u.Username)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "AuthHandler.Issue", "failed to issue token", err))
		return
	}
	c.JSON(status, AuthResponse{Success: true, Token: token, User: toUserResponse(u)})
}

// Logout ends the anonymous session. Bearer tokens are stateless; the client
// discards its own.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := middleware.EndSession(c, h.sessions, h.cookie); err != nil {
		h.log.WithError(err).Warn("session delete failed")
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) User(c *gin.Context) {
	id, ok := requireUserID(c)
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Success: true, User: toUserResponse(u)})
}
