package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/solarscope/backend/internal/api/middleware"
	"github.com/solarscope/backend/internal/repositories/memory"
	"github.com/solarscope/backend/internal/services"
	"github.com/solarscope/backend/internal/utils"
)

// OpsHandler serves health and the session/maintenance endpoints.
type OpsHandler struct {
	health services.HealthService
	maint  services.MaintenanceService
	users  services.UserService
}

func NewOpsHandler(health services.HealthService, maint services.MaintenanceService, users services.UserService) *OpsHandler {
	return &OpsHandler{health: health, maint: maint, users: users}
}

func (h *OpsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Check(c.Request.Context()))
}

func (h *OpsHandler) ClearSession(c *gin.Context) {
	if err := h.maint.ClearSession(c.Request.Context(), middleware.SessionID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session data cleared successfully"})
}

type demoCredentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

var demoAccount = demoCredentials{
	Username: memory.DemoUsername,
	Email:    memory.DemoEmail,
	Password: memory.DemoPassword,
}

func (h *OpsHandler) ClearUsers(c *gin.Context) {
	if err := h.maint.ResetAll(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "All users cleared except testing user",
		"testing_user": demoAccount,
	})
}

func (h *OpsHandler) FixTestUser(c *gin.Context) {
	if _, err := h.users.RepairDemoAccount(c.Request.Context()); err != nil {
		if utils.IsCode(err, utils.CodeNotFound) {
			writeError(c, err)
			return
		}
		writeError(c, utils.E(utils.CodeInternal, "OpsHandler.FixTestUser", "Failed to fix test user", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Testing user password hash fixed",
	})
}

func (h *OpsHandler) DebugStorage(c *gin.Context) {
	snap, err := h.maint.Snapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
