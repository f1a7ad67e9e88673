package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/solarscope/backend/internal/api/handlers"
	"github.com/solarscope/backend/internal/api/middleware"
	"github.com/solarscope/backend/internal/metrics"
)

type Deps struct {
	Auth     *handlers.AuthHandler
	Analysis *handlers.AnalysisHandler
	Chat     *handlers.ChatHandler
	Ops      *handlers.OpsHandler
	WS       *handlers.WSHandler

	Tokens   *middleware.Tokens
	Sessions middleware.SessionSource
	Cookie   middleware.SessionConfig
	Logger   logrus.FieldLogger

	// DevRoutes exposes the reset and debug endpoints.
	DevRoutes bool
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	sessionMW := middleware.Session(d.Sessions, d.Cookie, d.Logger)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	api.GET("/health", d.Ops.Health)

	// Everything else knows its caller: a bearer user or the anonymous session.
	ident := api.Group("/")
	ident.Use(middleware.OptionalAuth(d.Tokens), sessionMW)

	ident.POST("/register", d.Auth.Register)
	ident.POST("/login", d.Auth.Login)
	ident.POST("/logout", d.Auth.Logout)
	ident.GET("/user", middleware.RequireAuth(), d.Auth.User)

	ident.POST("/analyze/installation", d.Analysis.Installation)
	ident.POST("/analyze/fault-detection", d.Analysis.FaultDetection)
	ident.GET("/analyses", middleware.RequireAuth(), d.Analysis.Mine)
	ident.GET("/analyses/session", d.Analysis.Session)
	ident.GET("/analyses/:userId", d.Analysis.ByUser)
	ident.GET("/analysis/:id", d.Analysis.Get)

	ident.GET("/chat/messages", d.Chat.Messages)
	ident.POST("/chat/send", d.Chat.Send)
	ident.POST("/ai/chat", d.Chat.Ask)

	ident.POST("/clear-session", d.Ops.ClearSession)

	if d.DevRoutes {
		ident.POST("/clear-users", d.Ops.ClearUsers)
		ident.POST("/fix-test-user", d.Ops.FixTestUser)
		ident.GET("/debug/storage", d.Ops.DebugStorage)
	}

	ws := r.Group("/ws")
	ws.Use(middleware.OptionalAuth(d.Tokens), sessionMW)
	ws.GET("/chat", d.WS.Chat)
}
