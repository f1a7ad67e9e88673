package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/solarscope/backend/internal/session"
)

const ctxSessionID = "session_id"

// SessionSource returns the session store currently in use. The store can
// change once at startup when the durable backend comes online.
type SessionSource func() session.Store

type SessionConfig struct {
	Cookie string
	TTL    time.Duration
	Secure bool
}

// Session resolves the anonymous session from its cookie, creating and
// persisting a fresh one when the cookie is missing, unknown or expired.
func Session(src SessionSource, cfg SessionConfig, log logrus.FieldLogger) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = session.DefaultTTL
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		st := src()

		if id, err := c.Cookie(cfg.Cookie); err == nil && id != "" {
			s, err := st.Get(ctx, id)
			if err != nil {
				log.WithError(err).Warn("session lookup failed")
			}
			if s != nil {
				c.Set(ctxSessionID, s.ID)
				c.Next()
				return
			}
		}

		s := session.New(time.Now(), cfg.TTL)
		if err := st.Save(ctx, s); err != nil {
			// The id still anchors this request's records.
			log.WithError(err).Warn("session save failed")
		}
		setSessionCookie(c, cfg, s.ID, int(cfg.TTL.Seconds()))
		c.Set(ctxSessionID, s.ID)
		c.Next()
	}
}

// EndSession deletes the current session and expires its cookie.
func EndSession(c *gin.Context, src SessionSource, cfg SessionConfig) error {
	id := SessionID(c)
	setSessionCookie(c, cfg, "", -1)
	if id == "" {
		return nil
	}
	return src().Delete(c.Request.Context(), id)
}

func SessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}

func setSessionCookie(c *gin.Context, cfg SessionConfig, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Cookie, value, maxAge, "/", "", cfg.Secure, true)
}
