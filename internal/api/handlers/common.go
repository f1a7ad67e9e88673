package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/solarscope/backend/internal/api/middleware"
	"github.com/solarscope/backend/internal/services"
	"github.com/solarscope/backend/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

// ownerOf returns who new records belong to: the bearer user when present,
// else the anonymous session.
func ownerOf(c *gin.Context) services.Owner {
	o := services.Owner{SessionID: middleware.SessionID(c)}
	if id, ok := middleware.UserID(c); ok {
		o.UserID = &id
		o.Username = middleware.Username(c)
	}
	return o
}

func requireUserID(c *gin.Context) (int64, bool) {
	if id, ok := middleware.UserID(c); ok {
		return id, true
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "Authentication required", nil))
	return 0, false
}
