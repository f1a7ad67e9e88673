package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/solarscope/backend/internal/api/middleware"
	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/services"
	"github.com/solarscope/backend/internal/utils"
)

type AnalysisHandler struct {
	svc services.AnalysisService
}

func NewAnalysisHandler(svc services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

func (h *AnalysisHandler) Installation(c *gin.Context) {
	const op = "AnalysisHandler.Installation"

	var roof services.RoofInput
	if raw := strings.TrimSpace(c.PostForm("roofSize")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "roofSize must be a number", err))
			return
		}
		roof.RoofSize = n
	}
	roof.RoofShape = c.PostForm("roofShape")
	roof.PanelSize = c.PostForm("panelSize")

	h.analyze(c, op, models.AnalysisInstallation, roof)
}

func (h *AnalysisHandler) FaultDetection(c *gin.Context) {
	h.analyze(c, "AnalysisHandler.FaultDetection", models.AnalysisFaultDetection, services.RoofInput{})
}

func (h *AnalysisHandler) analyze(c *gin.Context, op string, typ models.AnalysisType, roof services.RoofInput) {
	fh, err := c.FormFile("image")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "No image uploaded", err))
		return
	}
	if fh.Size > services.MaxImageBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "image exceeds 8MB limit", nil))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "failed to read upload", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, services.MaxImageBytes+1))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "failed to read upload", err))
		return
	}

	res, err := h.svc.Analyze(c.Request.Context(), services.AnalyzeInput{
		Owner:    ownerOf(c),
		Type:     typ,
		Image:    data,
		Filename: fh.Filename,
		Roof:     roof,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Mine lists the caller's analyses. Requires auth.
func (h *AnalysisHandler) Mine(c *gin.Context) {
	id, ok := requireUserID(c)
	if !ok {
		return
	}
	h.listByUser(c, id)
}

func (h *AnalysisHandler) ByUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AnalysisHandler.ByUser", "invalid user id", err))
		return
	}
	h.listByUser(c, id)
}

func (h *AnalysisHandler) listByUser(c *gin.Context, id int64) {
	out, err := h.svc.ListByUser(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(out))
}

func (h *AnalysisHandler) Session(c *gin.Context) {
	sid := middleware.SessionID(c)
	if sid == "" {
		c.JSON(http.StatusOK, []models.Analysis{})
		return
	}
	out, err := h.svc.ListBySession(c.Request.Context(), sid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(out))
}

func (h *AnalysisHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AnalysisHandler.Get", "invalid analysis id", err))
		return
	}
	a, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
