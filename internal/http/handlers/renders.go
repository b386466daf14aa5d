package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/roomviz-backend/internal/http/response"
	"github.com/yungbote/roomviz-backend/internal/modules/design"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type RenderHandler struct {
	log    *logger.Logger
	design design.Usecases
}

func NewRenderHandler(log *logger.Logger, uc design.Usecases) *RenderHandler {
	return &RenderHandler{log: log.With("handler", "RenderHandler"), design: uc}
}

// POST /api/projects/:id/renders returns 202; the outcome arrives over SSE or the status endpoint.
func (h *RenderHandler) SubmitRender(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	st, err := h.design.SubmitRender(c.Request.Context(), userID, projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, st)
}

func (h *RenderHandler) RenderStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	st, err := h.design.RenderStatus(c.Request.Context(), userID, projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, st)
}

func (h *RenderHandler) CancelRender(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	st, err := h.design.CancelRender(c.Request.Context(), userID, projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.log.Info("Render canceled", "project_id", projectID, "run_id", st.RunID)
	response.RespondOK(c, st)
}
