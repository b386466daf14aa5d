package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/roomviz-backend/internal/http/response"
	"github.com/yungbote/roomviz-backend/internal/modules/design"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
	"github.com/yungbote/roomviz-backend/internal/realtime"
)

type RealtimeHandler struct {
	log    *logger.Logger
	hub    *realtime.SSEHub
	design design.Usecases
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, uc design.Usecases) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub, design: uc}
}

// ProjectEvents streams render and version events for one project the caller owns.
// GET /api/projects/:id/events?token=...
func (h *RealtimeHandler) ProjectEvents(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.design.RenderStatus(c.Request.Context(), userID, projectID); err != nil {
		response.RespondAPIError(c, err)
		return
	}

	client := h.hub.NewSSEClient(userID)
	h.hub.AddChannel(client, realtime.ProjectChannel(projectID))
	h.log.Debug("SSE stream open", "user_id", userID, "project_id", projectID, "client_id", client.ID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("SSE stream closed", "client_id", client.ID)
}
