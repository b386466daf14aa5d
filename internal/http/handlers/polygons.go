package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/roomviz-backend/internal/http/response"
	"github.com/yungbote/roomviz-backend/internal/modules/design"
	"github.com/yungbote/roomviz-backend/internal/modules/design/geometry"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type PolygonHandler struct {
	log    *logger.Logger
	design design.Usecases
}

func NewPolygonHandler(log *logger.Logger, uc design.Usecases) *PolygonHandler {
	return &PolygonHandler{log: log.With("handler", "PolygonHandler"), design: uc}
}

type validatePolygonRequest struct {
	Points []float64     `json:"points"`
	Space  design.Space  `json:"space"`
	View   geometry.View `json:"view"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
}

// Validate reports validity without storing anything; an invalid polygon is still a 200.
func (h *PolygonHandler) Validate(c *gin.Context) {
	var req validatePolygonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.design.CheckPolygon(req.Points, req.Space, req.View, req.Width, req.Height)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}
