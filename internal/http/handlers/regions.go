package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/roomviz-backend/internal/http/response"
	"github.com/yungbote/roomviz-backend/internal/modules/design"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type RegionHandler struct {
	log    *logger.Logger
	design design.Usecases
}

func NewRegionHandler(log *logger.Logger, uc design.Usecases) *RegionHandler {
	return &RegionHandler{log: log.With("handler", "RegionHandler"), design: uc}
}

func (h *RegionHandler) CreateRegion(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req design.RegionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.design.CreateRegion(c.Request.Context(), userID, projectID, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, out)
}

func (h *RegionHandler) ListRegions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	out, err := h.design.ListRegions(c.Request.Context(), userID, projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"regions": out})
}

// PATCH /api/projects/:id/regions/:region_id accepts a new label, new points, or both.
func (h *RegionHandler) UpdateRegion(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	regionID, ok := uuidParam(c, "region_id")
	if !ok {
		return
	}
	var req struct {
		Label *string `json:"label"`
		design.RegionInput
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	var (
		out *design.RegionView
		err error
	)
	if len(req.Points) > 0 {
		if out, err = h.design.UpdateRegionPoints(ctx, userID, projectID, regionID, req.RegionInput); err != nil {
			response.RespondAPIError(c, err)
			return
		}
	}
	if req.Label != nil {
		if out, err = h.design.RenameRegion(ctx, userID, projectID, regionID, *req.Label); err != nil {
			response.RespondAPIError(c, err)
			return
		}
	}
	if out == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errEmptyUpdate)
		return
	}
	response.RespondOK(c, out)
}

func (h *RegionHandler) DeleteRegion(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	regionID, ok := uuidParam(c, "region_id")
	if !ok {
		return
	}
	if err := h.design.DeleteRegion(c.Request.Context(), userID, projectID, regionID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
