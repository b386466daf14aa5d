package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/roomviz-backend/internal/http/response"
	"github.com/yungbote/roomviz-backend/internal/modules/design"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type PendingHandler struct {
	log    *logger.Logger
	design design.Usecases
}

func NewPendingHandler(log *logger.Logger, uc design.Usecases) *PendingHandler {
	return &PendingHandler{log: log.With("handler", "PendingHandler"), design: uc}
}

func (h *PendingHandler) GetPending(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	out, err := h.design.GetPending(c.Request.Context(), userID, projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

func (h *PendingHandler) ClearPending(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.design.ClearPending(c.Request.Context(), userID, projectID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// PUT /api/projects/:id/pending/walls/:region_id
func (h *PendingHandler) SetWall(c *gin.Context) {
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
	var req design.WallEditInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req.RegionID = regionID
	out, err := h.design.SetWallEdit(c.Request.Context(), userID, projectID, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

func (h *PendingHandler) RemoveWall(c *gin.Context) {
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
	out, err := h.design.RemoveWallEdit(c.Request.Context(), userID, projectID, regionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

func (h *PendingHandler) SetFloor(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req design.FloorInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.design.SetFloor(c.Request.Context(), userID, projectID, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/projects/:id/pending/floor/reference (multipart: image, hint)
func (h *PendingHandler) UploadFloorReference(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	body, mimeType, ok := readUpload(c, "image")
	if !ok {
		return
	}
	out, err := h.design.UploadFloorReference(c.Request.Context(), userID, projectID, body, mimeType, c.PostForm("hint"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

func (h *PendingHandler) ClearFloor(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	out, err := h.design.ClearFloor(c.Request.Context(), userID, projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

func (h *PendingHandler) AddPlacement(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req design.PlacementInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.design.AddPlacement(c.Request.Context(), userID, projectID, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, out)
}

func (h *PendingHandler) RemovePlacement(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	placementID, ok := uuidParam(c, "placement_id")
	if !ok {
		return
	}
	out, err := h.design.RemovePlacement(c.Request.Context(), userID, projectID, placementID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}
