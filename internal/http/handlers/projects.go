package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/roomviz-backend/internal/http/response"
	"github.com/yungbote/roomviz-backend/internal/modules/design"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type ProjectHandler struct {
	log    *logger.Logger
	design design.Usecases
}

func NewProjectHandler(log *logger.Logger, uc design.Usecases) *ProjectHandler {
	return &ProjectHandler{log: log.With("handler", "ProjectHandler"), design: uc}
}

// POST /api/projects (multipart: image, name)
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	body, mimeType, ok := readUpload(c, "image")
	if !ok {
		return
	}
	out, err := h.design.CreateProject(c.Request.Context(), design.CreateProjectInput{
		OwnerUserID: userID,
		Name:        c.PostForm("name"),
		Image:       body,
		MimeType:    mimeType,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, out)
}

func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.design.ListProjects(c.Request.Context(), userID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"projects": out})
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	out, err := h.design.GetProject(c.Request.Context(), userID, projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.design.DeleteProject(c.Request.Context(), userID, projectID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

func (h *ProjectHandler) ListVersions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	out, err := h.design.ListVersions(c.Request.Context(), userID, projectID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"versions": out})
}

// PUT /api/projects/:id/current-version {"version_id": "..."}
func (h *ProjectHandler) SwitchVersion(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		VersionID string `json:"version_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	versionID, err := parseUUID(req.VersionID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_version_id", err)
		return
	}
	out, err := h.design.SwitchVersion(c.Request.Context(), userID, projectID, versionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.log.Debug("Version switched", "project_id", projectID, "version_id", versionID)
	response.RespondOK(c, out)
}
