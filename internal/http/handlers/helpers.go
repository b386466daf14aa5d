package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/roomviz-backend/internal/http/response"
	"github.com/yungbote/roomviz-backend/internal/platform/ctxutil"
)

const maxUploadBytes = 25 << 20

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID := ctxutil.UserID(c.Request.Context())
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("not authenticated"))
		return uuid.Nil, false
	}
	return userID, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// readUpload reads one multipart file field, capped at maxUploadBytes.
func readUpload(c *gin.Context, field string) ([]byte, string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+1<<20)
	fh, err := c.FormFile(field)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return nil, "", false
	}
	if fh.Size > maxUploadBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", errors.New("image exceeds 25 MB"))
		return nil, "", false
	}
	body, err := readFileHeader(fh)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return nil, "", false
	}
	return body, strings.TrimSpace(fh.Header.Get("Content-Type")), true
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
}

func parseUUID(raw string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(raw))
}

var errEmptyUpdate = errors.New("nothing to update; send a label or points")

func errUnknownKind(kind string) error {
	return fmt.Errorf("unknown material kind %q", kind)
}
