package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/roomviz-backend/internal/platform/apierr"
)

type APIError struct {
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError renders any error, honoring the status, code and suggestion
// of an *apierr.Error. Anything else is a 500 with a generic message.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae == nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	msg := ae.Error()
	if ae.Code == "internal_error" {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(ae.Status, ErrorEnvelope{
		Error: APIError{
			Message:    msg,
			Code:       ae.Code,
			Suggestion: ae.Suggestion,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
