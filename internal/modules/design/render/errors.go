package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/roomviz-backend/internal/modules/design/marker"
	"github.com/yungbote/roomviz-backend/internal/platform/httpx"
)

type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindImageLoad   ErrorKind = "image_load"
	KindSafety      ErrorKind = "safety"
	KindTimeout     ErrorKind = "timeout"
	KindUnknown     ErrorKind = "unknown"
	KindPersistence ErrorKind = "persistence"
	KindBookkeeping ErrorKind = "bookkeeping"
)

var (
	ErrRenderInFlight = errors.New("a render is already running for this project")
	ErrCanceled       = errors.New("render canceled")
	ErrNotRunning     = errors.New("no render is running for this project")
	// ErrNoImage is returned by editors whose response held no image data.
	ErrNoImage = errors.New("edit response carried no image")
)

// RefusalError is an explicit content-policy decline from the edit service.
type RefusalError struct {
	Code    string
	Message string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("edit refused (%s): %s", e.Code, e.Message)
}

type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("render %s: %s: %v", e.Kind, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("render %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("render %s: %s", e.Kind, e.Reason)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Suggestion() string { return Suggestion(e.Kind) }

var suggestions = map[ErrorKind]string{
	KindValidation:  "Redraw the marked area so it is larger and fully inside the photo.",
	KindImageLoad:   "The photo could not be loaded. Upload it again and retry.",
	KindSafety:      "The request was declined by the content filter. Try a different color, material or area.",
	KindTimeout:     "The edit took too long. Try fewer changes at once.",
	KindUnknown:     "Something went wrong while generating the image. Please try again.",
	KindPersistence: "The new image could not be saved. Please submit the edit again.",
}

// Suggestion is the user-facing hint for a failure kind. Bookkeeping
// failures are never shown, so they have none.
func Suggestion(kind ErrorKind) string {
	return suggestions[kind]
}

func newError(kind ErrorKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf classifies any error returned along the render path.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	var refusal *RefusalError
	switch {
	case errors.As(err, &refusal):
		return KindSafety
	case marker.IsImageLoadError(err):
		return KindImageLoad
	case errors.Is(err, context.DeadlineExceeded), httpx.IsTimeout(err):
		return KindTimeout
	default:
		return KindUnknown
	}
}

func classify(err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return newError(KindOf(err), "", err)
}
