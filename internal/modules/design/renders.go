package design

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/platform/apierr"
)

// SubmitRender admits the project's pending edits and renders them in the
// background. Progress is reported through RenderStatus and the project channel.
func (u Usecases) SubmitRender(ctx context.Context, ownerUserID, projectID uuid.UUID) (render.RunStatus, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return render.RunStatus{}, err
	}
	st, err := u.deps.Renders.Start(ctx, projectID, ownerUserID)
	if err != nil {
		return render.RunStatus{}, renderErr(err)
	}
	u.deps.Log.Info("Render submitted", "project_id", projectID, "run_id", st.RunID, "edit_count", st.EditCount)
	return st, nil
}

func (u Usecases) RenderStatus(ctx context.Context, ownerUserID, projectID uuid.UUID) (render.RunStatus, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return render.RunStatus{}, err
	}
	return u.deps.Renders.Status(projectID), nil
}

// CancelRender abandons the awaited result; the pending edits stay queued.
func (u Usecases) CancelRender(ctx context.Context, ownerUserID, projectID uuid.UUID) (render.RunStatus, error) {
	if _, err := u.project(ctx, ownerUserID, projectID); err != nil {
		return render.RunStatus{}, err
	}
	st, err := u.deps.Renders.Cancel(projectID)
	if err != nil {
		return render.RunStatus{}, renderErr(err)
	}
	return st, nil
}

func renderErr(err error) error {
	if errors.Is(err, render.ErrRenderInFlight) {
		return apierr.WithSuggestion(http.StatusConflict, "render_in_flight",
			"Wait for the current render to finish or cancel it.", err)
	}
	if errors.Is(err, render.ErrNotRunning) {
		return apierr.Conflict("render_not_running", err)
	}
	var re *render.Error
	if errors.As(err, &re) {
		status := http.StatusInternalServerError
		switch re.Kind {
		case render.KindValidation, render.KindImageLoad:
			status = http.StatusUnprocessableEntity
		case render.KindSafety:
			status = http.StatusBadRequest
		case render.KindTimeout:
			status = http.StatusGatewayTimeout
		}
		return apierr.WithSuggestion(status, "render_"+string(re.Kind), re.Suggestion(), err)
	}
	return err
}
