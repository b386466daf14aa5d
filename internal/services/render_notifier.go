package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/realtime"
)

// ProjectNotifier pushes render and version events to a project's viewers.
type ProjectNotifier struct {
	emitter *realtime.Emitter
}

func NewProjectNotifier(emitter *realtime.Emitter) *ProjectNotifier {
	return &ProjectNotifier{emitter: emitter}
}

func (n *ProjectNotifier) RenderStatus(ctx context.Context, st render.RunStatus) {
	n.emitter.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.ProjectChannel(st.ProjectID),
		Event:   EventFor(st),
		Data:    st,
	})
}

func (n *ProjectNotifier) VersionChanged(ctx context.Context, projectID, versionID uuid.UUID) {
	n.emitter.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.ProjectChannel(projectID),
		Event:   realtime.SSEEventVersionChanged,
		Data:    map[string]any{"project_id": projectID, "version_id": versionID},
	})
}

func EventFor(st render.RunStatus) realtime.SSEEvent {
	switch st.State {
	case render.StatePreparing:
		return realtime.SSEEventRenderStarted
	case render.StateSucceeded:
		return realtime.SSEEventRenderSucceeded
	case render.StateFailed:
		return realtime.SSEEventRenderFailed
	case render.StateIdle:
		if st.Canceled {
			return realtime.SSEEventRenderCanceled
		}
	}
	return realtime.SSEEventRenderProgress
}
