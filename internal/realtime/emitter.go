package realtime

import (
	"context"

	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type Publisher interface {
	Publish(ctx context.Context, msg SSEMessage) error
}

// Emitter routes messages through the cross-instance bus when one is
// configured (its forwarder broadcasts locally) and straight to the hub otherwise.
type Emitter struct {
	log *logger.Logger
	hub *SSEHub
	pub Publisher
}

func NewEmitter(log *logger.Logger, hub *SSEHub, pub Publisher) *Emitter {
	return &Emitter{log: log.With("component", "SSEEmitter"), hub: hub, pub: pub}
}

func (e *Emitter) Emit(ctx context.Context, msg SSEMessage) {
	if e == nil {
		return
	}
	if e.pub != nil {
		err := e.pub.Publish(ctx, msg)
		if err == nil {
			return
		}
		e.log.Warn("SSE bus publish failed; broadcasting locally", "event", msg.Event, "error", err)
	}
	if e.hub != nil {
		e.hub.Broadcast(msg)
	}
}
