package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/roomviz-backend/internal/modules/design/editplan"
	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
	"github.com/yungbote/roomviz-backend/internal/platform/openai"
)

type openAIEditor struct {
	log    *logger.Logger
	client openai.Client
	model  string
}

// NewOpenAIEditor adapts the OpenAI images client to the render pipeline.
func NewOpenAIEditor(log *logger.Logger, client openai.Client, model string) render.Editor {
	if model == "" {
		model = "gpt-image-1"
	}
	return &openAIEditor{log: log.With("service", "OpenAIEditor"), client: client, model: model}
}

func (e *openAIEditor) Model() string { return e.model }

func (e *openAIEditor) Edit(ctx context.Context, req editplan.Request) (render.Output, error) {
	images := make([]openai.ImageInput, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, openai.ImageInput{Name: img.Name, Bytes: img.Bytes, MimeType: img.MimeType})
	}
	res, err := e.client.EditImage(ctx, openai.EditRequest{
		Images:    images,
		Prompt:    req.Instruction,
		Model:     e.model,
		Size:      openai.SizeForAspect(req.Params.AspectRatio),
		Fidelity:  fidelityFor(req.Params.Temperature),
		OutputFmt: "png",
	})
	if err != nil {
		var refusal *openai.RefusalError
		switch {
		case errors.As(err, &refusal):
			return render.Output{}, &render.RefusalError{Code: refusal.Code, Message: refusal.Message}
		case errors.Is(err, openai.ErrNoImage):
			return render.Output{}, fmt.Errorf("%w: %v", render.ErrNoImage, err)
		}
		return render.Output{}, err
	}
	return render.Output{Bytes: res.Bytes, MimeType: res.MimeType}, nil
}

// The images endpoint has no temperature; low temperature maps to high input fidelity.
func fidelityFor(temperature float64) string {
	if temperature <= 0.5 {
		return "high"
	}
	return "low"
}
