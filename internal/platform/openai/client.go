package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/roomviz-backend/internal/platform/ctxutil"
	"github.com/yungbote/roomviz-backend/internal/platform/envutil"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type ImageInput struct {
	// Name is the multipart filename; the model sees images in slice order.
	Name     string
	Bytes    []byte
	MimeType string
}

type EditRequest struct {
	Images     []ImageInput
	Prompt     string
	Size       string
	Fidelity   string
	Model      string
	Background string
	OutputFmt  string
	Moderation string
}

type EditResult struct {
	Bytes         []byte
	MimeType      string
	RevisedPrompt string
}

// RefusalError is returned when the service declines the request on policy grounds.
type RefusalError struct {
	Code    string
	Message string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("openai refused image edit (%s): %s", e.Code, e.Message)
}

// ErrNoImage is returned when a 2xx response carries neither b64 data nor a URL.
var ErrNoImage = errors.New("image response missing b64_json and url")

type Client interface {
	EditImage(ctx context.Context, req EditRequest) (EditResult, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	imageModel string
	imageSize  string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := envutil.String("OPENAI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(envutil.String("OPENAI_BASE_URL", "https://api.openai.com"), "/")

	// The render orchestrator owns the deadline; this only guards a stuck connection.
	timeout := envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 180*time.Second)

	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		imageModel: envutil.String("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		imageSize:  envutil.String("OPENAI_IMAGE_SIZE", "auto"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// NewClientWithHTTP is used by tests and the CLI to point at a custom endpoint.
func NewClientWithHTTP(log *logger.Logger, baseURL, apiKey, model string, hc *http.Client) Client {
	if hc == nil {
		hc = &http.Client{Timeout: 180 * time.Second}
	}
	if model == "" {
		model = "gpt-image-1"
	}
	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		imageModel: model,
		imageSize:  "auto",
		httpClient: hc,
	}
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type imagesResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// SizeForAspect picks the closest supported output size for a width/height ratio.
func SizeForAspect(aspect float64) string {
	switch {
	case aspect <= 0:
		return "auto"
	case aspect >= 1.2:
		return "1536x1024"
	case aspect <= 0.83:
		return "1024x1536"
	default:
		return "1024x1024"
	}
}

func (c *client) EditImage(ctx context.Context, req EditRequest) (EditResult, error) {
	var out EditResult
	if len(req.Images) == 0 {
		return out, errors.New("at least one image required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return out, errors.New("edit prompt required")
	}
	model := req.Model
	if model == "" {
		model = c.imageModel
	}
	size := req.Size
	if size == "" {
		size = c.imageSize
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"model":          model,
		"prompt":         req.Prompt,
		"n":              "1",
		"size":           size,
		"input_fidelity": req.Fidelity,
		"background":     req.Background,
		"output_format":  req.OutputFmt,
		"moderation":     req.Moderation,
	}
	for _, k := range []string{"model", "prompt", "n", "size", "input_fidelity", "background", "output_format", "moderation"} {
		if v := strings.TrimSpace(fields[k]); v != "" {
			if err := w.WriteField(k, v); err != nil {
				return out, err
			}
		}
	}
	for i, img := range req.Images {
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("image_%d.png", i+1)
		}
		mt := img.MimeType
		if mt == "" {
			mt = http.DetectContentType(img.Bytes)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image[]"; filename="%s"`, name))
		h.Set("Content-Type", mt)
		part, err := w.CreatePart(h)
		if err != nil {
			return out, err
		}
		if _, err := part.Write(img.Bytes); err != nil {
			return out, err
		}
	}
	if err := w.Close(); err != nil {
		return out, err
	}

	start := time.Now()
	var resp imagesResponse
	err := c.doMultipart(ctx, http.MethodPost, "/v1/images/edits", buf.Bytes(), w.FormDataContentType(), &resp)
	if err != nil {
		c.log.Warn("OpenAI image edit failed",
			"model", model,
			"images", len(req.Images),
			"duration", time.Since(start).String(),
			"error", err.Error(),
		)
		return out, err
	}
	c.log.Info("OpenAI image edit completed",
		"model", model,
		"images", len(req.Images),
		"duration", time.Since(start).String(),
	)

	if len(resp.Data) == 0 {
		return out, ErrNoImage
	}
	item := resp.Data[0]
	out.RevisedPrompt = strings.TrimSpace(item.RevisedPrompt)
	if b64 := strings.TrimSpace(item.B64JSON); b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || len(raw) == 0 {
			return out, fmt.Errorf("decode image base64: %w", err)
		}
		out.Bytes = raw
		out.MimeType = http.DetectContentType(raw)
		return out, nil
	}
	if u := strings.TrimSpace(item.URL); u != "" {
		b, ct, err := c.downloadBytes(ctx, u)
		if err != nil {
			return out, fmt.Errorf("download edited image: %w", err)
		}
		out.Bytes = b
		out.MimeType = strings.TrimSpace(strings.Split(ct, ";")[0])
		if out.MimeType == "" {
			out.MimeType = "image/png"
		}
		return out, nil
	}
	return out, ErrNoImage
}

// doMultipart issues exactly one request. Image edits are billed per call, so
// nothing here retries; resubmission is a user decision.
func (c *client) doMultipart(ctx context.Context, method, path string, payload []byte, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if refusal := refusalFromBody(resp.StatusCode, raw); refusal != nil {
			return refusal
		}
		return &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("openai decode error: %w", err)
	}
	return nil
}

func refusalFromBody(status int, raw []byte) *RefusalError {
	if status != http.StatusBadRequest {
		return nil
	}
	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	code := strings.ToLower(strings.TrimSpace(body.Error.Code))
	switch code {
	case "moderation_blocked", "content_policy_violation", "safety_violation":
		return &RefusalError{Code: code, Message: body.Error.Message}
	}
	if strings.Contains(strings.ToLower(body.Error.Message), "safety system") {
		return &RefusalError{Code: "safety_system", Message: body.Error.Message}
	}
	return nil
}

func (c *client) downloadBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	// Signed blob URLs break if an unrelated Authorization header is sent.
	if shouldAttachOpenAIAuth(c.baseURL, rawURL) {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, "", readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, strings.TrimSpace(resp.Header.Get("Content-Type")), nil
}

func shouldAttachOpenAIAuth(baseURL, rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u == nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if bu, err := url.Parse(strings.TrimSpace(baseURL)); err == nil && bu != nil {
		if baseHost := strings.ToLower(bu.Hostname()); baseHost != "" && host == baseHost {
			return true
		}
	}
	return host == "openai.com" || strings.HasSuffix(host, ".openai.com") ||
		host == "openai.azure.com" || strings.HasSuffix(host, ".openai.azure.com")
}
