package openai

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/yungbote/roomviz-backend/internal/platform/httpx"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

func TestEditImageSendsImagesInOrder(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	var names []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/edits" {
			t.Errorf("path: want=/v1/images/edits got=%s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("auth: want=%q got=%q", "Bearer k", got)
		}
		mr, err := r.MultipartReader()
		if err != nil {
			t.Fatalf("multipart: %v", err)
		}
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("next part: %v", err)
			}
			if p.FormName() == "image[]" {
				names = append(names, p.FileName())
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":[{"b64_json":"`+base64.StdEncoding.EncodeToString(png)+`"}]}`)
	}))
	defer srv.Close()

	c := NewClientWithHTTP(logger.Nop(), srv.URL, "k", "", srv.Client())
	res, err := c.EditImage(t.Context(), EditRequest{
		Prompt: "paint the wall",
		Images: []ImageInput{
			{Name: "base.png", Bytes: png},
			{Name: "walls.png", Bytes: png},
			{Name: "floor_ref.png", Bytes: png},
		},
	})
	if err != nil {
		t.Fatalf("EditImage: %v", err)
	}
	if string(res.Bytes) != string(png) {
		t.Fatalf("bytes mismatch")
	}
	want := "base.png,walls.png,floor_ref.png"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("order: want=%q got=%q", want, got)
	}
}

func TestEditImageMapsModerationToRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Your request was rejected by the safety system.","code":"moderation_blocked"}}`)
	}))
	defer srv.Close()

	c := NewClientWithHTTP(logger.Nop(), srv.URL, "k", "", srv.Client())
	_, err := c.EditImage(t.Context(), EditRequest{Prompt: "x", Images: []ImageInput{{Bytes: []byte("x")}}})
	var refusal *RefusalError
	if !errors.As(err, &refusal) {
		t.Fatalf("err: want *RefusalError got=%v", err)
	}
	if refusal.Code != "moderation_blocked" {
		t.Fatalf("code: want=%q got=%q", "moderation_blocked", refusal.Code)
	}
}

func TestEditImageDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClientWithHTTP(logger.Nop(), srv.URL, "k", "", srv.Client())
	_, err := c.EditImage(t.Context(), EditRequest{Prompt: "x", Images: []ImageInput{{Bytes: []byte("x")}}})
	if httpx.StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("status: want=502 got=%d (%v)", httpx.StatusCode(err), err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls: want=1 got=%d", calls.Load())
	}
}

func TestEditImageEmptyDataIsNoImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	c := NewClientWithHTTP(logger.Nop(), srv.URL, "k", "", srv.Client())
	_, err := c.EditImage(t.Context(), EditRequest{Prompt: "x", Images: []ImageInput{{Bytes: []byte("x")}}})
	if !errors.Is(err, ErrNoImage) {
		t.Fatalf("err: want ErrNoImage got=%v", err)
	}
}

func TestSizeForAspect(t *testing.T) {
	cases := map[float64]string{
		1920.0 / 1080.0: "1536x1024",
		1.0:             "1024x1024",
		1080.0 / 1920.0: "1024x1536",
	}
	for aspect, want := range cases {
		if got := SizeForAspect(aspect); got != want {
			t.Fatalf("aspect %.3f: want=%q got=%q", aspect, want, got)
		}
	}
}
