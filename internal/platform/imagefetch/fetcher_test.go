package imagefetch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-resty/resty/v2"

	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n"))
	}))
	defer srv.Close()

	f := NewWithClient(logger.Nop(), resty.New(), 0)
	body, ct, err := f.Fetch(t.Context(), srv.URL+"/oak.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ct != "image/png" || len(body) != 8 {
		t.Fatalf("result: ct=%q len=%d", ct, len(body))
	}
	if calls.Load() != 2 {
		t.Fatalf("calls: want=2 got=%d", calls.Load())
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewWithClient(logger.Nop(), resty.New(), 0)
	_, _, err := f.Fetch(t.Context(), srv.URL+"/missing.png")
	var se *HTTPStatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("err: want 404 HTTPStatusError got=%v", err)
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	f := NewWithClient(logger.Nop(), resty.New(), 16)
	if _, _, err := f.Fetch(t.Context(), srv.URL); err == nil {
		t.Fatalf("want error for oversized body")
	}
}

func TestFetchRejectsNonHTTPSchemes(t *testing.T) {
	f := NewWithClient(logger.Nop(), resty.New(), 0)
	for _, u := range []string{"file:///etc/passwd", "gopher://example.com/x", "ftp://example.com/a.png"} {
		if _, _, err := f.Fetch(t.Context(), u); !errors.Is(err, ErrUnsupportedScheme) {
			t.Fatalf("%s: want ErrUnsupportedScheme got=%v", u, err)
		}
	}
}

func TestPublicTransportRefusesLoopback(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("<html>admin</html>"))
	}))
	defer srv.Close()

	f := NewWithClient(logger.Nop(), resty.New().SetTransport(PublicTransport()), 0)
	_, _, err := f.Fetch(t.Context(), srv.URL+"/admin")
	if err == nil || !strings.Contains(err.Error(), "non-public address") {
		t.Fatalf("err: want blocked address got=%v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("server reached %d times", calls.Load())
	}
}

func TestPublic(t *testing.T) {
	cases := map[string]bool{
		"8.8.8.8":          true,
		"2606:4700::1111":  true,
		"127.0.0.1":        false,
		"10.0.0.1":         false,
		"172.16.4.2":       false,
		"192.168.1.10":     false,
		"169.254.169.254":  false,
		"0.0.0.0":          false,
		"::1":              false,
		"fe80::1":          false,
		"fd00::1":          false,
		"::ffff:127.0.0.1": false,
	}
	for s, want := range cases {
		if got := Public(netip.MustParseAddr(s)); got != want {
			t.Fatalf("Public(%s): want=%v got=%v", s, want, got)
		}
	}
}
