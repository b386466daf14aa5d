package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yungbote/roomviz-backend/internal/platform/envutil"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

const defaultMaxBytes = 25 << 20

var (
	ErrUnsupportedScheme = errors.New("image url must be http or https")
	ErrBlockedAddress    = errors.New("image host resolves to a non-public address")
)

// Fetcher downloads product and reference images by URL. Unlike the edit call
// these are plain GETs, so transient failures are retried.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: http %d", e.URL, e.StatusCode)
}

func (e *HTTPStatusError) HTTPStatusCode() int { return e.StatusCode }

type fetcher struct {
	log      *logger.Logger
	http     *resty.Client
	maxBytes int64
}

// New returns a fetcher that only dials public addresses. Set
// IMAGE_FETCH_ALLOW_PRIVATE for local development against emulators.
func New(log *logger.Logger) Fetcher {
	rc := resty.New()
	if !envutil.Bool("IMAGE_FETCH_ALLOW_PRIVATE", false) {
		rc.SetTransport(PublicTransport())
	}
	return NewWithClient(log, rc, int64(envutil.Int("IMAGE_FETCH_MAX_BYTES", defaultMaxBytes)))
}

// PublicTransport refuses connections to loopback, private, link-local and
// unspecified addresses. The check runs on the dialed IP, so it also covers
// redirects and hostnames that resolve inward.
func PublicTransport() *http.Transport {
	d := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   refusePrivate,
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.DialContext = d.DialContext
	return t
}

func refusePrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !Public(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

func Public(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.IsUnspecified()
}

func NewWithClient(log *logger.Logger, rc *resty.Client, maxBytes int64) Fetcher {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	rc.
		SetTimeout(envutil.Seconds("IMAGE_FETCH_TIMEOUT_SECONDS", 30*time.Second)).
		SetRetryCount(envutil.Int("IMAGE_FETCH_RETRIES", 2)).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Accept", "image/*").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, ErrBlockedAddress)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	return &fetcher{log: log.With("service", "ImageFetcher"), http: rc, maxBytes: maxBytes}
}

func (f *fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, "", fmt.Errorf("image url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("parse image url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("image url %q has no host", rawURL)
	}
	resp, err := f.http.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		f.log.Warn("Image fetch failed", "url", rawURL, "error", err.Error())
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.IsError() {
		return nil, "", &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode()}
	}
	body := resp.Body()
	if int64(len(body)) > f.maxBytes {
		return nil, "", fmt.Errorf("fetch %s: image exceeds %d bytes", rawURL, f.maxBytes)
	}
	ct := strings.TrimSpace(strings.Split(resp.Header().Get("Content-Type"), ";")[0])
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(body)
	}
	return body, ct, nil
}
