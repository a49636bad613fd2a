// Package fetch downloads source images into a local working directory.
// It supports http(s) URLs, s3://bucket/key locators and local files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/maauso/zoomclip-api/internal/storage"
)

// Static errors for fetch operations.
var (
	// ErrEmptyLocator is returned when no locator is given.
	ErrEmptyLocator = errors.New("fetch: locator is empty")
	// ErrUnsupportedScheme is returned for locators no backend can serve.
	ErrUnsupportedScheme = errors.New("fetch: unsupported locator scheme")
	// ErrNotFound is returned when the source does not exist.
	ErrNotFound = errors.New("fetch: source not found")
	// ErrUnreachable is returned when the source host cannot be reached.
	ErrUnreachable = errors.New("fetch: source unreachable")
	// ErrUnexpectedStatus is returned for non-2xx HTTP responses other than 404/410.
	ErrUnexpectedStatus = errors.New("fetch: unexpected HTTP status")
	// ErrLocalSourceDisabled is returned for file:// URLs and bare paths when
	// the client only serves remote sources.
	ErrLocalSourceDisabled = errors.New("fetch: local sources are disabled")
)

// ObjectGetter opens objects from an S3-compatible store.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Client fetches source images into a destination directory.
type Client struct {
	httpClient *http.Client
	objects    ObjectGetter
	userAgent  string
	allowLocal bool
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(fc *Client) {
		fc.httpClient = c
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(fc *Client) {
		fc.httpClient = &http.Client{Timeout: d}
	}
}

// WithObjectGetter enables s3:// locators.
func WithObjectGetter(g ObjectGetter) ClientOption {
	return func(fc *Client) {
		fc.objects = g
	}
}

// WithUserAgent sets the User-Agent header sent on HTTP downloads.
func WithUserAgent(ua string) ClientOption {
	return func(fc *Client) {
		fc.userAgent = ua
	}
}

// WithoutLocalSources rejects file:// URLs and bare paths. Clients serving
// untrusted callers must use it.
func WithoutLocalSources() ClientOption {
	return func(fc *Client) {
		fc.allowLocal = false
	}
}

// NewClient creates a new fetch Client. Local sources are allowed unless
// WithoutLocalSources is given.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		userAgent:  "zoomclip/1.0",
		allowLocal: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves locator into destDir and returns the local file path.
// The caller owns the returned file.
func (c *Client) Fetch(ctx context.Context, locator, destDir string) (string, error) {
	if strings.TrimSpace(locator) == "" {
		return "", ErrEmptyLocator
	}

	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare paths, including Windows drive letters, are local files.
		return c.fetchLocal(ctx, locator, destDir)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return c.fetchHTTP(ctx, u, destDir)
	case "s3":
		return c.fetchS3(ctx, u, destDir)
	case "file":
		return c.fetchLocal(ctx, u.Path, destDir)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// fetchHTTP downloads an http(s) URL.
func (c *Client) fetchHTTP(ctx context.Context, u *url.URL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("fetch cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", fmt.Errorf("%w: %s returned %d", ErrNotFound, u.Redacted(), resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, u.Redacted(), resp.StatusCode)
	}

	return storage.WriteTemp(ctx, destDir, nameHint(path.Base(u.Path), resp.Header.Get("Content-Type")), resp.Body)
}

// fetchS3 downloads s3://bucket/key through the configured ObjectGetter.
func (c *Client) fetchS3(ctx context.Context, u *url.URL, destDir string) (string, error) {
	if c.objects == nil {
		return "", fmt.Errorf("%w: s3 storage is not configured", ErrUnsupportedScheme)
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", fmt.Errorf("%w: s3 locator needs bucket and key", ErrNotFound)
	}

	body, err := c.objects.GetObject(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return "", fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer func() { _ = body.Close() }()

	return storage.WriteTemp(ctx, destDir, path.Base(key), body)
}

// fetchLocal copies a local file so the caller may delete its copy freely.
func (c *Client) fetchLocal(ctx context.Context, src, destDir string) (string, error) {
	if !c.allowLocal {
		return "", fmt.Errorf("%w: %s", ErrLocalSourceDisabled, src)
	}

	f, err := os.Open(src) // #nosec G304 - locator is supplied by the operator
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, src)
		}
		return "", fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = f.Close() }()

	return storage.WriteTemp(ctx, destDir, filepath.Base(src), f)
}

// nameHint returns a file name with an image extension when the URL path
// lacks one, using the response content type.
func nameHint(base, contentType string) string {
	if base == "" || base == "/" || base == "." {
		base = "image"
	}
	if path.Ext(base) != "" {
		return base
	}

	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return base + ".jpg"
	case "image/png":
		return base + ".png"
	case "image/gif":
		return base + ".gif"
	case "image/webp":
		return base + ".webp"
	case "image/bmp":
		return base + ".bmp"
	case "image/tiff":
		return base + ".tiff"
	default:
		return base
	}
}
