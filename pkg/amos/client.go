package amos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"amosync/pkg/config"
	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
	"amosync/pkg/ratelimit"
	"amosync/pkg/retry"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Options configures a Client
type Options struct {
	BaseURL string
	// Timeout bounds listing and record requests end to end. Archive
	// downloads have no overall deadline; they fail once headers or body
	// bytes stop arriving for Timeout.
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
	// Backoff overrides the per-error-type retry policy
	Backoff    retry.BackoffStrategy
	Limiter    ratelimit.Limiter
	HTTPClient *http.Client
	Logger     logger.Logger
	// OnResponse is called with the status code of every upstream response
	OnResponse func(statusCode int)
}

// Client talks to the AMOS web endpoints
type Client struct {
	httpClient *http.Client
	// streamClient downloads archives; it carries no overall timeout
	streamClient *http.Client
	idleTimeout  time.Duration
	endpoints    Endpoints
	userAgent    string
	limiter      ratelimit.Limiter
	breaker      *gobreaker.CircuitBreaker[*http.Response]
	retry        *retry.Config
	onResponse   func(statusCode int)
	logger       logger.Logger
}

// NewClient creates a Client. Zero options fall back to the public archive,
// a 60s timeout and no rate limiting.
func NewClient(opts Options) *Client {
	log := logger.OrDefault(opts.Logger).WithField("component", "amos")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	httpClient, streamClient := opts.HTTPClient, opts.HTTPClient
	if httpClient == nil {
		transport := newTransport(timeout)
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
		streamClient = &http.Client{Transport: transport}
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	retryCfg := &retry.Config{
		MaxAttempts: opts.MaxRetries + 1,
		Policy:      retry.NewErrorTypeBackoff(),
		Logger:      log,
	}
	if opts.Backoff != nil {
		retryCfg.Policy = nil
		retryCfg.Backoff = opts.Backoff
	}

	return &Client{
		httpClient:   httpClient,
		streamClient: streamClient,
		idleTimeout:  timeout,
		endpoints:    NewEndpoints(opts.BaseURL),
		userAgent:    opts.UserAgent,
		limiter:      limiter,
		breaker:      newBreaker(log),
		retry:        retryCfg,
		onResponse:   opts.OnResponse,
		logger:       log,
	}
}

// newTransport bounds each connection phase by timeout
func newTransport(timeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = timeout
	t.ResponseHeaderTimeout = timeout
	return t
}

// OptionsFromConfig maps the upstream and rate limit sections onto Options
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		BaseURL:    cfg.Upstream.BaseURL,
		Timeout:    cfg.Upstream.Timeout,
		UserAgent:  cfg.Upstream.UserAgent,
		MaxRetries: cfg.Upstream.MaxRetries,
		Limiter:    ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		Logger:     log,
	}
}

// newBreaker opens after a run of upstream failures. Missing resources are not failures.
func newBreaker(log logger.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "amos-upstream",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errs.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WarnWithFields("circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
}

// get performs a GET with rate limiting, circuit breaking and retries.
// On success the caller owns the response body. A streaming GET has no
// overall deadline and is cancelled when the server goes idle instead.
func (c *Client) get(ctx context.Context, url string, stream bool) (*http.Response, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*http.Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			resp, err := c.doRequest(ctx, url, stream)
			if err != nil {
				return nil, err
			}
			if err := c.checkResponseStatus(resp); err != nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return nil, err
			}
			return resp, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errs.Wrap(errs.ErrorTypeServerError, err, "upstream circuit open")
		}
		return resp, err
	}, c.retry)
}

func (c *Client) doRequest(ctx context.Context, url string, stream bool) (*http.Response, error) {
	client, reqCtx := c.httpClient, ctx
	var idle *idleBody
	if stream {
		client = c.streamClient
		reqCtx, idle = watchIdle(ctx, c.idleTimeout, url)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		if idle != nil {
			idle.Close()
		}
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if idle != nil {
			err = idle.fail(err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "GET %s", url)
	}
	if idle != nil {
		idle.attach(resp.Body)
		resp.Body = idle
	}

	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, time.Since(start))
	if c.onResponse != nil {
		c.onResponse(resp.StatusCode)
	}
	return resp, nil
}

// checkResponseStatus maps HTTP status codes to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	code := resp.StatusCode
	url := resp.Request.URL.String()

	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: url, Code: code}
	case code == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: code}
	case code >= 500:
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: url, Code: code}
	default:
		return &errs.Error{Type: errs.ErrorTypeUnknown, Message: fmt.Sprintf("unexpected status for %s", url), Code: code}
	}
}

func (c *Client) getBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.get(ctx, url, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}
	return body, nil
}

// ListCameras returns every camera with its position
func (c *Client) ListCameras(ctx context.Context) ([]Camera, error) {
	body, err := c.getBytes(ctx, c.endpoints.CameraList())
	if err != nil {
		return nil, err
	}

	cameras, skipped := parseCameraList(string(body))
	if len(skipped) > 0 {
		c.logger.WarnWithFields("skipped malformed camera list lines", map[string]interface{}{
			"skipped": len(skipped),
			"first":   skipped[0],
		})
	}
	return cameras, nil
}

// CameraInfo returns the typed record for a camera, or an error matching
// errs.ErrNotFound when the upstream has no record for it.
func (c *Client) CameraInfo(ctx context.Context, cameraID int) (*CameraRecord, error) {
	body, err := c.getBytes(ctx, c.endpoints.CameraInfo(cameraID))
	if err != nil {
		return nil, err
	}
	return parseCameraInfo(cameraID, body)
}

// ListTimestamps returns the image timestamps captured by a camera in one month
func (c *Client) ListTimestamps(ctx context.Context, cameraID, year, month int) ([]string, error) {
	body, err := c.getBytes(ctx, c.endpoints.MonthOfImages(cameraID, year, month))
	if err != nil {
		return nil, err
	}
	return parseTimestampList(body)
}

// GetImage downloads a single image by camera and timestamp
func (c *Client) GetImage(ctx context.Context, cameraID int, timestamp string) ([]byte, error) {
	if _, err := ParseTimestamp(timestamp); err != nil {
		return nil, err
	}

	body, err := c.getBytes(ctx, c.endpoints.Image(cameraID, timestamp))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &errs.Error{Type: errs.ErrorTypeNotFound, Message: fmt.Sprintf("camera %d image %s is empty", cameraID, timestamp)}
	}
	return body, nil
}

// SaveImage downloads a single image to path
func (c *Client) SaveImage(ctx context.Context, cameraID int, timestamp, path string) error {
	data, err := c.GetImage(ctx, cameraID, timestamp)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ArchiveStream is an open monthly archive download
type ArchiveStream struct {
	Body io.ReadCloser
	// Size is the advertised length, or -1 when unknown
	Size int64
	URL  string
}

// OpenArchive starts downloading a monthly archive. A missing archive
// yields an error matching errs.ErrArchiveAbsent.
func (c *Client) OpenArchive(ctx context.Context, cameraID, year, month int) (*ArchiveStream, error) {
	url := c.endpoints.Resolve(cameraID, year, month)

	resp, err := c.get(ctx, url, true)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.Wrap(errs.ErrorTypeArchiveAbsent, err, "no archive at %s", url)
		}
		return nil, err
	}
	if resp.ContentLength == 0 {
		resp.Body.Close()
		return nil, errs.New(errs.ErrorTypeArchiveAbsent, fmt.Sprintf("empty archive at %s", url))
	}

	return &ArchiveStream{Body: resp.Body, Size: resp.ContentLength, URL: url}, nil
}

// SaveArchive downloads a monthly archive to path, or to ./YYYY.MM.zip when path is empty.
// It returns the path written.
func (c *Client) SaveArchive(ctx context.Context, cameraID, year, month int, path string) (string, error) {
	if path == "" {
		path = "./" + ArchiveName(year, month)
	}

	stream, err := c.OpenArchive(ctx, cameraID, year, month)
	if err != nil {
		return "", err
	}
	defer stream.Body.Close()

	var written int64
	err = writeFileAtomic(path, func(w io.Writer) error {
		n, err := io.Copy(w, stream.Body)
		written = n
		return err
	})
	if err != nil {
		return "", err
	}
	if written == 0 {
		os.Remove(path)
		return "", errs.New(errs.ErrorTypeArchiveAbsent, fmt.Sprintf("empty archive at %s", stream.URL))
	}

	c.logger.InfoWithFields("archive saved", map[string]interface{}{
		"camera_id": cameraID,
		"year":      year,
		"month":     month,
		"path":      path,
		"bytes":     written,
	})
	return path, nil
}

// idleBody cancels an archive download once no bytes have arrived for idle.
// It is armed before the request is sent, so a stalled header wait counts too.
type idleBody struct {
	body    io.ReadCloser
	url     string
	idle    time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
	stalled atomic.Bool
}

func watchIdle(ctx context.Context, idle time.Duration, url string) (context.Context, *idleBody) {
	ctx, cancel := context.WithCancel(ctx)
	b := &idleBody{url: url, idle: idle, cancel: cancel}
	b.timer = time.AfterFunc(idle, func() {
		b.stalled.Store(true)
		cancel()
	})
	return ctx, b
}

func (b *idleBody) attach(body io.ReadCloser) {
	b.body = body
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 {
		b.timer.Reset(b.idle)
	}
	if err != nil && err != io.EOF {
		return n, b.fail(err)
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	b.cancel()
	if b.body == nil {
		return nil
	}
	return b.body.Close()
}

// fail releases the request and names a stall as the cause of err
func (b *idleBody) fail(err error) error {
	stalled := b.stalled.Load()
	if b.body == nil {
		b.Close()
	}
	if !stalled {
		return err
	}
	return errs.Wrap(errs.ErrorTypeNetwork, err, "no data from %s for %s", b.url, b.idle)
}

// writeFileAtomic writes through a temp file in the target directory and renames it into place
func writeFileAtomic(path string, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
