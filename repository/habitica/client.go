package habitica

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fastygo/questboard/domain"
	"github.com/fastygo/questboard/repository"
)

const (
	DefaultBaseURL       = "https://habitica.com"
	DefaultTimeout       = 15 * time.Second
	DefaultRatePerMinute = 30
	DefaultBurst         = 5
)

// Config carries the credentials and transport limits of the remote API.
type Config struct {
	BaseURL       string
	UserID        string
	APIKey        string
	ClientID      string
	Timeout       time.Duration
	RatePerMinute int
	Burst         int
}

// Option customizes a Client.
type Option func(*Client)

// WithDialer replaces the network dialer; tests use it with an in-memory listener.
func WithDialer(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

// WithLimiter replaces the outbound rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// Client talks to the remote task service over fasthttp. Every call first waits on the
// rate limiter, so callers exceeding the allowed rate are suspended transparently.
type Client struct {
	cfg     Config
	http    *fasthttp.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = DefaultRatePerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:                "questboard",
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.Burst),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) FetchUser(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, fasthttp.MethodGet, "/api/v3/user", nil, &out)
	return out, err
}

func (c *Client) FetchTasks(ctx context.Context) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := c.do(ctx, fasthttp.MethodGet, "/api/v3/tasks/user", nil, &out)
	return out, err
}

func (c *Client) FetchTags(ctx context.Context) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := c.do(ctx, fasthttp.MethodGet, "/api/v3/tags", nil, &out)
	return out, err
}

func (c *Client) FetchParty(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, fasthttp.MethodGet, "/api/v3/groups/party", nil, &out)
	return out, err
}

func (c *Client) FetchContent(ctx context.Context) ([]byte, error) {
	var out json.RawMessage
	if err := c.do(ctx, fasthttp.MethodGet, "/api/v3/content", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ScoreTask(ctx context.Context, taskID string, direction domain.Direction) (*domain.ScoreResult, error) {
	if taskID == "" || !direction.IsValid() {
		return nil, domain.ErrInvalidPayload
	}
	var out domain.ScoreResult
	path := "/api/v3/tasks/" + url.PathEscape(taskID) + "/score/" + string(direction)
	if err := c.do(ctx, fasthttp.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleSleep flips the sleeping flag and returns the new value.
func (c *Client) ToggleSleep(ctx context.Context) (bool, error) {
	var sleeping bool
	err := c.do(ctx, fasthttp.MethodPost, "/api/v3/user/sleep", nil, &sleeping)
	return sleeping, err
}

func (c *Client) LeaveChallenge(ctx context.Context, challengeID string, keep domain.KeepPolicy) error {
	if challengeID == "" || !keep.IsValid() {
		return domain.ErrInvalidPayload
	}
	body := map[string]string{"keep": string(keep)}
	return c.do(ctx, fasthttp.MethodPost, "/api/v3/challenges/"+url.PathEscape(challengeID)+"/leave", body, nil)
}

func (c *Client) DeleteTag(ctx context.Context, tagID string) error {
	if tagID == "" {
		return domain.ErrInvalidPayload
	}
	return c.do(ctx, fasthttp.MethodDelete, "/api/v3/tags/"+url.PathEscape(tagID), nil, nil)
}

// Status pings the service status endpoint.
func (c *Client) Status(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, fasthttp.MethodGet, "/api/v3/status", nil, &out); err != nil {
		return err
	}
	if out.Status != "up" {
		return domain.RemoteError(http.StatusServiceUnavailable, "service status "+out.Status)
	}
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.WrapError(domain.ErrCodeTransientNetwork, "rate limit wait", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("x-api-user", c.cfg.UserID)
	req.Header.Set("x-api-key", c.cfg.APIKey)
	if c.cfg.ClientID != "" {
		req.Header.Set("x-client", c.cfg.ClientID)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "encode request", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	started := time.Now()
	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		c.logger.Warn("remote request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return classifyTransport(err)
	}

	status := resp.StatusCode()
	c.logger.Debug("remote request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(started)))

	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)
	if status < 200 || status >= 300 {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return domain.RemoteError(status, msg)
	}
	if decodeErr != nil {
		return domain.WrapError(domain.ErrCodeValidation, "decode response envelope", decodeErr)
	}
	if !env.Success {
		return domain.RemoteError(status, firstNonEmpty(env.Message, env.Error, "request unsuccessful"))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return domain.WrapError(domain.ErrCodeValidation, "decode response data", err)
	}
	return nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.cfg.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}

func classifyTransport(err error) error {
	switch {
	case errors.Is(err, fasthttp.ErrTimeout), errors.Is(err, fasthttp.ErrDialTimeout):
		return domain.WrapError(domain.ErrCodeTransientNetwork, "request timed out", err)
	default:
		return domain.WrapError(domain.ErrCodeTransientNetwork, "connection failed", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ repository.RemoteRepository = (*Client)(nil)
