package habitica

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/fasthttp/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"golang.org/x/time/rate"

	"github.com/fastygo/questboard/domain"
)

func newTestClient(t *testing.T, r *router.Router, opts ...Option) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: r.Handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	cfg := Config{
		BaseURL:       "http://habitica.test/",
		UserID:        "user-1",
		APIKey:        "secret",
		ClientID:      "user-1-questboard",
		Timeout:       2 * time.Second,
		RatePerMinute: 60000,
		Burst:         100,
	}
	opts = append([]Option{WithDialer(func(string) (net.Conn, error) { return ln.Dial() })}, opts...)
	return New(cfg, nil, opts...)
}

func writeEnvelope(ctx *fasthttp.RequestCtx, status int, success bool, data interface{}, message string) {
	body, _ := json.Marshal(map[string]interface{}{
		"success": success,
		"data":    data,
		"message": message,
	})
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func TestFetchUserSendsCredentials(t *testing.T) {
	r := router.New()
	r.GET("/api/v3/user", func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Request.Header.Peek("x-api-user")) != "user-1" ||
			string(ctx.Request.Header.Peek("x-api-key")) != "secret" ||
			string(ctx.Request.Header.Peek("x-client")) != "user-1-questboard" {
			writeEnvelope(ctx, fasthttp.StatusUnauthorized, false, nil, "missing credentials")
			return
		}
		writeEnvelope(ctx, fasthttp.StatusOK, true, map[string]interface{}{"_id": "user-1", "stats": map[string]interface{}{"lvl": 12}}, "")
	})
	c := newTestClient(t, r)

	raw, err := c.FetchUser(context.Background())
	require.NoError(t, err)
	u, err := domain.ParseUser(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.ID)
	assert.Equal(t, 12, u.Level)
}

func TestFetchTasksReturnsRawRecords(t *testing.T) {
	r := router.New()
	r.GET("/api/v3/tasks/user", func(ctx *fasthttp.RequestCtx) {
		writeEnvelope(ctx, fasthttp.StatusOK, true, []map[string]interface{}{
			{"id": "a", "type": "habit", "text": "Stretch"},
			{"id": "b", "type": "todo", "text": "Write report"},
		}, "")
	})
	c := newTestClient(t, r)

	records, err := c.FetchTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"id":"b","type":"todo","text":"Write report"}`, string(records[1]))
}

func TestNon2xxBecomesRemoteError(t *testing.T) {
	r := router.New()
	r.GET("/api/v3/groups/party", func(ctx *fasthttp.RequestCtx) {
		writeEnvelope(ctx, fasthttp.StatusNotFound, false, nil, "Group not found.")
	})
	r.GET("/api/v3/tags", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
		ctx.SetBodyString("<html>bad gateway</html>")
	})
	c := newTestClient(t, r)

	_, err := c.FetchParty(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	var dErr *domain.Error
	require.True(t, errors.As(err, &dErr))
	assert.Equal(t, domain.ErrCodeRemoteService, dErr.Code)
	assert.Equal(t, "Group not found.", dErr.Message)

	_, err = c.FetchTags(context.Background())
	require.True(t, errors.As(err, &dErr))
	assert.Equal(t, fasthttp.StatusBadGateway, dErr.StatusCode)
	assert.Equal(t, "Bad Gateway", dErr.Message)
	assert.False(t, domain.IsTransient(err))
}

func TestUnsuccessfulEnvelope(t *testing.T) {
	r := router.New()
	r.GET("/api/v3/content", func(ctx *fasthttp.RequestCtx) {
		writeEnvelope(ctx, fasthttp.StatusOK, false, nil, "maintenance")
	})
	c := newTestClient(t, r)

	_, err := c.FetchContent(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeRemoteService))
	assert.Contains(t, err.Error(), "maintenance")
}

func TestConnectionFailureIsTransient(t *testing.T) {
	c := New(Config{BaseURL: "http://habitica.test", Timeout: time.Second}, nil,
		WithDialer(func(string) (net.Conn, error) { return nil, errors.New("connection refused") }))

	_, err := c.FetchUser(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestScoreTask(t *testing.T) {
	r := router.New()
	r.POST("/api/v3/tasks/{id}/score/{direction}", func(ctx *fasthttp.RequestCtx) {
		if ctx.UserValue("id") != "task-1" || ctx.UserValue("direction") != "up" {
			writeEnvelope(ctx, fasthttp.StatusBadRequest, false, nil, "unexpected path")
			return
		}
		writeEnvelope(ctx, fasthttp.StatusOK, true, map[string]interface{}{"delta": 1.2, "hp": 48.5, "exp": 30, "gp": 12.25, "lvl": 7}, "")
	})
	c := newTestClient(t, r)

	res, err := c.ScoreTask(context.Background(), "task-1", domain.DirectionUp)
	require.NoError(t, err)
	assert.Equal(t, 1.2, res.Delta)
	assert.Equal(t, 48.5, res.Health)
	assert.Equal(t, 7, res.Level)

	_, err = c.ScoreTask(context.Background(), "task-1", domain.Direction("sideways"))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestLeaveChallengeSendsKeepPolicy(t *testing.T) {
	var got map[string]string
	r := router.New()
	r.POST("/api/v3/challenges/{id}/leave", func(ctx *fasthttp.RequestCtx) {
		_ = json.Unmarshal(ctx.PostBody(), &got)
		writeEnvelope(ctx, fasthttp.StatusOK, true, map[string]interface{}{}, "")
	})
	c := newTestClient(t, r)

	require.NoError(t, c.LeaveChallenge(context.Background(), "ch-1", domain.RemoveAll))
	assert.Equal(t, map[string]string{"keep": "remove-all"}, got)
}

func TestToggleSleepAndDeleteTag(t *testing.T) {
	var deleted string
	r := router.New()
	r.POST("/api/v3/user/sleep", func(ctx *fasthttp.RequestCtx) {
		writeEnvelope(ctx, fasthttp.StatusOK, true, true, "")
	})
	r.DELETE("/api/v3/tags/{id}", func(ctx *fasthttp.RequestCtx) {
		deleted, _ = ctx.UserValue("id").(string)
		writeEnvelope(ctx, fasthttp.StatusOK, true, map[string]interface{}{}, "")
	})
	c := newTestClient(t, r)

	sleeping, err := c.ToggleSleep(context.Background())
	require.NoError(t, err)
	assert.True(t, sleeping)

	require.NoError(t, c.DeleteTag(context.Background(), "tag-9"))
	assert.Equal(t, "tag-9", deleted)
	assert.ErrorIs(t, c.DeleteTag(context.Background(), ""), domain.ErrInvalidPayload)
}

func TestStatus(t *testing.T) {
	state := "up"
	r := router.New()
	r.GET("/api/v3/status", func(ctx *fasthttp.RequestCtx) {
		writeEnvelope(ctx, fasthttp.StatusOK, true, map[string]string{"status": state}, "")
	})
	c := newTestClient(t, r)

	require.NoError(t, c.Status(context.Background()))
	state = "down"
	err := c.Status(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeRemoteService))
}

func TestRateLimiterHonoursContext(t *testing.T) {
	r := router.New()
	r.GET("/api/v3/user", func(ctx *fasthttp.RequestCtx) {
		writeEnvelope(ctx, fasthttp.StatusOK, true, map[string]string{"_id": "user-1"}, "")
	})
	c := newTestClient(t, r, WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))

	_, err := c.FetchUser(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.FetchUser(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}
