package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/questboard/api/handler"
)

type Handlers struct {
	Board  *apiHandler.BoardHandler
	Action *apiHandler.ActionHandler
	Health *apiHandler.HealthHandler
}

// Middleware wraps a request handler.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// New registers the local API routes. Middlewares wrap the whole router, the first one outermost.
func New(handlers Handlers, middlewares ...Middleware) fasthttp.RequestHandler {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Snapshot reads
	r.GET("/api/v1/stats", handlers.Board.GetStats)
	r.GET("/api/v1/tasks", handlers.Board.GetTasks)
	r.GET("/api/v1/tasks/{id}", handlers.Board.GetTask)
	r.GET("/api/v1/tags", handlers.Board.GetTags)
	r.GET("/api/v1/party", handlers.Board.GetParty)
	r.GET("/api/v1/challenges", handlers.Board.GetChallenges)

	// Remote actions
	r.POST("/api/v1/refresh", handlers.Action.Refresh)
	r.GET("/api/v1/actions", handlers.Action.List)
	r.POST("/api/v1/actions/{name}", handlers.Action.Execute)

	handler := r.Handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
