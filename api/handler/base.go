package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/questboard/api/transport"
	"github.com/fastygo/questboard/domain"
	"github.com/fastygo/questboard/pkg/httpcontext"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	requestID := httpcontext.RequestID(ctx)
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, err := json.Marshal(payload.WithRequestID(requestID))
	if err != nil {
		h.logger.Error("response encoding failed", zap.String("request_id", requestID), zap.Error(err))
		ctx.SetStatusCode(http.StatusInternalServerError)
		body, _ = json.Marshal(transport.NewError(string(domain.ErrCodeInternal), "response encoding failed").WithRequestID(requestID))
	}
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed",
			zap.String("request_id", httpcontext.RequestID(ctx)),
			zap.String("code", code),
			zap.Error(err))
	}
	h.respondJSON(ctx, status, transport.NewError(code, err.Error()))
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNoSnapshot):
		return http.StatusServiceUnavailable, "NO_SNAPSHOT"
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest, string(domain.ErrCodeInvalid)
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, string(domain.ErrCodeNotFound)
	case domain.IsDomainError(err, domain.ErrCodeConflict):
		return http.StatusConflict, string(domain.ErrCodeConflict)
	case domain.IsDomainError(err, domain.ErrCodeTransientNetwork):
		return http.StatusGatewayTimeout, string(domain.ErrCodeTransientNetwork)
	case domain.IsDomainError(err, domain.ErrCodeRemoteService):
		return http.StatusBadGateway, string(domain.ErrCodeRemoteService)
	case domain.IsDomainError(err, domain.ErrCodeValidation):
		return http.StatusBadGateway, string(domain.ErrCodeValidation)
	case domain.IsDomainError(err, domain.ErrCodeCache):
		return http.StatusInternalServerError, string(domain.ErrCodeCache)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}
