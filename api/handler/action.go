package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/questboard/api/transport"
	"github.com/fastygo/questboard/pkg/httpcontext"
	appLogger "github.com/fastygo/questboard/pkg/logger"
	"github.com/fastygo/questboard/usecase"
	"github.com/fastygo/questboard/usecase/orchestrator"
)

type ActionHandler struct {
	baseHandler
	dispatcher *usecase.Dispatcher
}

func NewActionHandler(dispatcher *usecase.Dispatcher, adapter *httpcontext.Adapter, logger *zap.Logger) *ActionHandler {
	return &ActionHandler{
		baseHandler: newBaseHandler(adapter, logger),
		dispatcher:  dispatcher,
	}
}

// Refresh runs a refresh cycle and answers with the refreshed stats. A refresh already
// in progress answers 409.
//
// @Summary Refresh the snapshot
// @Tags actions
// @Router /api/v1/refresh [post]
func (h *ActionHandler) Refresh(ctx *fasthttp.RequestCtx) {
	h.execute(ctx, orchestrator.CommandRefresh)
}

// @Summary Run a named action
// @Tags actions
// @Router /api/v1/actions/{name} [post]
func (h *ActionHandler) Execute(ctx *fasthttp.RequestCtx) {
	name, _ := ctx.UserValue("name").(string)
	h.execute(ctx, name)
}

// @Summary List action names
// @Tags actions
// @Router /api/v1/actions [get]
func (h *ActionHandler) List(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.dispatcher.Commands())
}

func (h *ActionHandler) execute(ctx *fasthttp.RequestCtx, name string) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	var payload interface{}
	if body := ctx.PostBody(); len(body) > 0 {
		payload = json.RawMessage(append([]byte(nil), body...))
	}

	result, err := h.dispatcher.ExecuteCommand(stdCtx, name, payload)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	appLogger.WithRequestID(stdCtx, h.logger).Info("action executed", zap.String("action", name))
	h.respondSuccess(ctx, http.StatusOK, transport.ActionResponse{Action: name, Result: result})
}
