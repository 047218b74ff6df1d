package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/questboard/api/transport"
	"github.com/fastygo/questboard/domain"
	"github.com/fastygo/questboard/internal/infrastructure/monitor"
	"github.com/fastygo/questboard/pkg/httpcontext"
)

// StatusReporter exposes the last connection check.
type StatusReporter interface {
	GetStatus() monitor.Status
}

// SnapshotState exposes the committed snapshot and refresh state.
type SnapshotState interface {
	Snapshot() (*domain.Snapshot, error)
	Refreshing() bool
}

type HealthHandler struct {
	baseHandler
	monitor StatusReporter
	state   SnapshotState
}

func NewHealthHandler(mon StatusReporter, state SnapshotState, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		state:       state,
	}
}

// Check answers 200 while a snapshot is committed, even if the remote is unreachable,
// since reads keep working from the stale snapshot.
//
// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	var status monitor.Status
	if h.monitor != nil {
		status = h.monitor.GetStatus()
	}
	info := transport.SnapshotInfo{Refreshing: h.state.Refreshing()}
	if snap, err := h.state.Snapshot(); err == nil {
		info.Committed = true
		info.FetchedAt = snap.FetchedAt.UTC().Format(time.RFC3339)
	}

	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"snapshot":  info,
		"services": map[string]interface{}{
			"remote": map[string]interface{}{
				"online":          status.Remote,
				"error":           status.RemoteError,
				"last_healthy_at": status.LastHealthyAt,
			},
			"archive": map[string]interface{}{
				"online": status.Archive,
				"size":   status.ArchiveSize,
			},
			"content_fresh": status.ContentFresh,
		},
	}

	if info.Committed {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "no snapshot committed yet").WithData(payload))
}
