package monitor

import (
	"errors"
	"time"
)

type Status struct {
	Remote        bool      `json:"remote"`
	RemoteError   string    `json:"remote_error,omitempty"`
	Archive       bool      `json:"archive"`
	ArchiveSize   int       `json:"archive_size"`
	ContentFresh  bool      `json:"content_fresh"`
	LastCheck     time.Time `json:"last_check"`
	LastHealthyAt time.Time `json:"last_healthy_at,omitempty"`
}

var errRemoteNotConfigured = errors.New("remote client not configured")
