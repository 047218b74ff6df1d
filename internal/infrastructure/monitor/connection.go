package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pinger checks that the remote service answers.
type Pinger interface {
	Status(ctx context.Context) error
}

// ArchiveSizer reports the number of archived snapshots.
type ArchiveSizer interface {
	Size() (int, error)
}

// FreshnessChecker reports whether the reference cache can be served without a fetch.
type FreshnessChecker interface {
	Fresh() bool
}

type Options struct {
	Interval    time.Duration
	PingTimeout time.Duration
}

type Monitor struct {
	remote  Pinger
	archive ArchiveSizer
	cache   FreshnessChecker

	status   Status
	mu       sync.RWMutex
	opts     Options
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *zap.Logger
}

func New(remote Pinger, archive ArchiveSizer, cache FreshnessChecker, opts Options, logger *zap.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		remote:  remote,
		archive: archive,
		cache:   cache,
		opts:    opts,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		logger:  logger,
	}
}

func (m *Monitor) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go m.loop()
}

// Stop ends the check loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if m.started.Load() {
		<-m.doneCh
	}
}

// IsOnline reports whether the last ping succeeded.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Remote
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.Check(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Check(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Check runs every probe once and stores the result.
func (m *Monitor) Check(ctx context.Context) Status {
	archiveOK, archiveSize := m.checkArchive()
	remoteErr := m.checkRemote(ctx)
	// Fresh waits on the cache lock, which a content fetch can hold.
	contentFresh := m.cache != nil && m.cache.Fresh()

	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.status
	status := Status{
		Remote:        remoteErr == nil,
		Archive:       archiveOK,
		ArchiveSize:   archiveSize,
		ContentFresh:  contentFresh,
		LastCheck:     time.Now(),
		LastHealthyAt: prev.LastHealthyAt,
	}
	if remoteErr != nil {
		status.RemoteError = remoteErr.Error()
	} else {
		status.LastHealthyAt = status.LastCheck
	}
	if prev.Remote != status.Remote && !prev.LastCheck.IsZero() {
		m.logger.Info("remote availability changed", zap.Bool("online", status.Remote))
	}
	m.status = status
	return status
}

func (m *Monitor) checkRemote(ctx context.Context) error {
	if m.remote == nil {
		return errRemoteNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.PingTimeout)
	defer cancel()
	if err := m.remote.Status(ctx); err != nil {
		m.logger.Debug("remote ping failed", zap.Error(err))
		return err
	}
	return nil
}

func (m *Monitor) checkArchive() (bool, int) {
	if m.archive == nil {
		return false, 0
	}
	size, err := m.archive.Size()
	if err != nil {
		m.logger.Warn("archive size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
