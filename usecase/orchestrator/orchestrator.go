// Package orchestrator owns the committed account snapshot. It runs the single-flight
// refresh cycle, serves read accessors from the last committed snapshot and issues
// mutating actions whose effect becomes visible through a follow-up refresh.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/questboard/domain"
	"github.com/fastygo/questboard/internal/engine"
	"github.com/fastygo/questboard/repository"
	"github.com/fastygo/questboard/usecase"
)

const DefaultRefreshTimeout = 2 * time.Minute

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithArchive enables snapshot archiving and archive-backed fallbacks.
func WithArchive(archive usecase.SnapshotArchive) Option {
	return func(o *Orchestrator) { o.archive = archive }
}

// WithClock overrides the time source used for fetch timestamps and due dates.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRefreshTimeout bounds the detached refresh started after an action.
func WithRefreshTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.refreshTimeout = d
		}
	}
}

type Orchestrator struct {
	remote  repository.RemoteRepository
	cache   usecase.ReferenceCache
	archive usecase.SnapshotArchive
	engine  *engine.Engine
	logger  *zap.Logger

	now            func() time.Time
	refreshTimeout time.Duration

	current    atomic.Pointer[domain.Snapshot]
	refreshing atomic.Bool

	obsMu     sync.RWMutex
	observers []func()

	bgMu     sync.Mutex
	bgClosed bool
	bg       sync.WaitGroup
}

func New(
	remote repository.RemoteRepository,
	cache usecase.ReferenceCache,
	eng *engine.Engine,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if eng == nil {
		eng = engine.New(engine.Config{}, logger)
	}
	o := &Orchestrator{
		remote:         remote,
		cache:          cache,
		engine:         eng,
		logger:         logger,
		now:            time.Now,
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Subscribe registers fn to be called after every refresh attempt, successful or not.
func (o *Orchestrator) Subscribe(fn func()) {
	if fn == nil {
		return
	}
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	o.observers = append(o.observers, fn)
}

func (o *Orchestrator) notify() {
	o.obsMu.RLock()
	observers := append([]func(){}, o.observers...)
	o.obsMu.RUnlock()
	for _, fn := range observers {
		fn()
	}
}

// Refreshing reports whether a refresh cycle is running.
func (o *Orchestrator) Refreshing() bool {
	return o.refreshing.Load()
}

// Restore installs the last archived snapshot as the committed one when nothing has been
// committed yet. It reports whether a snapshot was restored.
func (o *Orchestrator) Restore() (bool, error) {
	if o.archive == nil {
		return false, nil
	}
	snap, err := o.archive.Latest()
	if err != nil {
		return false, domain.WrapError(domain.ErrCodeCache, "read snapshot archive", err)
	}
	if snap == nil || snap.User == nil {
		return false, nil
	}
	if !o.current.CompareAndSwap(nil, snap) {
		return false, nil
	}
	o.logger.Info("snapshot restored from archive",
		zap.Time("fetched_at", snap.FetchedAt),
		zap.Int("tasks", len(snap.Tasks)))
	o.notify()
	return true, nil
}

// Wait blocks until detached refreshes finish or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting detached refreshes and waits for the running ones.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.bgMu.Lock()
	o.bgClosed = true
	o.bgMu.Unlock()
	return o.Wait(ctx)
}

// refreshDetached starts a refresh owned by the orchestrator; the caller does not wait for it.
func (o *Orchestrator) refreshDetached(reason string) {
	o.bgMu.Lock()
	if o.bgClosed {
		o.bgMu.Unlock()
		o.logger.Debug("detached refresh skipped, orchestrator closed", zap.String("reason", reason))
		return
	}
	o.bg.Add(1)
	o.bgMu.Unlock()

	go func() {
		defer o.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.refreshTimeout)
		defer cancel()
		if err := o.Refresh(ctx); err != nil {
			o.logger.Warn("follow-up refresh did not complete", zap.String("reason", reason), zap.Error(err))
		}
	}()
}
