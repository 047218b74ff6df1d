package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/questboard/domain"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return r.err
}

type health bool

func (h health) IsOnline() bool { return bool(h) }

func TestTickSkipsWhileOffline(t *testing.T) {
	r := &countingRefresher{}
	ar, err := NewAutoRefresher(r, health(false), nil, RefresherConfig{Interval: time.Minute})
	require.NoError(t, err)

	require.NoError(t, ar.Tick(context.Background()))
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestTickRefreshesWhenOnline(t *testing.T) {
	r := &countingRefresher{}
	ar, err := NewAutoRefresher(r, health(true), nil, RefresherConfig{Interval: time.Minute})
	require.NoError(t, err)

	require.NoError(t, ar.Tick(context.Background()))
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestTickIgnoresOverlap(t *testing.T) {
	r := &countingRefresher{err: domain.ErrRefreshInProgress}
	ar, err := NewAutoRefresher(r, nil, nil, RefresherConfig{Interval: time.Minute})
	require.NoError(t, err)
	assert.NoError(t, ar.Tick(context.Background()))

	r.err = errors.New("boom")
	assert.Error(t, ar.Tick(context.Background()))
}

func TestSchedulerRuns(t *testing.T) {
	r := &countingRefresher{}
	ar, err := NewAutoRefresher(r, health(true), nil, RefresherConfig{Interval: time.Second})
	require.NoError(t, err)

	ar.Start()
	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	ar.Stop(context.Background())
}
