package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/questboard/domain"
	"github.com/fastygo/questboard/internal/engine"
	"github.com/fastygo/questboard/internal/infrastructure/content"
	"github.com/fastygo/questboard/internal/infrastructure/snapshot"
)

const (
	userFixture = `{"_id":"user-1","profile":{"name":"Ada"},
		"stats":{"hp":42,"mp":20,"lvl":1,"class":"warrior","str":1,"con":0,"int":0,"per":0,"buffs":{"stealth":0}},
		"items":{"gear":{"equipped":{"weapon":"weapon_warrior_1"}}},
		"party":{"_id":"party-1"}}`

	partyFixture = `{"_id":"party-1","name":"Guild","leader":"user-1","memberCount":3,
		"quest":{"key":"vice1","active":true,"progress":{"hp":500}}}`

	contentFixture = `{"gear":{"flat":{"weapon_warrior_1":{"key":"weapon_warrior_1","klass":"warrior","type":"weapon","str":3}}},
		"quests":{"vice1":{"key":"vice1","text":"Vice","boss":{"name":"Vice","hp":750,"str":1.5,"def":1}}},
		"spells":{}}`
)

var (
	tasksFixture = []string{
		`{"id":"d1","type":"daily","text":"Meditate","isDue":true,"completed":false,"value":0,"priority":1,"tags":["tag-1","tag-x"],"challenge":{"id":"ch-1","shortName":"Zen"}}`,
		`{"id":"h1","type":"habit","text":"Drink water","up":true,"down":false}`,
		`{"id":"t1","type":"todo","text":"File taxes","date":"2026-01-01"}`,
		`{"id":"d1","type":"daily","text":"Duplicate"}`,
		`{"id":"bad","type":"quest"}`,
	}
	tagsFixture = []string{
		`{"id":"tag-1","name":"Mind"}`,
		`{"id":"","name":"broken"}`,
	}
	fixedNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
)

type fakeRemote struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string]error

	tags    []string
	user    string
	content string
	keep    domain.KeepPolicy

	// userGate, when set, blocks FetchUser until closed.
	userGate chan struct{}
	// userEntered is closed once FetchUser is running.
	userEntered chan struct{}
	enterOnce   sync.Once
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		calls:   make(map[string]int),
		errs:    make(map[string]error),
		tags:    tagsFixture,
		user:    userFixture,
		content: contentFixture,
	}
}

func (f *fakeRemote) set(fn func(f *fakeRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeRemote) call(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.errs[name]
}

func (f *fakeRemote) setErr(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = err
}

func (f *fakeRemote) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func rawList(items []string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		out[i] = json.RawMessage(item)
	}
	return out
}

func (f *fakeRemote) FetchUser(ctx context.Context) (json.RawMessage, error) {
	if f.userEntered != nil {
		f.enterOnce.Do(func() { close(f.userEntered) })
	}
	if f.userGate != nil {
		<-f.userGate
	}
	if err := f.call("user"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return json.RawMessage(f.user), nil
}

func (f *fakeRemote) FetchTasks(ctx context.Context) ([]json.RawMessage, error) {
	if err := f.call("tasks"); err != nil {
		return nil, err
	}
	return rawList(tasksFixture), nil
}

func (f *fakeRemote) FetchTags(ctx context.Context) ([]json.RawMessage, error) {
	if err := f.call("tags"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return rawList(f.tags), nil
}

func (f *fakeRemote) FetchParty(ctx context.Context) (json.RawMessage, error) {
	if err := f.call("party"); err != nil {
		return nil, err
	}
	return json.RawMessage(partyFixture), nil
}

func (f *fakeRemote) FetchContent(ctx context.Context) ([]byte, error) {
	if err := f.call("content"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return []byte(f.content), nil
}

func (f *fakeRemote) ScoreTask(ctx context.Context, taskID string, direction domain.Direction) (*domain.ScoreResult, error) {
	if err := f.call("score"); err != nil {
		return nil, err
	}
	return &domain.ScoreResult{Delta: 1, Level: 1}, nil
}

func (f *fakeRemote) ToggleSleep(ctx context.Context) (bool, error) {
	return true, f.call("sleep")
}

func (f *fakeRemote) LeaveChallenge(ctx context.Context, challengeID string, keep domain.KeepPolicy) error {
	f.set(func(f *fakeRemote) { f.keep = keep })
	return f.call("leave")
}

func (f *fakeRemote) DeleteTag(ctx context.Context, tagID string) error {
	return f.call("delete-tag")
}

func (f *fakeRemote) Status(ctx context.Context) error {
	return f.call("status")
}

type harness struct {
	orch     *Orchestrator
	remote   *fakeRemote
	notified atomic.Int32
	// at is the shared clock in unix nanoseconds.
	at atomic.Int64
}

func (h *harness) now() time.Time {
	return time.Unix(0, h.at.Load()).UTC()
}

func (h *harness) advance(d time.Duration) {
	h.at.Add(int64(d))
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	remote := newFakeRemote()
	h := &harness{remote: remote}
	h.at.Store(fixedNow.UnixNano())
	cache := content.New(remote, content.Options{
		Dir:    t.TempDir(),
		MaxAge: time.Hour,
		Now:    h.now,
	}, nil)
	opts = append([]Option{WithClock(h.now)}, opts...)
	h.orch = New(remote, cache, engine.New(engine.Config{}, nil), nil, opts...)
	h.orch.Subscribe(func() { h.notified.Add(1) })
	t.Cleanup(func() { _ = h.orch.Close(context.Background()) })
	return h
}

func openArchive(t *testing.T, path string) *snapshot.Store {
	t.Helper()
	store, err := snapshot.Open(path, 3)
	require.NoError(t, err)
	return store
}

func TestRefreshCommitsDecoratedSnapshot(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.Refresh(context.Background()))
	assert.Equal(t, int32(1), h.notified.Load())

	user, err := h.orch.UserStats()
	require.NoError(t, err)
	assert.Equal(t, 5.5, user.Effective.Str)
	assert.Equal(t, engine.DefaultBaseMaxHealth, user.MaxHealth)
	assert.Equal(t, engine.DefaultBaseMaxMana, user.MaxMana)

	tasks, err := h.orch.Tasks(domain.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 3, "duplicate and malformed tasks are dropped")
	assert.Equal(t, "Meditate", tasks[0].Text)

	daily := tasks[0]
	assert.Equal(t, domain.StatusDue, daily.Status)
	assert.Equal(t, []string{"Mind", engine.UnknownTagName}, daily.TagNames)
	require.NotNil(t, daily.Daily.UserDamage)
	assert.Equal(t, 2.0, *daily.Daily.UserDamage)
	require.NotNil(t, daily.Daily.PartyDamage)
	assert.Equal(t, 1.5, *daily.Daily.PartyDamage)

	assert.Equal(t, domain.StatusGood, tasks[1].Status)
	assert.Equal(t, domain.StatusPastDue, tasks[2].Status)

	tags, err := h.orch.Tags()
	require.NoError(t, err)
	assert.Equal(t, []domain.Tag{{ID: "tag-1", Name: "Mind"}}, tags)

	party, err := h.orch.Party()
	require.NoError(t, err)
	require.NotNil(t, party)
	assert.True(t, party.LedByUser)

	challenges, err := h.orch.Challenges()
	require.NoError(t, err)
	assert.Equal(t, []domain.Challenge{{ID: "ch-1", ShortName: "Zen", TaskIDs: []string{"d1"}}}, challenges)
}

func TestReadersBeforeFirstCommit(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.UserStats()
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)
	_, err = h.orch.Tasks(domain.TaskFilter{})
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)
}

func TestRefreshIsSingleFlight(t *testing.T) {
	h := newHarness(t)
	h.remote.userGate = make(chan struct{})
	h.remote.userEntered = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.orch.Refresh(context.Background()) }()

	<-h.remote.userEntered
	assert.True(t, h.orch.Refreshing())
	err := h.orch.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrRefreshInProgress)

	close(h.remote.userGate)
	require.NoError(t, <-done)
	assert.False(t, h.orch.Refreshing())
	assert.Equal(t, 1, h.remote.count("user"))
	assert.Equal(t, 1, h.remote.count("tasks"))
}

func TestRefreshTagsFailureFallsBackToPrevious(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Refresh(context.Background()))
	before, err := h.orch.Tags()
	require.NoError(t, err)

	h.remote.setErr("tags", domain.WrapError(domain.ErrCodeTransientNetwork, "timeout", errors.New("i/o timeout")))
	require.NoError(t, h.orch.Refresh(context.Background()))
	assert.Equal(t, int32(2), h.notified.Load())

	after, err := h.orch.Tags()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRefreshFirstRunFallbacks(t *testing.T) {
	h := newHarness(t)
	h.remote.setErr("tags", domain.NewError(domain.ErrCodeTransientNetwork, "timeout"))
	h.remote.setErr("party", domain.RemoteError(500, "boom"))

	require.NoError(t, h.orch.Refresh(context.Background()))
	tags, err := h.orch.Tags()
	require.NoError(t, err)
	assert.Empty(t, tags)
	party, err := h.orch.Party()
	require.NoError(t, err)
	assert.Nil(t, party)

	tasks, err := h.orch.Tasks(domain.TaskFilter{Kind: domain.KindDaily})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Nil(t, tasks[0].Daily.PartyDamage)
	assert.Equal(t, []string{engine.UnknownTagName, engine.UnknownTagName}, tasks[0].TagNames)
}

func TestRefreshFallsBackToArchivedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")
	archive := openArchive(t, path)
	first := newHarness(t, WithArchive(archive))
	require.NoError(t, first.orch.Refresh(context.Background()))
	require.NoError(t, archive.Close())

	archive = openArchive(t, path)
	t.Cleanup(func() { _ = archive.Close() })
	second := newHarness(t, WithArchive(archive))
	second.remote.setErr("tags", domain.NewError(domain.ErrCodeTransientNetwork, "timeout"))
	second.remote.setErr("party", domain.NewError(domain.ErrCodeTransientNetwork, "timeout"))

	require.NoError(t, second.orch.Refresh(context.Background()))
	tags, err := second.orch.Tags()
	require.NoError(t, err)
	assert.Equal(t, []domain.Tag{{ID: "tag-1", Name: "Mind"}}, tags)
	party, err := second.orch.Party()
	require.NoError(t, err)
	require.NotNil(t, party)
	assert.Equal(t, "party-1", party.ID)
}

func TestRefreshCriticalFailureKeepsPreviousSnapshot(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Refresh(context.Background()))
	before, err := h.orch.Snapshot()
	require.NoError(t, err)

	boom := domain.RemoteError(503, "maintenance")
	h.remote.setErr("tasks", boom)
	err = h.orch.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), h.notified.Load(), "observers are notified on abort")

	after, err := h.orch.Snapshot()
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestRefreshInvalidUserKeepsPreviousSnapshot(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Refresh(context.Background()))
	before, err := h.orch.Snapshot()
	require.NoError(t, err)

	h.remote.set(func(f *fakeRemote) { f.user = `{"profile":{}}` })
	err = h.orch.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeValidation), "got %v", err)
	assert.Equal(t, int32(2), h.notified.Load(), "observers are notified on abort")

	after, err := h.orch.Snapshot()
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestRefreshReconcilesStaleReferenceData(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Refresh(context.Background()))
	assert.Equal(t, 1, h.remote.count("content"))

	// Within the max age the cached copy is used.
	h.advance(30 * time.Minute)
	require.NoError(t, h.orch.Refresh(context.Background()))
	assert.Equal(t, 1, h.remote.count("content"))

	h.remote.set(func(f *fakeRemote) {
		f.content = `{"gear":{"flat":{"weapon_warrior_1":{"key":"weapon_warrior_1","klass":"warrior","type":"weapon","str":5}}},
			"quests":{"vice1":{"key":"vice1","text":"Vice","boss":{"name":"Vice","hp":750,"str":2,"def":1}}},
			"spells":{}}`
	})
	h.advance(2 * time.Hour)
	require.NoError(t, h.orch.Refresh(context.Background()))
	assert.Equal(t, 2, h.remote.count("content"), "stale reference data is fetched again")

	user, err := h.orch.UserStats()
	require.NoError(t, err)
	assert.Equal(t, 8.5, user.Effective.Str)

	tasks, err := h.orch.Tasks(domain.TaskFilter{})
	require.NoError(t, err)
	daily := tasks[0]
	require.Equal(t, "d1", daily.ID)
	require.NotNil(t, daily.Daily.UserDamage)
	assert.Equal(t, 2.0, *daily.Daily.UserDamage)
	require.NotNil(t, daily.Daily.PartyDamage)
	assert.Equal(t, 2.0, *daily.Daily.PartyDamage)
}

func TestRefreshAbortsWhenReferenceDataUnavailable(t *testing.T) {
	h := newHarness(t)
	h.remote.setErr("content", domain.NewError(domain.ErrCodeTransientNetwork, "dial failed"))

	err := h.orch.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	_, err = h.orch.Snapshot()
	assert.ErrorIs(t, err, domain.ErrNoSnapshot)
	assert.Equal(t, int32(1), h.notified.Load())
}

func TestRefreshIsIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Refresh(context.Background()))
	first, err := h.orch.Snapshot()
	require.NoError(t, err)
	require.NoError(t, h.orch.Refresh(context.Background()))
	second, err := h.orch.Snapshot()
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	a, b := *first, *second
	a.Content, b.Content = nil, nil
	a.FetchedAt, b.FetchedAt = time.Time{}, time.Time{}
	assert.Equal(t, a, b)
	assert.Equal(t, 1, h.remote.count("content"), "fresh reference data is not refetched")
}

func TestPartyNotFoundMeansNoParty(t *testing.T) {
	h := newHarness(t)
	h.remote.setErr("party", domain.RemoteError(404, "Group not found."))

	require.NoError(t, h.orch.Refresh(context.Background()))
	party, err := h.orch.Party()
	require.NoError(t, err)
	assert.Nil(t, party)
}

func TestActionStartsDetachedRefresh(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Refresh(context.Background()))

	res, err := h.orch.ScoreTask(context.Background(), "d1", domain.DirectionUp)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Delta)

	require.NoError(t, h.orch.Wait(context.Background()))
	assert.Equal(t, 2, h.remote.count("user"))
	assert.Equal(t, int32(2), h.notified.Load())
}

func TestFailedActionDoesNotRefresh(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Refresh(context.Background()))
	h.remote.setErr("delete-tag", domain.RemoteError(401, "unauthorized"))

	err := h.orch.DeleteTag(context.Background(), "tag-1")
	require.Error(t, err)
	require.NoError(t, h.orch.Wait(context.Background()))
	assert.Equal(t, 1, h.remote.count("user"))

	assert.ErrorIs(t, h.orch.LeaveChallenge(context.Background(), "ch-1", "keep-some"), domain.ErrInvalidPayload)
	assert.Equal(t, 0, h.remote.count("leave"))
}

func TestClosedOrchestratorSkipsDetachedRefresh(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Close(context.Background()))

	_, err := h.orch.ToggleSleep(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.orch.Wait(context.Background()))
	assert.Equal(t, 0, h.remote.count("user"))
}

func TestRestoreFromArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")
	archive := openArchive(t, path)
	first := newHarness(t, WithArchive(archive))
	require.NoError(t, first.orch.Refresh(context.Background()))
	require.NoError(t, archive.Close())

	archive = openArchive(t, path)
	t.Cleanup(func() { _ = archive.Close() })
	second := newHarness(t, WithArchive(archive))
	restored, err := second.orch.Restore()
	require.NoError(t, err)
	assert.True(t, restored)

	user, err := second.orch.UserStats()
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, 5.5, user.Effective.Str)
	assert.Equal(t, 0, second.remote.count("user"))

	restored, err = second.orch.Restore()
	require.NoError(t, err)
	assert.False(t, restored, "a committed snapshot is never replaced")
}

func TestReadersReturnCopies(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Refresh(context.Background()))

	tasks, err := h.orch.Tasks(domain.TaskFilter{})
	require.NoError(t, err)
	tasks[0].Text = "changed"
	*tasks[0].Daily.UserDamage = 99
	tasks[0].TagNames[0] = "changed"

	again, err := h.orch.Task("d1")
	require.NoError(t, err)
	assert.Equal(t, "Meditate", again.Text)
	assert.Equal(t, 2.0, *again.Daily.UserDamage)
	assert.Equal(t, "Mind", again.TagNames[0])

	_, err = h.orch.Task("missing")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}
