package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/questboard/domain"
)

const sampleContent = `{
  "gear": {"flat": {
    "weapon_warrior_1": {"key": "weapon_warrior_1", "klass": "warrior", "type": "weapon", "str": 3},
    "head_special_2": {"key": "head_special_2", "klass": "special", "specialClass": "wizard", "type": "head", "int": 2},
    "broken_gear": {"key": "broken_gear", "klass": "base"}
  }},
  "quests": {
    "vice1": {"key": "vice1", "text": "Vice", "boss": {"name": "Vice", "hp": 750, "str": 1.5, "def": 1.5}},
    "eggs": {"key": "eggs", "collect": {"plainEgg": {"text": "Egg", "count": 40}}},
    "bad": "not an object"
  },
  "spells": {
    "wizard": {"fireball": {"key": "fireball", "text": "Burst of Flames", "mana": 10, "target": "task"}},
    "broken": 7
  }
}`

type fakeFetcher struct {
	calls atomic.Int32
	body  []byte
	err   error
	delay time.Duration
}

func (f *fakeFetcher) FetchContent(ctx context.Context) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.body, f.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, f Fetcher) (*Cache, *clock, string) {
	t.Helper()
	dir := t.TempDir()
	clk := &clock{now: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
	return New(f, Options{Dir: dir, MaxAge: time.Hour, Now: clk.Now}, nil), clk, dir
}

func TestProcessSkipsMalformedItems(t *testing.T) {
	data, err := Process([]byte(sampleContent), nil)
	require.NoError(t, err)

	assert.Len(t, data.Gear, 2)
	assert.Equal(t, domain.ClassWarrior, data.Gear["weapon_warrior_1"].Class)
	assert.Equal(t, domain.ClassWizard, data.Gear["head_special_2"].Class)
	assert.Equal(t, 3.0, data.Gear["weapon_warrior_1"].Stats.Str)

	require.Len(t, data.Quests, 2)
	require.NotNil(t, data.Quests["vice1"].Boss)
	assert.Equal(t, 1.5, data.Quests["vice1"].Boss.Strength)
	assert.Equal(t, 40, data.Quests["eggs"].Collect["plainEgg"])

	require.Len(t, data.Spells, 1)
	assert.Equal(t, "wizard", data.Spells["fireball"].Class)
}

func TestProcessRejectsUndecodableDocument(t *testing.T) {
	_, err := Process([]byte("[1,2"), nil)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeValidation))
}

func TestLoadFetchesOncePersistsAndServesFromMemory(t *testing.T) {
	f := &fakeFetcher{body: []byte(sampleContent)}
	c, _, dir := newTestCache(t, f)

	first, err := c.Load(context.Background())
	require.NoError(t, err)
	second, err := c.Load(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), f.calls.Load())
	for _, name := range []string{rawFile, processedFile, metaFile} {
		_, err := os.Stat(filepath.Join(dir, namespace, name))
		assert.NoError(t, err, name)
	}
	assert.True(t, c.Fresh())
}

func TestLoadUsesProcessedFileAcrossInstances(t *testing.T) {
	f := &fakeFetcher{body: []byte(sampleContent)}
	c, clk, dir := newTestCache(t, f)
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	other := New(f, Options{Dir: dir, MaxAge: time.Hour, Now: clk.Now}, nil)
	data, err := other.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, data.Gear, 2)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestLoadReprocessesRawWhenProcessedMissing(t *testing.T) {
	f := &fakeFetcher{body: []byte(sampleContent)}
	c, clk, dir := newTestCache(t, f)
	_, err := c.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, namespace, processedFile)))

	other := New(f, Options{Dir: dir, MaxAge: time.Hour, Now: clk.Now}, nil)
	data, err := other.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, data.Quests, 2)
	assert.Equal(t, int32(1), f.calls.Load())

	_, err = os.Stat(filepath.Join(dir, namespace, processedFile))
	assert.NoError(t, err, "processed form is rewritten")
}

func TestLoadRefetchesWhenStale(t *testing.T) {
	f := &fakeFetcher{body: []byte(sampleContent)}
	c, clk, _ := newTestCache(t, f)
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	assert.False(t, c.Fresh())
	_, err = c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestLoadPropagatesFetchError(t *testing.T) {
	boom := domain.NewError(domain.ErrCodeTransientNetwork, "dial failed")
	c, _, _ := newTestCache(t, &fakeFetcher{err: boom})
	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestConcurrentLoadsFetchOnce(t *testing.T) {
	f := &fakeFetcher{body: []byte(sampleContent), delay: 20 * time.Millisecond}
	c, _, _ := newTestCache(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Load(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestReconcile(t *testing.T) {
	f := &fakeFetcher{body: []byte(sampleContent)}
	c, clk, _ := newTestCache(t, f)
	_, err := c.Load(context.Background())
	require.NoError(t, err)
	before := c.Meta()

	clk.Advance(10 * time.Minute)
	changed, err := c.Reconcile([]byte(sampleContent))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before.SHA256, c.Meta().SHA256)
	assert.True(t, c.Meta().FetchedAt.After(before.FetchedAt))

	updated := `{"gear": {"flat": {"armor_base_0": {"key": "armor_base_0", "klass": "base", "type": "armor"}}}, "quests": {}, "spells": {}}`
	changed, err = c.Reconcile([]byte(updated))
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, data.Gear, 1)
	_, ok := data.GearByKey("armor_base_0")
	assert.True(t, ok)
	assert.Equal(t, int32(1), f.calls.Load(), "reconciled data is served from disk")
}
