// Package content owns the static reference dataset: a lazily loaded, disk-cached and
// time-bounded copy of gear, quest and spell definitions.
//
// Layout under the cache directory:
//
//	{Dir}/content/
//	  raw.json        verbatim remote document
//	  processed.json  lookup tables
//	  meta.json       fetch timestamp and sha256 of raw.json
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/questboard/domain"
)

const (
	namespace     = "content"
	rawFile       = "raw.json"
	processedFile = "processed.json"
	metaFile      = "meta.json"

	DefaultMaxAge = 24 * time.Hour
)

// Fetcher retrieves the raw reference document from the remote service.
type Fetcher interface {
	FetchContent(ctx context.Context) ([]byte, error)
}

// Meta records when the cached document was fetched and its digest.
type Meta struct {
	FetchedAt time.Time `json:"fetched_at"`
	SHA256    string    `json:"sha256"`
}

type Options struct {
	Dir    string
	MaxAge time.Duration
	Now    func() time.Time
}

// Cache is an injectable reference-data cache with an explicit load/invalidate lifecycle.
type Cache struct {
	dir     string
	maxAge  time.Duration
	now     func() time.Time
	fetcher Fetcher
	logger  *zap.Logger

	mu   sync.Mutex
	data *domain.Content
	meta Meta
}

func New(fetcher Fetcher, opts Options, logger *zap.Logger) *Cache {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		dir:     filepath.Join(opts.Dir, namespace),
		maxAge:  opts.MaxAge,
		now:     opts.Now,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Load returns the dataset, trying memory, the processed file, the raw file and finally
// the remote service. Every cached step must pass the freshness check.
func (c *Cache) Load(ctx context.Context) (*domain.Content, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data != nil && c.fresh(c.meta) {
		return c.data, nil
	}

	if data, meta, ok := c.loadFromDisk(); ok {
		c.data, c.meta = data, meta
		return data, nil
	}

	if c.fetcher == nil {
		return nil, domain.NewError(domain.ErrCodeCache, "reference data unavailable and no fetcher configured")
	}
	raw, err := c.fetcher.FetchContent(ctx)
	if err != nil {
		return nil, err
	}
	data, err := Process(raw, c.logger)
	if err != nil {
		return nil, err
	}
	meta := Meta{FetchedAt: c.now(), SHA256: digest(raw)}
	if err := c.persist(raw, data, meta); err != nil {
		c.logger.Warn("reference data not persisted", zap.Error(err))
	}
	c.data, c.meta = data, meta
	c.logger.Info("reference data fetched", zap.String("sha256", meta.SHA256))
	return data, nil
}

// Fresh reports whether a cached copy (memory or disk) is within the max age,
// meaning Load will not reach the network.
func (c *Cache) Fresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data != nil {
		return c.fresh(c.meta)
	}
	meta, err := c.readMeta()
	return err == nil && c.fresh(meta)
}

// Reconcile compares a newly fetched raw document with the cached one. When it differs
// the document is persisted and the in-memory copy invalidated; otherwise only the fetch
// timestamp is renewed. It reports whether the dataset changed.
func (c *Cache) Reconcile(raw []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum := digest(raw)
	known := c.meta
	if known.SHA256 == "" {
		if meta, err := c.readMeta(); err == nil {
			known = meta
		}
	}

	now := c.now()
	if known.SHA256 == sum {
		meta := Meta{FetchedAt: now, SHA256: sum}
		c.meta = meta
		if err := c.writeJSON(metaFile, meta); err != nil {
			return false, err
		}
		return false, nil
	}

	data, err := Process(raw, c.logger)
	if err != nil {
		return false, err
	}
	meta := Meta{FetchedAt: now, SHA256: sum}
	if err := c.persist(raw, data, meta); err != nil {
		// Keep serving the new set from memory when the disk is unusable.
		c.data, c.meta = data, meta
		return true, err
	}
	c.data = nil
	c.meta = Meta{}
	c.logger.Info("reference data changed", zap.String("previous", known.SHA256), zap.String("current", sum))
	return true, nil
}

// Invalidate drops the in-memory copy; the next Load re-reads the disk.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	c.meta = Meta{}
}

// Meta returns the metadata of the in-memory copy.
func (c *Cache) Meta() Meta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

func (c *Cache) fresh(meta Meta) bool {
	if meta.FetchedAt.IsZero() {
		return false
	}
	return c.now().Sub(meta.FetchedAt) <= c.maxAge
}

func (c *Cache) loadFromDisk() (*domain.Content, Meta, bool) {
	meta, err := c.readMeta()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("reference metadata unreadable", zap.Error(err))
		}
		return nil, Meta{}, false
	}
	if !c.fresh(meta) {
		return nil, Meta{}, false
	}

	var data domain.Content
	if err := c.readJSON(processedFile, &data); err == nil && data.Gear != nil {
		return &data, meta, true
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("processed reference data unreadable", zap.Error(err))
	}

	raw, err := os.ReadFile(filepath.Join(c.dir, rawFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("raw reference data unreadable", zap.Error(err))
		}
		return nil, Meta{}, false
	}
	processed, err := Process(raw, c.logger)
	if err != nil {
		c.logger.Warn("raw reference data invalid", zap.Error(err))
		return nil, Meta{}, false
	}
	if err := c.writeJSON(processedFile, processed); err != nil {
		c.logger.Warn("processed reference data not rewritten", zap.Error(err))
	}
	return processed, meta, true
}

func (c *Cache) persist(raw []byte, data *domain.Content, meta Meta) error {
	if err := c.writeFile(rawFile, raw); err != nil {
		return err
	}
	if err := c.writeJSON(processedFile, data); err != nil {
		return err
	}
	return c.writeJSON(metaFile, meta)
}

func (c *Cache) readMeta() (Meta, error) {
	var meta Meta
	err := c.readJSON(metaFile, &meta)
	return meta, err
}

func (c *Cache) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.WrapError(domain.ErrCodeCache, "parse "+name, err)
	}
	return nil
}

func (c *Cache) writeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return domain.WrapError(domain.ErrCodeCache, "encode "+name, err)
	}
	return c.writeFile(name, data)
}

// writeFile replaces name atomically through a temp file in the same directory.
func (c *Cache) writeFile(name string, data []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return domain.WrapError(domain.ErrCodeCache, "create cache dir", err)
	}
	tmp, err := os.CreateTemp(c.dir, name+".*.tmp")
	if err != nil {
		return domain.WrapError(domain.ErrCodeCache, "write "+name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return domain.WrapError(domain.ErrCodeCache, "write "+name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return domain.WrapError(domain.ErrCodeCache, "write "+name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(c.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return domain.WrapError(domain.ErrCodeCache, "write "+name, err)
	}
	return nil
}

func digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
