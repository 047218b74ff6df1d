package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/questboard/domain"
	"github.com/fastygo/questboard/internal/engine"
)

// fetchResult collects the outcome of the concurrent fetch phase.
type fetchResult struct {
	mu       sync.Mutex
	critical *multierror.Error

	user  json.RawMessage
	tasks []json.RawMessage

	tags    []json.RawMessage
	tagsErr error

	party    json.RawMessage
	partyErr error
	noParty  bool

	// contentRaw is set when the reference document was fetched remotely; content is set
	// when the cache was fresh and served it directly.
	contentRaw []byte
	content    *domain.Content
}

func (r *fetchResult) fail(dataset string, err error) {
	r.mu.Lock()
	r.critical = multierror.Append(r.critical, fmt.Errorf("fetch %s: %w", dataset, err))
	r.mu.Unlock()
}

// Refresh runs one refresh cycle. A call made while another cycle is running is dropped
// and returns domain.ErrRefreshInProgress. Observers are notified after every attempt.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	if !o.refreshing.CompareAndSwap(false, true) {
		o.logger.Info("refresh dropped, another cycle is running")
		return domain.ErrRefreshInProgress
	}
	defer func() {
		o.refreshing.Store(false)
		o.notify()
	}()
	if ctx == nil {
		ctx = context.Background()
	}

	log := o.logger.With(zap.String("cycle_id", uuid.NewString()))
	started := o.now()
	log.Debug("refresh started")

	res := o.fetchAll(ctx, log)
	if err := res.critical.ErrorOrNil(); err != nil {
		log.Error("refresh aborted, keeping previous snapshot", zap.Error(err))
		return err
	}

	content, err := o.reconcileContent(ctx, log, res)
	if err != nil {
		log.Error("refresh aborted, reference data unavailable", zap.Error(err))
		return err
	}

	snap, raw, err := o.assemble(log, res, content)
	if err != nil {
		log.Error("refresh aborted, user record invalid", zap.Error(err))
		return err
	}

	o.engine.Run(&engine.Graph{
		User:    snap.User,
		Tasks:   snap.Tasks,
		Tags:    snap.Tags,
		Party:   snap.Party,
		Content: snap.Content,
	}, snap.FetchedAt)

	o.current.Store(snap)
	log.Info("snapshot committed",
		zap.Int("tasks", len(snap.Tasks)),
		zap.Int("tags", len(snap.Tags)),
		zap.Bool("party", snap.Party != nil),
		zap.Duration("elapsed", o.now().Sub(started)))

	if o.archive != nil {
		if err := o.archive.Save(snap, raw); err != nil {
			log.Warn("snapshot not archived", zap.Error(err))
		}
	}
	return nil
}

// fetchAll issues every fetch at once and waits for all of them. Failures are recorded,
// never returned through the group, so one failure does not cancel the others.
func (o *Orchestrator) fetchAll(ctx context.Context, log *zap.Logger) *fetchResult {
	res := &fetchResult{}
	var g errgroup.Group

	g.Go(func() error {
		raw, err := o.remote.FetchUser(ctx)
		if err != nil {
			res.fail(domain.DatasetUser, err)
			return nil
		}
		res.user = raw
		return nil
	})

	g.Go(func() error {
		raw, err := o.remote.FetchTasks(ctx)
		if err != nil {
			res.fail(domain.DatasetTasks, err)
			return nil
		}
		res.tasks = raw
		return nil
	})

	g.Go(func() error {
		res.tags, res.tagsErr = o.remote.FetchTags(ctx)
		return nil
	})

	g.Go(func() error {
		raw, err := o.remote.FetchParty(ctx)
		switch {
		case err == nil:
			res.party = raw
		case domain.IsNotFound(err):
			res.noParty = true
		default:
			res.partyErr = err
		}
		return nil
	})

	g.Go(func() error {
		if o.cache != nil && o.cache.Fresh() {
			content, err := o.cache.Load(ctx)
			if err != nil {
				res.fail("content", err)
				return nil
			}
			res.content = content
			return nil
		}
		raw, err := o.remote.FetchContent(ctx)
		if err != nil {
			res.fail("content", err)
			return nil
		}
		res.contentRaw = raw
		return nil
	})

	_ = g.Wait()

	if res.tagsErr != nil {
		log.Warn("tags fetch failed, using fallback", zap.Error(res.tagsErr))
	}
	if res.partyErr != nil {
		log.Warn("party fetch failed, using fallback", zap.Error(res.partyErr))
	}
	return res
}

// reconcileContent persists a newly fetched reference document when it changed and
// returns the dataset the engine will use.
func (o *Orchestrator) reconcileContent(ctx context.Context, log *zap.Logger, res *fetchResult) (*domain.Content, error) {
	if res.content != nil {
		return res.content, nil
	}
	if o.cache == nil {
		return nil, domain.NewError(domain.ErrCodeCache, "reference cache not configured")
	}
	if res.contentRaw != nil {
		changed, err := o.cache.Reconcile(res.contentRaw)
		switch {
		case domain.IsDomainError(err, domain.ErrCodeValidation):
			return nil, err
		case err != nil:
			log.Warn("reference data not persisted", zap.Bool("changed", changed), zap.Error(err))
		case changed:
			log.Info("reference data updated")
		}
	}
	return o.cache.Load(ctx)
}

// assemble validates the fetched records in dependency order: tags, tasks, then party.
func (o *Orchestrator) assemble(log *zap.Logger, res *fetchResult, content *domain.Content) (*domain.Snapshot, map[string][]byte, error) {
	user, err := domain.ParseUser(res.user)
	if err != nil {
		return nil, nil, err
	}

	prev := o.current.Load()
	raw := map[string][]byte{domain.DatasetUser: res.user}
	if body, err := json.Marshal(res.tasks); err == nil {
		raw[domain.DatasetTasks] = body
	}

	var tags []domain.Tag
	if res.tagsErr == nil {
		tags = o.parseTags(log, res.tags)
		if body, err := json.Marshal(res.tags); err == nil {
			raw[domain.DatasetTags] = body
		}
	} else {
		tags = o.fallbackTags(log, prev)
	}

	tasks := o.parseTasks(log, res.tasks)

	var party *domain.Party
	switch {
	case res.noParty:
		raw[domain.DatasetParty] = []byte("null")
	case res.partyErr != nil:
		party = o.fallbackParty(log, prev, user.ID)
	default:
		party, err = domain.ParseParty(res.party, user.ID)
		if err != nil {
			log.Warn("party record invalid, using fallback", zap.Error(err))
			party = o.fallbackParty(log, prev, user.ID)
		} else {
			raw[domain.DatasetParty] = res.party
		}
	}
	if party != nil && user.PartyID != "" && party.ID != user.PartyID {
		log.Warn("party does not match the user's party id",
			zap.String("party_id", party.ID),
			zap.String("user_party_id", user.PartyID))
	}

	snap := &domain.Snapshot{
		User:       user,
		Tasks:      tasks,
		Tags:       tags,
		Party:      party,
		Challenges: domain.GroupChallenges(tasks),
		Content:    content,
		FetchedAt:  o.now(),
	}
	return snap, raw, nil
}

func (o *Orchestrator) parseTags(log *zap.Logger, records []json.RawMessage) []domain.Tag {
	tags := make([]domain.Tag, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		tag, err := domain.ParseTag(rec)
		if err != nil {
			log.Warn("skipping malformed tag", zap.Int("index", i), zap.Error(err))
			continue
		}
		if _, dup := seen[tag.ID]; dup {
			log.Warn("skipping duplicate tag", zap.String("tag_id", tag.ID))
			continue
		}
		seen[tag.ID] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func (o *Orchestrator) parseTasks(log *zap.Logger, records []json.RawMessage) []domain.Task {
	tasks := make([]domain.Task, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		task, err := domain.ParseTask(rec)
		if err != nil {
			log.Warn("skipping malformed task", zap.Int("index", i), zap.Error(err))
			continue
		}
		if _, dup := seen[task.ID]; dup {
			log.Warn("skipping duplicate task", zap.String("task_id", task.ID))
			continue
		}
		seen[task.ID] = struct{}{}
		tasks = append(tasks, task)
	}
	return tasks
}

// fallbackTags returns the previous tags, then the archived raw tags, then none.
func (o *Orchestrator) fallbackTags(log *zap.Logger, prev *domain.Snapshot) []domain.Tag {
	if prev != nil {
		return append([]domain.Tag{}, prev.Tags...)
	}
	body := o.archivedRaw(log, domain.DatasetTags)
	if body == nil {
		return []domain.Tag{}
	}
	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		log.Warn("archived tags unreadable", zap.Error(err))
		return []domain.Tag{}
	}
	return o.parseTags(log, records)
}

// fallbackParty returns the previous party, then the archived raw party, then none.
func (o *Orchestrator) fallbackParty(log *zap.Logger, prev *domain.Snapshot, userID string) *domain.Party {
	if prev != nil {
		return prev.Party.Clone()
	}
	body := o.archivedRaw(log, domain.DatasetParty)
	if body == nil || string(body) == "null" {
		return nil
	}
	party, err := domain.ParseParty(body, userID)
	if err != nil {
		log.Warn("archived party unreadable", zap.Error(err))
		return nil
	}
	return party
}

func (o *Orchestrator) archivedRaw(log *zap.Logger, dataset string) []byte {
	if o.archive == nil {
		return nil
	}
	body, err := o.archive.Raw(dataset)
	if err != nil {
		log.Warn("snapshot archive read failed", zap.String("dataset", dataset), zap.Error(err))
		return nil
	}
	return body
}
