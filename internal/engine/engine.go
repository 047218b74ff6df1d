// Package engine derives display values from fetched entities: task status, tag
// names, effective attributes, resource ceilings and Daily damage projections.
package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/questboard/domain"
)

const (
	DefaultBaseMaxHealth = 50.0
	DefaultBaseMaxMana   = 30.0

	// UnknownTagName replaces tag ids that have no matching tag.
	UnknownTagName = "Unknown Tag"
)

// Config holds the base resource ceilings.
type Config struct {
	BaseMaxHealth float64
	BaseMaxMana   float64
}

// Graph is the assembled, validated entity graph of one refresh cycle.
type Graph struct {
	User    *domain.User
	Tasks   []domain.Task
	Tags    []domain.Tag
	Party   *domain.Party
	Content *domain.Content
}

// Engine runs the derivation pass. It only writes derived fields of the entities it is given.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Engine {
	if cfg.BaseMaxHealth <= 0 {
		cfg.BaseMaxHealth = DefaultBaseMaxHealth
	}
	if cfg.BaseMaxMana <= 0 {
		cfg.BaseMaxMana = DefaultBaseMaxMana
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Run recomputes every derived field of g from scratch. now is used for Todo due dates.
func (e *Engine) Run(g *Graph, now time.Time) {
	if g == nil || g.User == nil {
		return
	}

	g.User.ResetDerived()
	e.ApplyStats(g.User, g.Content)

	ctx := DeriveContext(g.User, g.Party, g.Content, now)
	tagNames := IndexTags(g.Tags)

	for i := range g.Tasks {
		task := &g.Tasks[i]
		task.ResetDerived()
		task.Status = Status(task, now)
		task.TagNames = e.resolveTags(task, tagNames)
		if task.Kind == domain.KindDaily {
			task.Daily.UserDamage, task.Daily.PartyDamage = ProjectDamage(task, ctx)
		}
	}
}

// ApplyStats writes effective attributes and resource ceilings into u.
func (e *Engine) ApplyStats(u *domain.User, content *domain.Content) {
	gear, missing := EquippedGear(u, content)
	for _, key := range missing {
		e.logger.Warn("equipped gear not found in reference data",
			zap.String("user_id", u.ID),
			zap.String("gear_key", key))
	}
	u.Effective = EffectiveAttributes(u, gear)
	u.MaxHealth = e.cfg.BaseMaxHealth + u.Effective.Con*2
	u.MaxMana = e.cfg.BaseMaxMana + u.Effective.Int*2
}

func (e *Engine) resolveTags(task *domain.Task, names map[string]string) []string {
	resolved, missing := ResolveTagNames(task.TagIDs, names)
	for _, id := range missing {
		e.logger.Warn("task references unknown tag",
			zap.String("task_id", task.ID),
			zap.String("tag_id", id))
	}
	return resolved
}
