package engine

import (
	"math"
	"time"

	"github.com/fastygo/questboard/domain"
)

const (
	// DeltaBase is raised to the task value; lower (redder) values hurt more.
	DeltaBase = 0.9747

	// ConMitigationDivisor and MinConMitigation bound how much constitution reduces damage.
	ConMitigationDivisor = 250.0
	MinConMitigation     = 0.1

	userDamageFactor = 2.0
)

// Context is the per-refresh input shared by every Daily projection.
type Context struct {
	EffectiveCon    float64
	Stealth         bool
	Sleeping        bool
	BossQuestActive bool
	BossStrength    float64
	Now             time.Time
}

// DeriveContext builds the projection context from the user, the party and the reference data.
// Effective attributes must already be computed on u.
func DeriveContext(u *domain.User, party *domain.Party, content *domain.Content, now time.Time) Context {
	ctx := Context{
		EffectiveCon: u.Effective.Con,
		Stealth:      u.Stealth > 0,
		Sleeping:     u.Sleeping,
		Now:          now,
	}
	if party == nil || !party.Quest.Ongoing() {
		return ctx
	}
	quest, ok := content.QuestByKey(party.Quest.Key)
	if !ok || quest.Boss == nil {
		return ctx
	}
	ctx.BossQuestActive = true
	ctx.BossStrength = quest.Boss.Strength
	return ctx
}

// ProjectDamage returns the damage the user and the party boss would deal if the Daily
// stays unfinished. Both results are nil when no damage applies, or when the task value
// is so extreme that the projection is not a finite number.
func ProjectDamage(t *domain.Task, ctx Context) (userDamage, partyDamage *float64) {
	d := t.Daily
	if t.Kind != domain.KindDaily || d == nil {
		return nil, nil
	}
	if !d.IsDue || d.Completed || ctx.Sleeping || ctx.Stealth {
		return nil, nil
	}

	delta := math.Pow(DeltaBase, t.Value)
	if math.IsInf(delta, 0) || math.IsNaN(delta) {
		return nil, nil
	}
	effectiveDelta := delta * (1 - checklistProgress(d.Checklist))
	conMitigation := math.Max(MinConMitigation, 1-ctx.EffectiveCon/ConMitigationDivisor)
	priority := float64(t.Priority)

	user := clampRound(effectiveDelta * conMitigation * priority * userDamageFactor)
	if !finite(user) {
		return nil, nil
	}
	userDamage = &user

	if ctx.BossQuestActive && ctx.BossStrength > 0 {
		party := clampRound(effectiveDelta * priority * ctx.BossStrength)
		if finite(party) {
			partyDamage = &party
		}
	}
	return userDamage, partyDamage
}

func checklistProgress(items []domain.ChecklistItem) float64 {
	done, total := domain.ChecklistProgress(items)
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

// clampRound rounds to one decimal and clamps to zero.
func clampRound(v float64) float64 {
	r := math.Round(v*10) / 10
	if r <= 0 {
		return 0
	}
	return r
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
