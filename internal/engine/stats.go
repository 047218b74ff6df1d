package engine

import (
	"math"
	"sort"

	"github.com/fastygo/questboard/domain"
)

const (
	// MaxLevelBonus caps the attribute bonus granted by level.
	MaxLevelBonus = 50.0

	// ClassGearMultiplier applies to gear matching the user's class or the base class.
	ClassGearMultiplier = 1.5
)

// LevelBonus returns min(50, floor(level/2)).
func LevelBonus(level int) float64 {
	if level <= 0 {
		return 0
	}
	return math.Min(MaxLevelBonus, math.Floor(float64(level)/2))
}

// EquippedGear resolves the user's equipped keys against content. Keys that are
// not found are returned in missing, sorted for stable logging.
func EquippedGear(u *domain.User, content *domain.Content) (gear []domain.Gear, missing []string) {
	slots := make([]string, 0, len(u.Equipped))
	for slot := range u.Equipped {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	for _, slot := range slots {
		key := u.Equipped[slot]
		item, ok := content.GearByKey(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		gear = append(gear, item)
	}
	return gear, missing
}

// GearMultiplier is 1.5 for items of the user's class or the base class, 1.0 otherwise.
func GearMultiplier(item domain.Gear, class domain.Class) float64 {
	if item.Class == domain.ClassBase || (class != domain.ClassNone && item.Class == class) {
		return ClassGearMultiplier
	}
	return 1.0
}

// EffectiveAttributes combines base points, buffs, training, level bonus and gear.
func EffectiveAttributes(u *domain.User, gear []domain.Gear) domain.AttributeSet {
	var out domain.AttributeSet
	levelBonus := LevelBonus(u.Level)
	for _, attr := range domain.Attributes {
		value := u.Points.Get(attr) + u.Buffs.Get(attr) + u.Training.Get(attr) + levelBonus
		for _, item := range gear {
			value += item.Stats.Get(attr) * GearMultiplier(item, u.Class)
		}
		out.Set(attr, value)
	}
	return out
}
