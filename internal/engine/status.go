package engine

import (
	"time"

	"github.com/fastygo/questboard/domain"
)

// Status computes the calculated status of a task for its kind.
func Status(t *domain.Task, now time.Time) domain.TaskStatus {
	switch t.Kind {
	case domain.KindHabit:
		return habitStatus(t.Habit)
	case domain.KindDaily:
		return dailyStatus(t.Daily)
	case domain.KindTodo:
		return todoStatus(t.Todo, now)
	case domain.KindReward:
		return domain.StatusAvailable
	default:
		return ""
	}
}

func habitStatus(h *domain.HabitDetails) domain.TaskStatus {
	if h == nil {
		return domain.StatusNeutral
	}
	switch {
	case h.Up && h.Down:
		return domain.StatusGoodBad
	case h.Up:
		return domain.StatusGood
	case h.Down:
		return domain.StatusBad
	default:
		return domain.StatusNeutral
	}
}

func dailyStatus(d *domain.DailyDetails) domain.TaskStatus {
	switch {
	case d == nil:
		return domain.StatusNotDue
	case d.Completed:
		return domain.StatusComplete
	case d.IsDue:
		return domain.StatusDue
	default:
		return domain.StatusNotDue
	}
}

func todoStatus(td *domain.TodoDetails, now time.Time) domain.TaskStatus {
	switch {
	case td == nil:
		return domain.StatusNoDueDate
	case td.Completed:
		return domain.StatusComplete
	case td.DueDate == nil:
		return domain.StatusNoDueDate
	case td.DueDate.Before(now):
		return domain.StatusPastDue
	default:
		return domain.StatusDue
	}
}

// IndexTags maps tag ids to names.
func IndexTags(tags []domain.Tag) map[string]string {
	names := make(map[string]string, len(tags))
	for _, tag := range tags {
		names[tag.ID] = tag.Name
	}
	return names
}

// ResolveTagNames maps ids to names in order; unknown ids resolve to UnknownTagName
// and are also reported in missing.
func ResolveTagNames(ids []string, names map[string]string) (resolved, missing []string) {
	if len(ids) == 0 {
		return nil, nil
	}
	resolved = make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := names[id]
		if !ok {
			missing = append(missing, id)
			name = UnknownTagName
		}
		resolved = append(resolved, name)
	}
	return resolved, missing
}
