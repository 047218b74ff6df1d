package orchestrator

import (
	"github.com/fastygo/questboard/domain"
)

// Snapshot returns the last committed snapshot. Callers must treat it as read-only.
func (o *Orchestrator) Snapshot() (*domain.Snapshot, error) {
	snap := o.current.Load()
	if snap == nil {
		return nil, domain.ErrNoSnapshot
	}
	return snap, nil
}

// UserStats returns a copy of the committed user with its derived stats.
func (o *Orchestrator) UserStats() (*domain.User, error) {
	snap, err := o.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.User.Clone(), nil
}

// Tasks returns copies of the committed tasks matching filter, in fetch order.
func (o *Orchestrator) Tasks(filter domain.TaskFilter) ([]domain.Task, error) {
	snap, err := o.Snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(snap.Tasks))
	for i := range snap.Tasks {
		if filter.Match(&snap.Tasks[i]) {
			out = append(out, snap.Tasks[i].Clone())
		}
	}
	return out, nil
}

// Task returns a copy of one committed task.
func (o *Orchestrator) Task(id string) (*domain.Task, error) {
	snap, err := o.Snapshot()
	if err != nil {
		return nil, err
	}
	for i := range snap.Tasks {
		if snap.Tasks[i].ID == id {
			t := snap.Tasks[i].Clone()
			return &t, nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (o *Orchestrator) Tags() ([]domain.Tag, error) {
	snap, err := o.Snapshot()
	if err != nil {
		return nil, err
	}
	return append([]domain.Tag{}, snap.Tags...), nil
}

// Party returns a copy of the committed party, or nil when the user is not in one.
func (o *Orchestrator) Party() (*domain.Party, error) {
	snap, err := o.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Party.Clone(), nil
}

func (o *Orchestrator) Challenges() ([]domain.Challenge, error) {
	snap, err := o.Snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Challenge, len(snap.Challenges))
	for i, c := range snap.Challenges {
		c.TaskIDs = append([]string(nil), c.TaskIDs...)
		out[i] = c
	}
	return out, nil
}
