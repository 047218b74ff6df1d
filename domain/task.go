package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// TaskKind is the discriminator of the closed task union.
type TaskKind string

const (
	KindHabit  TaskKind = "habit"
	KindDaily  TaskKind = "daily"
	KindTodo   TaskKind = "todo"
	KindReward TaskKind = "reward"
)

func (k TaskKind) IsValid() bool {
	_, ok := taskDecoders[k]
	return ok
}

// TaskStatus is the engine-calculated state of a task; the valid set depends on the kind.
type TaskStatus string

const (
	StatusGoodBad   TaskStatus = "good_bad"
	StatusGood      TaskStatus = "good"
	StatusBad       TaskStatus = "bad"
	StatusNeutral   TaskStatus = "neutral"
	StatusComplete  TaskStatus = "complete"
	StatusDue       TaskStatus = "due"
	StatusNotDue    TaskStatus = "not_due"
	StatusNoDueDate TaskStatus = "no_due_date"
	StatusPastDue   TaskStatus = "past_due"
	StatusAvailable TaskStatus = "available"
)

// Priority is the task difficulty multiplier.
type Priority float64

const (
	PriorityTrivial Priority = 0.1
	PriorityEasy    Priority = 1
	PriorityMedium  Priority = 1.5
	PriorityHard    Priority = 2
)

var priorities = []Priority{PriorityTrivial, PriorityEasy, PriorityMedium, PriorityHard}

// NormalizePriority snaps p to one of the fixed levels, reporting false when p is not close to any.
func NormalizePriority(p float64) (Priority, bool) {
	for _, level := range priorities {
		if math.Abs(p-float64(level)) < 1e-6 {
			return level, true
		}
	}
	return 0, false
}

type ChecklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// ChecklistProgress returns completed and total item counts.
func ChecklistProgress(items []ChecklistItem) (done, total int) {
	for _, item := range items {
		if item.Completed {
			done++
		}
	}
	return done, len(items)
}

// ChallengeLink ties a task to the challenge it was copied from. Broken is non-empty
// when the challenge or its source task no longer exists.
type ChallengeLink struct {
	ID        string `json:"id"`
	ShortName string `json:"short_name,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	Broken    string `json:"broken,omitempty"`
}

type HabitDetails struct {
	Up          bool `json:"up"`
	Down        bool `json:"down"`
	CounterUp   int  `json:"counter_up"`
	CounterDown int  `json:"counter_down"`
}

// DailyDetails carries the Daily variant. UserDamage and PartyDamage are derived
// and nil when no damage is projected.
type DailyDetails struct {
	IsDue     bool            `json:"is_due"`
	Completed bool            `json:"completed"`
	Streak    int             `json:"streak"`
	Checklist []ChecklistItem `json:"checklist,omitempty"`

	UserDamage  *float64 `json:"user_damage"`
	PartyDamage *float64 `json:"party_damage"`
}

type TodoDetails struct {
	Completed bool            `json:"completed"`
	DueDate   *time.Time      `json:"due_date,omitempty"`
	Checklist []ChecklistItem `json:"checklist,omitempty"`
}

type RewardDetails struct {
	Cost float64 `json:"cost"`
}

// Task is one member of the closed union {Habit, Daily, Todo, Reward}. Exactly one
// of the variant pointers matching Kind is set.
type Task struct {
	ID        string         `json:"id"`
	Kind      TaskKind       `json:"type"`
	Text      string         `json:"text"`
	Notes     string         `json:"notes,omitempty"`
	Value     float64        `json:"value"`
	Priority  Priority       `json:"priority"`
	Attribute Attribute      `json:"attribute"`
	TagIDs    []string       `json:"tag_ids,omitempty"`
	Challenge *ChallengeLink `json:"challenge,omitempty"`

	Habit  *HabitDetails  `json:"habit,omitempty"`
	Daily  *DailyDetails  `json:"daily,omitempty"`
	Todo   *TodoDetails   `json:"todo,omitempty"`
	Reward *RewardDetails `json:"reward,omitempty"`

	Status   TaskStatus `json:"status"`
	TagNames []string   `json:"tag_names,omitempty"`
}

// ResetDerived clears every engine-owned field.
func (t *Task) ResetDerived() {
	t.Status = ""
	t.TagNames = nil
	if t.Daily != nil {
		t.Daily.UserDamage = nil
		t.Daily.PartyDamage = nil
	}
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	cp := t
	cp.TagIDs = append([]string(nil), t.TagIDs...)
	cp.TagNames = append([]string(nil), t.TagNames...)
	if t.Challenge != nil {
		c := *t.Challenge
		cp.Challenge = &c
	}
	if t.Habit != nil {
		h := *t.Habit
		cp.Habit = &h
	}
	if t.Daily != nil {
		d := *t.Daily
		d.Checklist = append([]ChecklistItem(nil), t.Daily.Checklist...)
		d.UserDamage = cloneFloat(t.Daily.UserDamage)
		d.PartyDamage = cloneFloat(t.Daily.PartyDamage)
		cp.Daily = &d
	}
	if t.Todo != nil {
		td := *t.Todo
		td.Checklist = append([]ChecklistItem(nil), t.Todo.Checklist...)
		if t.Todo.DueDate != nil {
			due := *t.Todo.DueDate
			td.DueDate = &due
		}
		cp.Todo = &td
	}
	if t.Reward != nil {
		r := *t.Reward
		cp.Reward = &r
	}
	return cp
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

type taskPayload struct {
	ID        string   `json:"id"`
	MongoID   string   `json:"_id"`
	Type      TaskKind `json:"type"`
	Text      string   `json:"text"`
	Notes     string   `json:"notes"`
	Value     float64  `json:"value"`
	Priority  *float64 `json:"priority"`
	Attribute string   `json:"attribute"`
	Tags      []string `json:"tags"`
	Challenge struct {
		ID        string `json:"id"`
		ShortName string `json:"shortName"`
		TaskID    string `json:"taskId"`
		Broken    string `json:"broken"`
	} `json:"challenge"`

	Up          *bool   `json:"up"`
	Down        *bool   `json:"down"`
	CounterUp   int     `json:"counterUp"`
	CounterDown int     `json:"counterDown"`
	IsDue       bool    `json:"isDue"`
	Completed   bool    `json:"completed"`
	Streak      int     `json:"streak"`
	Date        *string `json:"date"`
	Checklist   []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		Completed bool   `json:"completed"`
	} `json:"checklist"`
}

type taskDecoder func(p *taskPayload, t *Task) error

// taskDecoders maps the discriminator to the variant constructor.
var taskDecoders = map[TaskKind]taskDecoder{
	KindHabit:  decodeHabit,
	KindDaily:  decodeDaily,
	KindTodo:   decodeTodo,
	KindReward: decodeReward,
}

// ParseTask validates a raw task record and builds the variant named by its "type" field.
func ParseTask(raw json.RawMessage) (Task, error) {
	var p taskPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Task{}, WrapError(ErrCodeValidation, "decode task", err)
	}

	id := firstNonEmpty(p.ID, p.MongoID)
	if id == "" {
		return Task{}, Validationf("task: missing id")
	}
	decode, ok := taskDecoders[p.Type]
	if !ok {
		return Task{}, Validationf("task %s: unknown type %q", id, p.Type)
	}
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return Task{}, Validationf("task %s: non-finite value", id)
	}

	priority := PriorityEasy
	if p.Priority != nil {
		level, ok := NormalizePriority(*p.Priority)
		if !ok {
			return Task{}, Validationf("task %s: invalid priority %v", id, *p.Priority)
		}
		priority = level
	}

	attr := Attribute(strings.ToLower(p.Attribute))
	if attr == "" {
		attr = AttrStrength
	}
	if !attr.IsValid() {
		return Task{}, Validationf("task %s: invalid attribute %q", id, p.Attribute)
	}

	t := Task{
		ID:        id,
		Kind:      p.Type,
		Text:      p.Text,
		Notes:     p.Notes,
		Value:     p.Value,
		Priority:  priority,
		Attribute: attr,
		TagIDs:    dedupe(p.Tags),
	}
	if p.Challenge.ID != "" {
		t.Challenge = &ChallengeLink{
			ID:        p.Challenge.ID,
			ShortName: p.Challenge.ShortName,
			TaskID:    p.Challenge.TaskID,
			Broken:    p.Challenge.Broken,
		}
	}

	if err := decode(&p, &t); err != nil {
		return Task{}, err
	}
	return t, nil
}

func decodeHabit(p *taskPayload, t *Task) error {
	t.Habit = &HabitDetails{
		Up:          p.Up == nil || *p.Up,
		Down:        p.Down == nil || *p.Down,
		CounterUp:   p.CounterUp,
		CounterDown: p.CounterDown,
	}
	return nil
}

func decodeDaily(p *taskPayload, t *Task) error {
	if p.Streak < 0 {
		return Validationf("task %s: negative streak %d", t.ID, p.Streak)
	}
	checklist, err := decodeChecklist(p, t.ID)
	if err != nil {
		return err
	}
	t.Daily = &DailyDetails{
		IsDue:     p.IsDue,
		Completed: p.Completed,
		Streak:    p.Streak,
		Checklist: checklist,
	}
	return nil
}

func decodeTodo(p *taskPayload, t *Task) error {
	checklist, err := decodeChecklist(p, t.ID)
	if err != nil {
		return err
	}
	due, err := parseDueDate(p.Date)
	if err != nil {
		return Validationf("task %s: invalid due date %q", t.ID, *p.Date)
	}
	t.Todo = &TodoDetails{
		Completed: p.Completed,
		DueDate:   due,
		Checklist: checklist,
	}
	return nil
}

func decodeReward(p *taskPayload, t *Task) error {
	if p.Value < 0 {
		return Validationf("task %s: negative reward cost %v", t.ID, p.Value)
	}
	t.Reward = &RewardDetails{Cost: p.Value}
	return nil
}

func decodeChecklist(p *taskPayload, taskID string) ([]ChecklistItem, error) {
	if len(p.Checklist) == 0 {
		return nil, nil
	}
	items := make([]ChecklistItem, 0, len(p.Checklist))
	for i, item := range p.Checklist {
		if item.ID == "" {
			return nil, Validationf("task %s: checklist item %d has no id", taskID, i)
		}
		items = append(items, ChecklistItem{ID: item.ID, Text: item.Text, Completed: item.Completed})
	}
	return items, nil
}

var dueDateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	var lastErr error
	for _, layout := range dueDateLayouts {
		parsed, err := time.Parse(layout, strings.TrimSpace(*raw))
		if err == nil {
			return &parsed, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
