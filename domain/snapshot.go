package domain

import (
	"sort"
	"strings"
	"time"
)

// Dataset names of the raw records a snapshot is built from.
const (
	DatasetUser  = "user"
	DatasetTasks = "tasks"
	DatasetTags  = "tags"
	DatasetParty = "party"
)

// Challenge is a summary of the challenge links found in the task list.
type Challenge struct {
	ID        string   `json:"id"`
	ShortName string   `json:"short_name,omitempty"`
	Broken    string   `json:"broken,omitempty"`
	TaskIDs   []string `json:"task_ids"`
}

// Snapshot is one committed, internally consistent view of the account.
// A committed snapshot is never mutated; the next refresh replaces it wholesale.
type Snapshot struct {
	User       *User       `json:"user"`
	Tasks      []Task      `json:"tasks"`
	Tags       []Tag       `json:"tags"`
	Party      *Party      `json:"party,omitempty"`
	Challenges []Challenge `json:"challenges,omitempty"`
	Content    *Content    `json:"-"`
	FetchedAt  time.Time   `json:"fetched_at"`
}

// TaskFilter narrows Tasks; zero-valued fields match everything.
type TaskFilter struct {
	Kind   TaskKind   `json:"kind,omitempty"`
	Status TaskStatus `json:"status,omitempty"`
	TagID  string     `json:"tag,omitempty"`
	Query  string     `json:"query,omitempty"`
}

func (f TaskFilter) Match(t *Task) bool {
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.TagID != "" && !containsString(t.TagIDs, f.TagID) {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" && !strings.Contains(strings.ToLower(t.Text), strings.ToLower(q)) {
		return false
	}
	return true
}

// GroupChallenges builds challenge summaries from the challenge links of tasks, ordered by id.
func GroupChallenges(tasks []Task) []Challenge {
	byID := make(map[string]*Challenge)
	for i := range tasks {
		link := tasks[i].Challenge
		if link == nil || link.ID == "" {
			continue
		}
		c, ok := byID[link.ID]
		if !ok {
			c = &Challenge{ID: link.ID}
			byID[link.ID] = c
		}
		if c.ShortName == "" {
			c.ShortName = link.ShortName
		}
		if c.Broken == "" {
			c.Broken = link.Broken
		}
		c.TaskIDs = append(c.TaskIDs, tasks[i].ID)
	}

	out := make([]Challenge, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
