package transport

import (
	"fmt"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/questboard/domain"
)

// TaskQuery is the query string of GET /api/v1/tasks.
type TaskQuery struct {
	Kind   string
	Status string
	Tag    string
	Query  string
}

func ParseTaskQuery(args *fasthttp.Args) TaskQuery {
	return TaskQuery{
		Kind:   string(args.Peek("kind")),
		Status: string(args.Peek("status")),
		Tag:    string(args.Peek("tag")),
		Query:  string(args.Peek("q")),
	}
}

// Filter validates the query and converts it into a task filter.
func (q TaskQuery) Filter() (domain.TaskFilter, error) {
	kind := domain.TaskKind(q.Kind)
	if kind != "" && !kind.IsValid() {
		return domain.TaskFilter{}, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unknown task kind %q", q.Kind))
	}
	return domain.TaskFilter{
		Kind:   kind,
		Status: domain.TaskStatus(q.Status),
		TagID:  q.Tag,
		Query:  q.Query,
	}, nil
}

// ActionResponse wraps the result of a named action.
type ActionResponse struct {
	Action string      `json:"action"`
	Result interface{} `json:"result,omitempty"`
}
