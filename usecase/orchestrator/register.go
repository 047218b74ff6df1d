package orchestrator

import (
	"context"

	"github.com/fastygo/questboard/domain"
	"github.com/fastygo/questboard/usecase"
)

// Command and query names registered on the dispatcher.
const (
	CommandScore          = "score"
	CommandSleep          = "sleep"
	CommandLeaveChallenge = "leave-challenge"
	CommandDeleteTag      = "delete-tag"
	CommandRefresh        = "refresh"

	QueryStats      = "stats"
	QueryTasks      = "tasks"
	QueryTags       = "tags"
	QueryParty      = "party"
	QueryChallenges = "challenges"
)

type ScoreArgs struct {
	TaskID    string           `json:"task_id"`
	Direction domain.Direction `json:"direction"`
}

type LeaveChallengeArgs struct {
	ChallengeID string            `json:"challenge_id"`
	Keep        domain.KeepPolicy `json:"keep"`
}

type DeleteTagArgs struct {
	TagID string `json:"tag_id"`
}

type SleepResult struct {
	Sleeping bool `json:"sleeping"`
}

// Register exposes the actions and read accessors on d.
func (o *Orchestrator) Register(d *usecase.Dispatcher) {
	d.RegisterCommand(CommandScore, func(ctx context.Context, payload interface{}) (interface{}, error) {
		var args ScoreArgs
		if err := usecase.DecodePayload(payload, &args); err != nil {
			return nil, err
		}
		if args.Direction == "" {
			args.Direction = domain.DirectionUp
		}
		return o.ScoreTask(ctx, args.TaskID, args.Direction)
	})

	d.RegisterCommand(CommandSleep, func(ctx context.Context, _ interface{}) (interface{}, error) {
		sleeping, err := o.ToggleSleep(ctx)
		if err != nil {
			return nil, err
		}
		return SleepResult{Sleeping: sleeping}, nil
	})

	d.RegisterCommand(CommandLeaveChallenge, func(ctx context.Context, payload interface{}) (interface{}, error) {
		var args LeaveChallengeArgs
		if err := usecase.DecodePayload(payload, &args); err != nil {
			return nil, err
		}
		if args.Keep == "" {
			args.Keep = domain.KeepAll
		}
		return nil, o.LeaveChallenge(ctx, args.ChallengeID, args.Keep)
	})

	d.RegisterCommand(CommandDeleteTag, func(ctx context.Context, payload interface{}) (interface{}, error) {
		var args DeleteTagArgs
		if err := usecase.DecodePayload(payload, &args); err != nil {
			return nil, err
		}
		return nil, o.DeleteTag(ctx, args.TagID)
	})

	d.RegisterCommand(CommandRefresh, func(ctx context.Context, _ interface{}) (interface{}, error) {
		if err := o.Refresh(ctx); err != nil {
			return nil, err
		}
		return o.UserStats()
	})

	d.RegisterQuery(QueryStats, func(context.Context, interface{}) (interface{}, error) {
		return o.UserStats()
	})
	d.RegisterQuery(QueryTasks, func(_ context.Context, params interface{}) (interface{}, error) {
		var filter domain.TaskFilter
		if err := usecase.DecodePayload(params, &filter); err != nil {
			return nil, err
		}
		return o.Tasks(filter)
	})
	d.RegisterQuery(QueryTags, func(context.Context, interface{}) (interface{}, error) {
		return o.Tags()
	})
	d.RegisterQuery(QueryParty, func(context.Context, interface{}) (interface{}, error) {
		return o.Party()
	})
	d.RegisterQuery(QueryChallenges, func(context.Context, interface{}) (interface{}, error) {
		return o.Challenges()
	})
}
