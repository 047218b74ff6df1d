package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/questboard/domain"
)

// ScoreTask scores a task up or down. On success a detached refresh is started.
func (o *Orchestrator) ScoreTask(ctx context.Context, taskID string, direction domain.Direction) (*domain.ScoreResult, error) {
	if taskID == "" || !direction.IsValid() {
		return nil, domain.ErrInvalidPayload
	}
	res, err := o.remote.ScoreTask(ctx, taskID, direction)
	if err != nil {
		o.logger.Error("score task failed",
			zap.String("task_id", taskID),
			zap.String("direction", string(direction)),
			zap.Error(err))
		return nil, err
	}
	o.logger.Info("task scored", zap.String("task_id", taskID), zap.Float64("delta", res.Delta))
	o.refreshDetached("score")
	return res, nil
}

// ToggleSleep flips the sleeping flag and returns the new value.
func (o *Orchestrator) ToggleSleep(ctx context.Context) (bool, error) {
	sleeping, err := o.remote.ToggleSleep(ctx)
	if err != nil {
		o.logger.Error("toggle sleep failed", zap.Error(err))
		return false, err
	}
	o.logger.Info("sleep toggled", zap.Bool("sleeping", sleeping))
	o.refreshDetached("sleep")
	return sleeping, nil
}

func (o *Orchestrator) LeaveChallenge(ctx context.Context, challengeID string, keep domain.KeepPolicy) error {
	if challengeID == "" || !keep.IsValid() {
		return domain.ErrInvalidPayload
	}
	if err := o.remote.LeaveChallenge(ctx, challengeID, keep); err != nil {
		o.logger.Error("leave challenge failed", zap.String("challenge_id", challengeID), zap.Error(err))
		return err
	}
	o.logger.Info("challenge left", zap.String("challenge_id", challengeID), zap.String("keep", string(keep)))
	o.refreshDetached("leave-challenge")
	return nil
}

func (o *Orchestrator) DeleteTag(ctx context.Context, tagID string) error {
	if tagID == "" {
		return domain.ErrInvalidPayload
	}
	if err := o.remote.DeleteTag(ctx, tagID); err != nil {
		o.logger.Error("delete tag failed", zap.String("tag_id", tagID), zap.Error(err))
		return err
	}
	o.logger.Info("tag deleted", zap.String("tag_id", tagID))
	o.refreshDetached("delete-tag")
	return nil
}
