package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/catalog-etl/internal/model"
	"github.com/sells-group/catalog-etl/internal/store"
)

// stageFunc runs one pipeline stage under a recorded run and returns its
// result.
type stageFunc func(ctx context.Context, run *model.Run) (*model.RunResult, error)

// recordStage creates a run for stage, executes fn and stores the outcome.
// Failures to record are logged; the stage error is returned as is.
func recordStage(ctx context.Context, st store.Store, stage model.Stage, threshold float64, fn stageFunc) (*model.RunResult, error) {
	log := zap.L().With(zap.String("stage", string(stage)))

	run, err := st.CreateRun(ctx, stage, threshold)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("stage started")

	start := time.Now()
	result, runErr := fn(ctx, run)
	if result == nil {
		result = &model.RunResult{}
	}
	result.Duration = time.Since(start).Milliseconds()
	if runErr != nil {
		result.Error = runErr.Error()
	}

	// The run context may already be cancelled; record with a fresh one.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := st.UpdateRunResult(recCtx, run.ID, result); err != nil {
		log.Error("failed to record run result", zap.Error(err))
	}

	if runErr != nil {
		log.Error("stage failed", zap.Error(runErr), zap.Int64("duration_ms", result.Duration))
		return result, runErr
	}
	log.Info("stage complete",
		zap.Int("total", result.Total),
		zap.Int("matched", result.Matched),
		zap.Int64("duration_ms", result.Duration),
	)
	return result, nil
}
