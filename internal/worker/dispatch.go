package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fightwatch/api/internal/logging"
)

// LocalDispatcher runs each job on its own goroutine. Used when no Redis
// queue is configured, keeping the service runnable with zero infrastructure.
type LocalDispatcher struct {
	worker *AnalysisWorker
}

func NewLocalDispatcher(w *AnalysisWorker) *LocalDispatcher {
	return &LocalDispatcher{worker: w}
}

// Dispatch starts the job's worker goroutine. The submit request does not
// wait on it; the goroutine owns the job until its terminal transition.
func (d *LocalDispatcher) Dispatch(_ context.Context, jobID string) error {
	go func() {
		if err := d.worker.Run(context.Background(), jobID); err != nil {
			logging.WithComponent("dispatch").Error().Err(err).Str("job_id", jobID).Msg("job run failed")
		}
	}()
	return nil
}

// QueueDispatcher enqueues jobs onto the asynq analysis queue. MaxRetry is 0
// so a failed job stays failed; retries would repeat the terminal transition.
type QueueDispatcher struct {
	client *asynq.Client
}

func NewQueueDispatcher(client *asynq.Client) *QueueDispatcher {
	return &QueueDispatcher{client: client}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, jobID string) error {
	task, err := newAnalysisTask(jobID)
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue("analysis"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue analysis task: %w", err)
	}
	return nil
}

func newAnalysisTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(map[string]string{"jobId": jobID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeAnalyze, data), nil
}
