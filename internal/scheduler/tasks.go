// Package scheduler runs the background maintenance tasks: periodically
// failing out calls whose terminal callback never arrived.
package scheduler

import "github.com/hibiken/asynq"

// TaskStuckCallSweep is the periodic task that fails out stuck calls.
const TaskStuckCallSweep = "vocero:stuck_call_sweep"

// NewStuckCallSweepTask builds the sweep task. It carries no payload; the
// cutoff is derived from config at execution time.
func NewStuckCallSweepTask() *asynq.Task {
	return asynq.NewTask(TaskStuckCallSweep, nil, asynq.MaxRetry(0))
}
