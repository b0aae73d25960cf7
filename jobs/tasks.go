package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/facelessdevhack/plati-rail-admin/internal/ledger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRecalcAll recalculates the balance of every dealer.
	TaskRecalcAll = "ledger:recalc-all"
)

// taskGrace lets the in-handler context deadline fire before asynq abandons the task.
const taskGrace = 30 * time.Second

// NewRecalcAllTask constructs the asynq task for one recalculate-all run. The run is never
// retried: an operator restarts it from the dashboard after reading the outcome.
func NewRecalcAllTask(req ledger.RecalcRequest, timeout time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecalcAll, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(timeout+taskGrace),
	), nil
}
