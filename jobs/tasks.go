package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan rebuilds the trial balance and flags drift.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
	// TaskProjectionRebuild recomputes cached account aggregates from the log.
	TaskProjectionRebuild = "ledger:projection_rebuild"
)

// IntegrityScanPayload selects the as-of date for a scan. Empty means today.
type IntegrityScanPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// ProjectionRebuildPayload limits a rebuild to specific accounts. Empty
// means the whole chart.
type ProjectionRebuildPayload struct {
	AccountIDs []int64 `json:"account_ids,omitempty"`
}

// NewIntegrityScanTask constructs an Asynq task for a trial balance scan.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}

// NewProjectionRebuildTask constructs an Asynq task for an aggregate rebuild.
func NewProjectionRebuildTask(payload ProjectionRebuildPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProjectionRebuild, data), nil
}
