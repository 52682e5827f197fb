package model

import "time"

// Direction selects which reconciliation passes a run executes.
type Direction string

const (
	DirectionBoth           Direction = "both"
	DirectionSourceToTarget Direction = "source_to_target"
	DirectionTargetToSource Direction = "target_to_source"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionBoth, DirectionSourceToTarget, DirectionTargetToSource:
		return true
	}
	return false
}

// IncludesSourceToTarget reports whether pass 1 runs.
func (d Direction) IncludesSourceToTarget() bool {
	return d == DirectionBoth || d == DirectionSourceToTarget
}

// IncludesTargetToSource reports whether pass 2 runs.
func (d Direction) IncludesTargetToSource() bool {
	return d == DirectionBoth || d == DirectionTargetToSource
}

// RunStatus is the lifecycle state of a persisted run record.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is the persisted record of one sync run. It is written in
// running state before the orchestrator starts and finalized afterward.
type RunRecord struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Direction  Direction `json:"direction"`
	DryRun     bool      `json:"dry_run"`
	Status     RunStatus `json:"status"`
	Result     RunResult `json:"result"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
