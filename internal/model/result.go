package model

import "fmt"

// Action classifies the outcome of processing a single item.
type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdatedTarget Action = "updated_target"
	ActionUpdatedSource Action = "updated_source"
	ActionSkipped       Action = "skipped"
	ActionError         Action = "error"
)

// ItemOutcome is the per-item audit record appended for every processed
// item, including skips.
type ItemOutcome struct {
	SourceID string `json:"source_id"`
	TargetID int    `json:"target_id,omitempty"`
	Title    string `json:"title"`
	Action   Action `json:"action"`

	// Detail is a human-readable explanation: which fields changed, why
	// the item was skipped, or the failure message.
	Detail string `json:"detail,omitempty"`
}

// SyncError identifies one item that failed during a run.
type SyncError struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// RunResult aggregates everything one sync run produced. It is mutated
// additively while the run executes and immutable once returned.
type RunResult struct {
	Created       int `json:"created"`
	UpdatedTarget int `json:"updated_target"`
	UpdatedSource int `json:"updated_source"`
	Skipped       int `json:"skipped"`
	Errored       int `json:"errored"`

	Errors []SyncError   `json:"errors,omitempty"`
	Log    []string      `json:"log,omitempty"`
	Items  []ItemOutcome `json:"items,omitempty"`
}

// Record appends an item outcome and bumps the matching counter. Error
// outcomes are also added to the error list.
func (r *RunResult) Record(o ItemOutcome) {
	r.Items = append(r.Items, o)

	switch o.Action {
	case ActionCreated:
		r.Created++
	case ActionUpdatedTarget:
		r.UpdatedTarget++
	case ActionUpdatedSource:
		r.UpdatedSource++
	case ActionSkipped:
		r.Skipped++
	case ActionError:
		r.Errored++
		r.Errors = append(r.Errors, SyncError{
			SourceID: o.SourceID,
			Title:    o.Title,
			Message:  o.Detail,
		})
	}
}

// Logf appends a formatted line to the run log.
func (r *RunResult) Logf(format string, args ...interface{}) {
	r.Log = append(r.Log, fmt.Sprintf(format, args...))
}

// Total returns the number of processed items across all outcomes.
func (r *RunResult) Total() int {
	return r.Created + r.UpdatedTarget + r.UpdatedSource + r.Skipped + r.Errored
}

// Summary renders the counters as a single log-friendly line.
func (r *RunResult) Summary() string {
	return fmt.Sprintf(
		"created=%d updated_target=%d updated_source=%d skipped=%d errors=%d",
		r.Created, r.UpdatedTarget, r.UpdatedSource, r.Skipped, r.Errored,
	)
}
