// Package engine implements the sync orchestrator: two reconciliation
// passes over the Notion and Azure DevOps adapters with last-write-wins
// conflict resolution and per-item error isolation.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/syncbridge/internal/mapping"
	"github.com/nhle/syncbridge/internal/model"
	"github.com/nhle/syncbridge/internal/remote"
)

// SourcePort is the engine's view of the Notion adapter.
type SourcePort interface {
	// FetchAll returns every syncable item plus the ids of records
	// dropped for missing titles.
	FetchAll(ctx context.Context) ([]model.SourceItem, []string, error)

	FetchOne(ctx context.Context, id string) (*model.SourceItem, error)

	// WriteBackLink sets only the cross-link field.
	WriteBackLink(ctx context.Context, id, targetURL string) error

	// ApplyTargetUpdate writes the non-nil fields, returning warnings
	// for fields it could not apply.
	ApplyTargetUpdate(
		ctx context.Context,
		id string,
		upd model.SourceFieldUpdate,
	) ([]string, error)

	// FetchChildren resolves subtask ids best-effort.
	FetchChildren(ctx context.Context, ids []string) ([]model.ChildItem, []string)
}

// TargetPort is the engine's view of the Azure DevOps adapter.
type TargetPort interface {
	// CreateItem creates a work item; a non-empty warning reports a
	// failed follow-up state transition on an otherwise successful
	// creation.
	CreateItem(
		ctx context.Context,
		draft model.WorkItemDraft,
	) (*model.TargetItem, string, error)

	CreateChild(
		ctx context.Context,
		title string,
		parentID int,
		sourceID string,
	) (*model.TargetItem, error)

	UpdateState(
		ctx context.Context,
		id int,
		newState string,
		assignee string,
	) (*model.TargetItem, error)

	FetchOne(ctx context.Context, id int) (*model.TargetItem, error)

	FetchLinkedItems(ctx context.Context) ([]model.TargetItem, error)

	ResolveURL(id int) string
}

// Options controls one run.
type Options struct {
	Direction model.Direction
	DryRun    bool

	// Limit, when positive, restricts pass 1 to the first Limit
	// unlinked items, for bounded preview runs. Applied before
	// processing.
	Limit int
}

// Orchestrator drives one sync run. Items are processed strictly one
// at a time; all run state lives on the stack of Run, so concurrent
// runs for different tenants share nothing.
type Orchestrator struct {
	source SourcePort
	target TargetPort
	mapper *mapping.Mapper
	delay  time.Duration
	sink   Sink
}

// New creates an orchestrator. delay is the fixed pause applied after
// every processed item to stay under the external APIs' rate limits;
// sink may be nil for buffered callers.
func New(
	source SourcePort,
	target TargetPort,
	mapper *mapping.Mapper,
	delay time.Duration,
	sink Sink,
) *Orchestrator {
	if sink == nil {
		sink = NullSink{}
	}
	return &Orchestrator{
		source: source,
		target: target,
		mapper: mapper,
		delay:  delay,
		sink:   sink,
	}
}

// Run executes the configured passes. Per-item failures become error
// outcomes and the pass continues; only fetch failures at pass start,
// authentication failures, and context cancellation abort the run. The
// returned result is valid (partial) even when err is non-nil.
func (o *Orchestrator) Run(
	ctx context.Context,
	opts Options,
) (*model.RunResult, error) {
	res := &model.RunResult{}

	// Source ids written during pass 1 of this run. The write-back
	// inflates the source's last-edited signal, so pass 2 must not
	// trust timestamps for these.
	touched := make(map[string]bool)

	if opts.Direction.IncludesSourceToTarget() {
		if err := o.sourceToTarget(ctx, opts, res, touched); err != nil {
			return res, err
		}
	}
	if opts.Direction.IncludesTargetToSource() {
		if err := o.targetToSource(ctx, opts, res, touched); err != nil {
			return res, err
		}
	}

	o.logf(res, "run finished: %s", res.Summary())
	return res, nil
}

// sourceToTarget is pass 1: enumerate source items and reconcile each
// against the target.
func (o *Orchestrator) sourceToTarget(
	ctx context.Context,
	opts Options,
	res *model.RunResult,
	touched map[string]bool,
) error {
	items, dropped, err := o.source.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetching source items: %w", err)
	}
	for _, id := range dropped {
		o.logf(res, "warning: page %s has no title, skipped", id)
	}

	if opts.Limit > 0 {
		items = limitUnlinked(items, opts.Limit)
	}

	o.logf(res, "source->target: %d items to process", len(items))

	for i, item := range items {
		o.sink.Send(ProgressEvent{
			Current: i + 1, Total: len(items), Phase: PhaseSourceToTarget,
		})

		outcome, err := o.syncItemToTarget(ctx, item, opts.DryRun, res, touched)
		if err != nil {
			return err
		}
		o.record(res, outcome)

		if err := o.pause(ctx); err != nil {
			return err
		}
	}

	return nil
}

// syncItemToTarget reconciles one source item. Failures are converted
// to outcomes here and the pass continues; only an auth failure
// escapes, aborting the run.
func (o *Orchestrator) syncItemToTarget(
	ctx context.Context,
	item model.SourceItem,
	dryRun bool,
	res *model.RunResult,
	touched map[string]bool,
) (model.ItemOutcome, error) {
	outcome := model.ItemOutcome{
		SourceID: item.ID,
		TargetID: item.TargetID,
		Title:    item.Title,
	}

	// A cross-link the engine cannot parse was established by hand.
	// Never overwrite it.
	if item.ManuallyLinked() {
		outcome.Action = model.ActionSkipped
		outcome.Detail = "manual link present"
		return outcome, nil
	}

	desired := o.mapper.TargetState(item.Status)

	if !item.Linked() {
		return o.createTarget(ctx, item, desired, dryRun, res, touched, outcome)
	}
	return o.updateTarget(ctx, item, desired, dryRun, outcome)
}

// createTarget handles the create path of pass 1.
func (o *Orchestrator) createTarget(
	ctx context.Context,
	item model.SourceItem,
	desired string,
	dryRun bool,
	res *model.RunResult,
	touched map[string]bool,
	outcome model.ItemOutcome,
) (model.ItemOutcome, error) {
	assignee, mapped := o.mapper.TargetAssignee(item.AssigneeEmail)
	if !mapped {
		// Pass the raw identity through; the target directory may
		// accept it. Never substitute a guessed identity.
		assignee = item.AssigneeEmail
	}

	if dryRun {
		touched[item.ID] = true
		outcome.Action = model.ActionCreated
		outcome.Detail = fmt.Sprintf(
			"would create work item in state %q with %d children",
			desired, len(item.ChildIDs),
		)
		return outcome, nil
	}

	created, warning, err := o.target.CreateItem(ctx, model.WorkItemDraft{
		Title:       item.Title,
		Description: item.Description,
		State:       desired,
		Assignee:    assignee,
		SourceID:    item.ID,
		Extra:       item.Extra,
	})
	if err != nil {
		if remote.IsAuthError(err) {
			return outcome, err
		}
		outcome.Action = model.ActionError
		outcome.Detail = err.Error()
		return outcome, nil
	}
	if warning != "" {
		o.logf(res, "warning: %s", warning)
	}

	touched[item.ID] = true
	outcome.TargetID = created.ID

	if err := o.source.WriteBackLink(ctx, item.ID, created.URL); err != nil {
		o.logf(res, "warning: back link not written on page %s: %v", item.ID, err)
	}

	if len(item.ChildIDs) > 0 {
		children, warnings := o.source.FetchChildren(ctx, item.ChildIDs)
		for _, w := range warnings {
			o.logf(res, "warning: %s", w)
		}
		for _, child := range children {
			if _, err := o.target.CreateChild(ctx, child.Title, created.ID, child.ID); err != nil {
				o.logf(res, "warning: child %s of page %s not created: %v",
					child.ID, item.ID, err)
			}
		}
	}

	outcome.Action = model.ActionCreated
	outcome.Detail = fmt.Sprintf("work item %d created", created.ID)
	return outcome, nil
}

// updateTarget handles the update path of pass 1.
func (o *Orchestrator) updateTarget(
	ctx context.Context,
	item model.SourceItem,
	desired string,
	dryRun bool,
	outcome model.ItemOutcome,
) (model.ItemOutcome, error) {
	current, err := o.target.FetchOne(ctx, item.TargetID)
	if err != nil {
		if remote.IsNotFound(err) {
			outcome.Action = model.ActionSkipped
			outcome.Detail = fmt.Sprintf("work item %d not found", item.TargetID)
			return outcome, nil
		}
		if remote.IsAuthError(err) {
			return outcome, err
		}
		outcome.Action = model.ActionError
		outcome.Detail = err.Error()
		return outcome, nil
	}

	if strings.EqualFold(current.State, desired) {
		outcome.Action = model.ActionSkipped
		outcome.Detail = "no state change"
		return outcome, nil
	}

	if dryRun {
		outcome.Action = model.ActionUpdatedTarget
		outcome.Detail = fmt.Sprintf(
			"would transition state: %s -> %s", current.State, desired,
		)
		return outcome, nil
	}

	if _, err := o.target.UpdateState(ctx, item.TargetID, desired, ""); err != nil {
		if remote.IsInvalidTransition(err) {
			outcome.Action = model.ActionSkipped
			outcome.Detail = fmt.Sprintf(
				"transition %q -> %q rejected by workflow",
				current.State, desired,
			)
			return outcome, nil
		}
		if remote.IsAuthError(err) {
			return outcome, err
		}
		outcome.Action = model.ActionError
		outcome.Detail = err.Error()
		return outcome, nil
	}

	outcome.Action = model.ActionUpdatedTarget
	outcome.Detail = fmt.Sprintf("state: %s -> %s", current.State, desired)
	return outcome, nil
}

// targetToSource is pass 2: enumerate engine-tagged work items and
// reconcile each against its source page.
func (o *Orchestrator) targetToSource(
	ctx context.Context,
	opts Options,
	res *model.RunResult,
	touched map[string]bool,
) error {
	items, err := o.target.FetchLinkedItems(ctx)
	if err != nil {
		return fmt.Errorf("fetching linked work items: %w", err)
	}

	o.logf(res, "target->source: %d items to process", len(items))

	for i, item := range items {
		o.sink.Send(ProgressEvent{
			Current: i + 1, Total: len(items), Phase: PhaseTargetToSource,
		})

		outcome, err := o.syncItemToSource(ctx, item, opts.DryRun, res, touched)
		if err != nil {
			return err
		}
		o.record(res, outcome)

		if err := o.pause(ctx); err != nil {
			return err
		}
	}

	return nil
}

// syncItemToSource reconciles one work item back to its source page
// under the last-write-wins rule.
func (o *Orchestrator) syncItemToSource(
	ctx context.Context,
	item model.TargetItem,
	dryRun bool,
	res *model.RunResult,
	touched map[string]bool,
) (model.ItemOutcome, error) {
	outcome := model.ItemOutcome{
		SourceID: item.SourceID,
		TargetID: item.ID,
		Title:    item.Title,
	}

	if item.SourceID == "" {
		outcome.Action = model.ActionSkipped
		outcome.Detail = "no back-reference tag"
		return outcome, nil
	}

	src, err := o.source.FetchOne(ctx, item.SourceID)
	if err != nil {
		if remote.IsNotFound(err) {
			outcome.Action = model.ActionSkipped
			outcome.Detail = "source page no longer exists"
			return outcome, nil
		}
		if remote.IsAuthError(err) {
			return outcome, err
		}
		outcome.Action = model.ActionError
		outcome.Detail = err.Error()
		return outcome, nil
	}

	// Pass 1 wrote to this page in this run, which bumped its
	// last-edited time; comparing timestamps now would wrongly call the
	// source newer. Fall through to the field comparison instead.
	if !touched[src.ID] {
		if src.LastEditedAt.IsZero() || item.ChangedAt.IsZero() {
			outcome.Action = model.ActionSkipped
			outcome.Detail = "cannot compare timestamps"
			return outcome, nil
		}
		if !item.ChangedAt.After(src.LastEditedAt) {
			outcome.Action = model.ActionSkipped
			outcome.Detail = "source is newer or equal"
			return outcome, nil
		}
	}

	var (
		upd     model.SourceFieldUpdate
		changes []string
	)

	mappedStatus := o.mapper.SourceStatus(item.State)
	if mappedStatus != src.Status {
		upd.Status = &mappedStatus
		changes = append(changes, fmt.Sprintf(
			"status: %s -> %s", src.Status, mappedStatus,
		))
	}

	if item.Title != src.Title {
		title := item.Title
		upd.Title = &title
		changes = append(changes, fmt.Sprintf(
			"title: %s -> %s", src.Title, item.Title,
		))
	}

	// Identity is only written back when a reverse mapping exists;
	// an unmapped assignee is left untouched rather than guessed.
	if mappedEmail, ok := o.mapper.SourceAssignee(item.AssigneeName); ok {
		if mappedEmail != src.AssigneeEmail {
			upd.AssigneeEmail = &mappedEmail
			changes = append(changes, fmt.Sprintf(
				"assignee: %s -> %s", src.AssigneeEmail, mappedEmail,
			))
		}
	}

	if upd.Empty() {
		outcome.Action = model.ActionSkipped
		outcome.Detail = "no changes"
		return outcome, nil
	}

	if dryRun {
		outcome.Action = model.ActionUpdatedSource
		outcome.Detail = "would update " + strings.Join(changes, ", ")
		return outcome, nil
	}

	warnings, err := o.source.ApplyTargetUpdate(ctx, src.ID, upd)
	for _, w := range warnings {
		o.logf(res, "warning: %s", w)
	}
	if err != nil {
		if remote.IsAuthError(err) {
			return outcome, err
		}
		outcome.Action = model.ActionError
		outcome.Detail = err.Error()
		return outcome, nil
	}

	outcome.Action = model.ActionUpdatedSource
	outcome.Detail = strings.Join(changes, ", ")
	return outcome, nil
}

// limitUnlinked keeps the first n items that carry no link at all.
func limitUnlinked(items []model.SourceItem, n int) []model.SourceItem {
	var out []model.SourceItem
	for _, item := range items {
		if item.Linked() || item.ManuallyLinked() {
			continue
		}
		out = append(out, item)
		if len(out) == n {
			break
		}
	}
	return out
}

// pause applies the fixed inter-item delay, honoring cancellation.
// The delay is part of the correctness contract with the external
// APIs, not an optimization.
func (o *Orchestrator) pause(ctx context.Context) error {
	if o.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.delay):
		return nil
	}
}

// logf appends to the run log and emits a log event.
func (o *Orchestrator) logf(
	res *model.RunResult,
	format string,
	args ...interface{},
) {
	res.Logf(format, args...)
	o.sink.Send(LogEvent{Message: fmt.Sprintf(format, args...)})
}

// record stores an item outcome and emits an item event.
func (o *Orchestrator) record(res *model.RunResult, outcome model.ItemOutcome) {
	res.Record(outcome)
	o.sink.Send(ItemEvent{Outcome: outcome})
}
