// Package runner is the entry point wrapping the sync engine: it
// resolves tenant configuration and credentials, serializes runs per
// tenant, persists run records, and exposes both a buffered and a
// streaming invocation over the same execution path.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/syncbridge/internal/azdo"
	"github.com/nhle/syncbridge/internal/credential"
	"github.com/nhle/syncbridge/internal/engine"
	"github.com/nhle/syncbridge/internal/mapping"
	"github.com/nhle/syncbridge/internal/model"
	"github.com/nhle/syncbridge/internal/notion"
	"github.com/nhle/syncbridge/internal/remote"
	"github.com/nhle/syncbridge/internal/store"
)

// streamBuffer sizes the event channel handed to streaming callers.
const streamBuffer = 64

// Request describes one sync invocation.
type Request struct {
	TenantID  string
	Direction model.Direction
	DryRun    bool
	Limit     int
}

// buildFunc constructs an orchestrator for a resolved tenant. Swappable
// in tests to avoid real credentials and adapters.
type buildFunc func(
	ctx context.Context,
	tenantID string,
	tenant model.TenantConfig,
	sink engine.Sink,
) (*engine.Orchestrator, error)

// Runner executes sync runs. Safe for concurrent use; runs for the same
// tenant are serialized so two reconciliations never interleave writes.
type Runner struct {
	cfg   *model.AppConfig
	store store.Store
	build buildFunc

	mu      sync.Mutex
	tenants map[string]*sync.Mutex
}

// New creates a runner over the loaded configuration and run store.
func New(cfg *model.AppConfig, st store.Store) *Runner {
	r := &Runner{
		cfg:     cfg,
		store:   st,
		tenants: make(map[string]*sync.Mutex),
	}
	r.build = r.buildOrchestrator
	return r
}

// Run executes a sync synchronously and returns the persisted record.
// The record is valid (partial) even when err is non-nil, as long as
// execution got past configuration resolution.
func (r *Runner) Run(ctx context.Context, req Request) (*model.RunRecord, error) {
	orch, err := r.prepare(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, req, orch)
}

// Stream executes a sync in the background and returns its ordered
// event feed. The feed always ends with a CompleteEvent or ErrorEvent
// and is then closed. Configuration and credential failures surface as
// an error here, before anything is persisted.
func (r *Runner) Stream(ctx context.Context, req Request) (<-chan engine.Event, error) {
	sink := engine.NewChannelSink(ctx, streamBuffer)

	orch, err := r.prepare(ctx, req, sink)
	if err != nil {
		return nil, err
	}

	go func() {
		defer sink.Close()

		rec, err := r.execute(ctx, req, orch)
		if err != nil {
			sink.Send(engine.ErrorEvent{Message: err.Error()})
			return
		}
		sink.Send(engine.CompleteEvent{Result: &rec.Result})
	}()

	return sink.C, nil
}

// prepare validates the request and builds the orchestrator. Nothing is
// persisted yet, so a tenant misconfiguration leaves no trace in the
// run history.
func (r *Runner) prepare(
	ctx context.Context,
	req Request,
	sink engine.Sink,
) (*engine.Orchestrator, error) {
	if !req.Direction.Valid() {
		return nil, &remote.ConfigError{
			TenantID: req.TenantID,
			Message:  fmt.Sprintf("unknown sync direction %q", req.Direction),
		}
	}

	tenant, err := r.resolveTenant(req.TenantID)
	if err != nil {
		return nil, err
	}

	return r.build(ctx, req.TenantID, tenant, sink)
}

// resolveTenant looks up and validates a tenant's configuration,
// reporting each missing piece distinctly.
func (r *Runner) resolveTenant(tenantID string) (model.TenantConfig, error) {
	tenant, ok := r.cfg.Tenants[tenantID]
	if !ok {
		return model.TenantConfig{}, &remote.ConfigError{
			TenantID: tenantID,
			Message:  "tenant is not configured",
		}
	}
	if len(tenant.Notion.DatabaseIDs) == 0 {
		return model.TenantConfig{}, &remote.ConfigError{
			TenantID: tenantID,
			Message:  "no Notion database ids configured",
		}
	}
	if tenant.AzDO.OrgURL == "" {
		return model.TenantConfig{}, &remote.ConfigError{
			TenantID: tenantID,
			Message:  "no Azure DevOps organization URL configured",
		}
	}
	if tenant.AzDO.Project == "" {
		return model.TenantConfig{}, &remote.ConfigError{
			TenantID: tenantID,
			Message:  "no Azure DevOps project configured",
		}
	}
	return tenant, nil
}

// buildOrchestrator resolves credentials and assembles the adapters,
// mapper, and engine for one tenant.
func (r *Runner) buildOrchestrator(
	ctx context.Context,
	tenantID string,
	tenant model.TenantConfig,
	sink engine.Sink,
) (*engine.Orchestrator, error) {
	notionToken, err := r.resolveNotionToken(ctx, tenantID, tenant)
	if err != nil {
		return nil, err
	}

	pat, err := credential.Get(credential.AzDOPATKey(tenantID))
	if err != nil {
		return nil, &remote.ConfigError{
			TenantID: tenantID,
			Message:  "no Azure DevOps personal access token stored, run connect first",
		}
	}

	source := notion.NewAdapter(
		notionToken, tenant.Notion.DatabaseIDs, tenant.Notion.Bindings,
	)
	target := azdo.NewAdapter(tenant.AzDO, azdo.PATAuth(pat))
	mapper := mapping.New(tenant.Rules)
	delay := time.Duration(tenant.RateLimitDelayMS) * time.Millisecond

	return engine.New(source, target, mapper, delay, sink), nil
}

// resolveNotionToken returns the tenant's Notion credential per its
// configured auth mode.
func (r *Runner) resolveNotionToken(
	ctx context.Context,
	tenantID string,
	tenant model.TenantConfig,
) (string, error) {
	switch tenant.Notion.AuthMode {
	case model.NotionAuthOAuth:
		return notion.ResolveOAuthToken(ctx, tenantID)
	case model.NotionAuthToken:
		token, err := credential.Get(credential.NotionTokenKey(tenantID))
		if err != nil {
			return "", &remote.ConfigError{
				TenantID: tenantID,
				Message:  "no Notion integration token stored, run connect first",
			}
		}
		return token, nil
	default:
		return "", &remote.ConfigError{
			TenantID: tenantID,
			Message: fmt.Sprintf(
				"unknown Notion auth mode %q", tenant.Notion.AuthMode,
			),
		}
	}
}

// execute runs the engine under the tenant lock with full run-record
// bookkeeping. The record moves running -> completed/failed; a
// cancelled or aborted run still persists everything processed so far.
func (r *Runner) execute(
	ctx context.Context,
	req Request,
	orch *engine.Orchestrator,
) (*model.RunRecord, error) {
	lock := r.tenantLock(req.TenantID)
	lock.Lock()
	defer lock.Unlock()

	rec := &model.RunRecord{
		TenantID:  req.TenantID,
		Direction: req.Direction,
		DryRun:    req.DryRun,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.CreateRun(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording run start: %w", err)
	}
	slog.Debug("sync run starting",
		"run_id", rec.ID, "tenant", req.TenantID,
		"direction", req.Direction, "dry_run", req.DryRun,
	)

	res, runErr := orch.Run(ctx, engine.Options{
		Direction: req.Direction,
		DryRun:    req.DryRun,
		Limit:     req.Limit,
	})

	rec.Status = model.RunStatusCompleted
	if runErr != nil {
		rec.Status = model.RunStatusFailed
		res.Logf("run aborted: %v", runErr)
		res.Errors = append(res.Errors, model.SyncError{Message: runErr.Error()})
	}
	rec.Result = *res
	rec.FinishedAt = time.Now().UTC()
	slog.Debug("sync run finished",
		"run_id", rec.ID, "status", rec.Status, "summary", res.Summary(),
	)

	// Persist with a fresh context: the run context may already be
	// cancelled and the partial result must survive regardless.
	if err := r.store.FinishRun(context.Background(), *rec); err != nil {
		if runErr != nil {
			return rec, fmt.Errorf("recording aborted run: %v (run error: %w)", err, runErr)
		}
		return rec, fmt.Errorf("recording run result: %w", err)
	}

	return rec, runErr
}

// tenantLock returns the mutex serializing runs for one tenant.
func (r *Runner) tenantLock(tenantID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.tenants[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		r.tenants[tenantID] = lock
	}
	return lock
}
