package azdo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/syncbridge/internal/model"
	"github.com/nhle/syncbridge/internal/remote"
)

// tagPrefix marks work items created by this engine. The full tag
// embeds the originating page id and is the sole join key between the
// two systems.
const tagPrefix = "notion-sync:"

// invalidStateMarker appears in the API error message when a state
// value is not allowed for the work item's current position in its
// workflow.
const invalidStateMarker = "not in the list of supported values"

// batchFetchSize is the work item batch GET limit imposed by the API.
const batchFetchSize = 200

// fetchFields are the work item fields requested on reads.
var fetchFields = []string{
	fieldTitle, fieldDescription, fieldState,
	fieldAssignedTo, fieldChangedDate, fieldTags,
}

// Adapter creates, reads, and mutates work items in one Azure DevOps
// project, normalizing them into model.TargetItem.
type Adapter struct {
	client       *Client
	orgURL       string
	project      string
	workItemType string
	areaPath     string
	defaultState string
}

// NewAdapter creates an Azure DevOps adapter bound to one tenant's
// organization and project configuration.
func NewAdapter(cfg model.AzDOConfig, authHeader string) *Adapter {
	return &Adapter{
		client:       NewClient(cfg.OrgURL, authHeader),
		orgURL:       strings.TrimRight(cfg.OrgURL, "/"),
		project:      cfg.Project,
		workItemType: cfg.WorkItemType,
		areaPath:     cfg.AreaPath,
		defaultState: cfg.DefaultState,
	}
}

// BackRefTag builds the back-reference tag for a source page id.
func BackRefTag(sourceID string) string {
	return tagPrefix + sourceID
}

// SourceIDFromTags extracts the page id from a work item's tag list,
// or "" when no back-reference tag is present.
func SourceIDFromTags(tags string) string {
	for _, tag := range strings.Split(tags, ";") {
		tag = strings.TrimSpace(tag)
		if strings.HasPrefix(tag, tagPrefix) {
			return strings.TrimPrefix(tag, tagPrefix)
		}
	}
	return ""
}

// CreateItem creates a work item for a source item. The back-reference
// tag, rendered description, and configured classification fields are
// set at creation; the state is only transitioned afterward when the
// desired state differs from the process template default. A failed
// follow-up transition does not fail the creation; it is returned as a
// warning instead.
func (a *Adapter) CreateItem(
	ctx context.Context,
	draft model.WorkItemDraft,
) (*model.TargetItem, string, error) {
	ops := []patchOp{
		{Op: "add", Path: "/fields/" + fieldTitle, Value: draft.Title},
		{Op: "add", Path: "/fields/" + fieldDescription,
			Value: RenderDescription(draft.Description, draft.Extra)},
		{Op: "add", Path: "/fields/" + fieldTags, Value: BackRefTag(draft.SourceID)},
	}
	if draft.Assignee != "" {
		ops = append(ops, patchOp{
			Op: "add", Path: "/fields/" + fieldAssignedTo, Value: draft.Assignee,
		})
	}
	if a.areaPath != "" {
		ops = append(ops, patchOp{
			Op: "add", Path: "/fields/" + fieldAreaPath, Value: a.areaPath,
		})
	}

	path := fmt.Sprintf(
		"/%s/_apis/wit/workitems/$%s",
		url.PathEscape(a.project), url.PathEscape(a.workItemType),
	)

	var created WorkItem
	if err := a.client.PostPatchDoc(ctx, path, ops, &created); err != nil {
		return nil, "", fmt.Errorf("creating work item: %w", err)
	}

	item := a.workItemToItem(created)

	// Many process templates reject explicit states at creation, so new
	// items land in the default state and move afterward.
	warning := ""
	if draft.State != "" && !strings.EqualFold(draft.State, a.defaultState) {
		transitioned, err := a.UpdateState(ctx, created.ID, draft.State, "")
		if err != nil {
			warning = fmt.Sprintf(
				"work item %d created but transition to %q failed: %v",
				created.ID, draft.State, err,
			)
		} else {
			item = *transitioned
		}
	}

	return &item, warning, nil
}

// CreateChild creates a work item for a subtask page and links it under
// parentID via the hierarchy relation. The child carries its own
// back-reference tag.
func (a *Adapter) CreateChild(
	ctx context.Context,
	title string,
	parentID int,
	sourceID string,
) (*model.TargetItem, error) {
	parentURL := fmt.Sprintf("%s/_apis/wit/workItems/%d", a.orgURL, parentID)

	ops := []patchOp{
		{Op: "add", Path: "/fields/" + fieldTitle, Value: title},
		{Op: "add", Path: "/fields/" + fieldTags, Value: BackRefTag(sourceID)},
		{Op: "add", Path: "/relations/-", Value: relationLink{
			Rel: "System.LinkTypes.Hierarchy-Reverse",
			URL: parentURL,
		}},
	}
	if a.areaPath != "" {
		ops = append(ops, patchOp{
			Op: "add", Path: "/fields/" + fieldAreaPath, Value: a.areaPath,
		})
	}

	path := fmt.Sprintf(
		"/%s/_apis/wit/workitems/$%s",
		url.PathEscape(a.project), url.PathEscape(a.workItemType),
	)

	var created WorkItem
	if err := a.client.PostPatchDoc(ctx, path, ops, &created); err != nil {
		return nil, fmt.Errorf("creating child work item: %w", err)
	}

	item := a.workItemToItem(created)
	return &item, nil
}

// UpdateState transitions a work item to newState and optionally
// reassigns it. A workflow rejection surfaces as an
// InvalidTransitionError so callers can skip instead of failing.
func (a *Adapter) UpdateState(
	ctx context.Context,
	id int,
	newState string,
	assignee string,
) (*model.TargetItem, error) {
	ops := []patchOp{
		{Op: "add", Path: "/fields/" + fieldState, Value: newState},
	}
	if assignee != "" {
		ops = append(ops, patchOp{
			Op: "add", Path: "/fields/" + fieldAssignedTo, Value: assignee,
		})
	}

	path := fmt.Sprintf("/_apis/wit/workitems/%d", id)

	var updated WorkItem
	if err := a.client.PatchDoc(ctx, path, ops, &updated); err != nil {
		if strings.Contains(err.Error(), invalidStateMarker) {
			return nil, &remote.InvalidTransitionError{
				To:      newState,
				Message: err.Error(),
			}
		}
		return nil, fmt.Errorf("updating work item %d: %w", id, err)
	}

	item := a.workItemToItem(updated)
	return &item, nil
}

// FetchOne retrieves a single work item by id.
func (a *Adapter) FetchOne(
	ctx context.Context,
	id int,
) (*model.TargetItem, error) {
	path := fmt.Sprintf(
		"/_apis/wit/workitems/%d?fields=%s",
		id, strings.Join(fetchFields, ","),
	)

	var wi WorkItem
	if err := a.client.Get(ctx, path, &wi); err != nil {
		return nil, err
	}

	item := a.workItemToItem(wi)
	return &item, nil
}

// FetchLinkedItems returns every work item in the project bearing the
// engine's back-reference tag, newest-changed first. This is the
// complete candidate set for the target-to-source pass.
func (a *Adapter) FetchLinkedItems(
	ctx context.Context,
) ([]model.TargetItem, error) {
	query := fmt.Sprintf(
		"SELECT [System.Id] FROM WorkItems "+
			"WHERE [System.TeamProject] = '%s' "+
			"AND [System.Tags] CONTAINS '%s' "+
			"ORDER BY [System.ChangedDate] DESC",
		strings.ReplaceAll(a.project, "'", "''"), tagPrefix,
	)

	wiqlPath := fmt.Sprintf("/%s/_apis/wit/wiql", url.PathEscape(a.project))

	var refs wiqlResponse
	if err := a.client.Post(ctx, wiqlPath, wiqlRequest{Query: query}, &refs); err != nil {
		return nil, fmt.Errorf("querying linked work items: %w", err)
	}

	var items []model.TargetItem
	for start := 0; start < len(refs.WorkItems); start += batchFetchSize {
		end := start + batchFetchSize
		if end > len(refs.WorkItems) {
			end = len(refs.WorkItems)
		}

		ids := make([]string, 0, end-start)
		for _, ref := range refs.WorkItems[start:end] {
			ids = append(ids, strconv.Itoa(ref.ID))
		}

		batchPath := fmt.Sprintf(
			"/_apis/wit/workitems?ids=%s&fields=%s",
			strings.Join(ids, ","), strings.Join(fetchFields, ","),
		)

		var batch workItemBatch
		if err := a.client.Get(ctx, batchPath, &batch); err != nil {
			return nil, fmt.Errorf("fetching work item batch: %w", err)
		}

		for _, wi := range batch.Value {
			item := a.workItemToItem(wi)
			// WIQL can only match on the tag prefix; drop items whose
			// tags merely contain it without a parseable page id.
			if item.SourceID == "" {
				continue
			}
			items = append(items, item)
		}
	}

	return items, nil
}

// ResolveURL formats the browser link for a work item. Pure string
// formatting, no I/O.
func (a *Adapter) ResolveURL(id int) string {
	return fmt.Sprintf(
		"%s/%s/_workitems/edit/%d", a.orgURL, url.PathEscape(a.project), id,
	)
}

// workItemToItem normalizes a work item into a TargetItem.
func (a *Adapter) workItemToItem(wi WorkItem) model.TargetItem {
	item := model.TargetItem{
		ID:          wi.ID,
		Title:       wi.Fields.Title,
		Description: wi.Fields.Description,
		State:       wi.Fields.State,
		SourceID:    SourceIDFromTags(wi.Fields.Tags),
		URL:         a.ResolveURL(wi.ID),
	}

	if wi.Fields.AssignedTo != nil {
		item.AssigneeName = wi.Fields.AssignedTo.DisplayName
	}

	if t, err := time.Parse(time.RFC3339, wi.Fields.ChangedDate); err == nil {
		item.ChangedAt = t
	}

	return item
}
