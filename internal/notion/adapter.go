package notion

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/nhle/syncbridge/internal/model"
	"github.com/nhle/syncbridge/internal/remote"
)

// queryPageSize is the page size used for database queries; 100 is the
// API maximum.
const queryPageSize = 100

// workItemURLPattern matches the two Azure DevOps work item URL shapes
// (browser and REST) and captures the work item id.
var workItemURLPattern = regexp.MustCompile(
	`(?i)(?:_workitems/edit|_apis/wit/workitems)/(\d+)`,
)

// Adapter reads and selectively mutates pages in the configured Notion
// databases, normalizing them into model.SourceItem.
type Adapter struct {
	client      *Client
	databaseIDs []string
	bindings    model.FieldBindings
}

// NewAdapter creates a Notion adapter bound to one tenant's databases
// and property bindings.
func NewAdapter(
	token string,
	databaseIDs []string,
	bindings model.FieldBindings,
) *Adapter {
	return &Adapter{
		client:      NewClient(token),
		databaseIDs: databaseIDs,
		bindings:    bindings,
	}
}

// FetchAll retrieves every page from the configured databases,
// paginating until exhausted. Pages without a title are dropped and
// returned by id in the second value so the caller can report them.
// Each page id appears at most once in the result.
func (a *Adapter) FetchAll(
	ctx context.Context,
) ([]model.SourceItem, []string, error) {
	var (
		items   []model.SourceItem
		dropped []string
		seen    = make(map[string]bool)
	)

	for _, dbID := range a.databaseIDs {
		cursor := ""
		for {
			req := queryRequest{PageSize: queryPageSize, StartCursor: cursor}

			var resp QueryResponse
			path := fmt.Sprintf("/v1/databases/%s/query", dbID)
			if err := a.client.Post(ctx, path, req, &resp); err != nil {
				return nil, nil, fmt.Errorf(
					"querying database %s: %w", dbID, err,
				)
			}

			for _, page := range resp.Results {
				if page.Archived || seen[normalizeID(page.ID)] {
					continue
				}
				seen[normalizeID(page.ID)] = true

				item, ok := a.pageToItem(page)
				if !ok {
					dropped = append(dropped, page.ID)
					continue
				}
				items = append(items, item)
			}

			if !resp.HasMore {
				break
			}
			cursor = resp.NextCursor
		}
	}

	return items, dropped, nil
}

// FetchOne retrieves a single page by id. A missing or untitled page
// yields a NotFoundError.
func (a *Adapter) FetchOne(
	ctx context.Context,
	id string,
) (*model.SourceItem, error) {
	var page Page
	if err := a.client.Get(ctx, "/v1/pages/"+id, &page); err != nil {
		return nil, err
	}

	if page.Archived {
		return nil, &remote.NotFoundError{System: remote.SystemNotion, ID: id}
	}

	item, ok := a.pageToItem(page)
	if !ok {
		return nil, &remote.NotFoundError{System: remote.SystemNotion, ID: id}
	}
	return &item, nil
}

// WriteBackLink sets the configured cross-link property to targetURL.
// No other property is touched.
func (a *Adapter) WriteBackLink(
	ctx context.Context,
	id string,
	targetURL string,
) error {
	patch := propertyPatch{
		Properties: map[string]interface{}{
			a.bindings.BackLink: map[string]interface{}{"url": targetURL},
		},
	}
	if err := a.client.Patch(ctx, "/v1/pages/"+id, patch, nil); err != nil {
		return fmt.Errorf("writing back link on page %s: %w", id, err)
	}
	return nil
}

// ApplyTargetUpdate writes the supplied fields back to a page. Nil
// fields are skipped. An assignee email that resolves to no workspace
// user leaves the assignee untouched; the returned warnings describe
// any such partial application.
func (a *Adapter) ApplyTargetUpdate(
	ctx context.Context,
	id string,
	upd model.SourceFieldUpdate,
) ([]string, error) {
	if upd.Empty() {
		return nil, nil
	}

	// The title property's name and the status property's kind (select
	// vs. status) are schema-specific, so read the page first.
	var page Page
	if err := a.client.Get(ctx, "/v1/pages/"+id, &page); err != nil {
		return nil, err
	}

	var warnings []string
	props := map[string]interface{}{}

	if upd.Title != nil {
		name, ok := titlePropertyName(page)
		if !ok {
			return nil, fmt.Errorf("page %s has no title property", id)
		}
		props[name] = map[string]interface{}{
			"title": []map[string]interface{}{
				{"text": map[string]string{"content": *upd.Title}},
			},
		}
	}

	if upd.Status != nil {
		prop, ok := page.Properties[a.bindings.Status]
		if !ok {
			warnings = append(warnings, fmt.Sprintf(
				"page %s has no property %q, status not written",
				id, a.bindings.Status,
			))
		} else if prop.Type == "status" {
			props[a.bindings.Status] = map[string]interface{}{
				"status": map[string]string{"name": *upd.Status},
			}
		} else {
			props[a.bindings.Status] = map[string]interface{}{
				"select": map[string]string{"name": *upd.Status},
			}
		}
	}

	if upd.AssigneeEmail != nil {
		userID, err := a.resolveUserID(ctx, *upd.AssigneeEmail)
		if err != nil {
			return nil, err
		}
		if userID == "" {
			warnings = append(warnings, fmt.Sprintf(
				"no workspace user matches %q, assignee not written",
				*upd.AssigneeEmail,
			))
		} else {
			props[a.bindings.Assignee] = map[string]interface{}{
				"people": []map[string]string{{"id": userID}},
			}
		}
	}

	if len(props) == 0 {
		return warnings, nil
	}

	patch := propertyPatch{Properties: props}
	if err := a.client.Patch(ctx, "/v1/pages/"+id, patch, nil); err != nil {
		return warnings, fmt.Errorf("updating page %s: %w", id, err)
	}
	return warnings, nil
}

// FetchChildren resolves subtask page ids to their title and status.
// Lookups are best-effort: a failed child is reported as a warning and
// omitted rather than failing the parent.
func (a *Adapter) FetchChildren(
	ctx context.Context,
	ids []string,
) ([]model.ChildItem, []string) {
	var (
		children []model.ChildItem
		warnings []string
	)

	for _, id := range ids {
		item, err := a.FetchOne(ctx, id)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf(
				"child page %s skipped: %v", id, err,
			))
			continue
		}
		children = append(children, model.ChildItem{
			ID:     item.ID,
			Title:  item.Title,
			Status: item.Status,
		})
	}

	return children, warnings
}

// resolveUserID finds a workspace user id by email, paginating the user
// directory. Returns "" when no user matches.
func (a *Adapter) resolveUserID(
	ctx context.Context,
	email string,
) (string, error) {
	cursor := ""
	for {
		path := fmt.Sprintf("/v1/users?page_size=%d", queryPageSize)
		if cursor != "" {
			path += "&start_cursor=" + cursor
		}

		var resp UserListResponse
		if err := a.client.Get(ctx, path, &resp); err != nil {
			return "", fmt.Errorf("listing workspace users: %w", err)
		}

		for _, u := range resp.Results {
			if u.Person != nil && u.Person.Email == email {
				return u.ID, nil
			}
		}

		if !resp.HasMore {
			return "", nil
		}
		cursor = resp.NextCursor
	}
}

// titlePropertyName finds the name of the page's title property. Every
// database has exactly one, but its name is schema-specific. The second
// return is false for partial page objects carrying no title at all.
func titlePropertyName(page Page) (string, bool) {
	for name, prop := range page.Properties {
		if prop.Type == "title" {
			return name, true
		}
	}
	return "", false
}

// pageToItem normalizes a page into a SourceItem. The second return is
// false when the page has no usable title.
func (a *Adapter) pageToItem(page Page) (model.SourceItem, bool) {
	item := model.SourceItem{ID: page.ID}

	titleName, ok := titlePropertyName(page)
	if ok {
		item.Title = plainText(page.Properties[titleName].Title)
	}
	if item.Title == "" {
		return model.SourceItem{}, false
	}

	if prop, ok := page.Properties[a.bindings.Status]; ok {
		item.Status, _ = displayString(prop)
	}
	if prop, ok := page.Properties[a.bindings.Description]; ok {
		item.Description, _ = displayString(prop)
	}
	if prop, ok := page.Properties[a.bindings.Assignee]; ok {
		for _, u := range prop.People {
			if u.Person != nil && u.Person.Email != "" {
				item.AssigneeEmail = u.Person.Email
				break
			}
		}
	}
	if prop, ok := page.Properties[a.bindings.BackLink]; ok && prop.URL != nil {
		item.TargetURL = *prop.URL
		if wid, ok := ParseWorkItemID(*prop.URL); ok {
			item.TargetID = wid
		}
	}
	if prop, ok := page.Properties[a.bindings.Subtasks]; ok {
		for _, rel := range prop.Relation {
			item.ChildIDs = append(item.ChildIDs, rel.ID)
		}
	}

	if t, err := time.Parse(time.RFC3339, page.LastEditedTime); err == nil {
		item.LastEditedAt = t
	}

	item.Extra = a.extraFields(page, titleName)

	return item, true
}

// extraFields collects every extractable property not already bound to
// a synced field, sorted by name for deterministic output.
func (a *Adapter) extraFields(page Page, titleName string) []model.ExtraField {
	bound := map[string]bool{
		titleName:              true,
		a.bindings.Status:      true,
		a.bindings.Assignee:    true,
		a.bindings.Description: true,
		a.bindings.BackLink:    true,
		a.bindings.Subtasks:    true,
	}

	names := make([]string, 0, len(page.Properties))
	for name := range page.Properties {
		if !bound[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var extras []model.ExtraField
	for _, name := range names {
		value, ok := displayString(page.Properties[name])
		if !ok {
			continue
		}
		extras = append(extras, model.ExtraField{Name: name, Value: value})
	}
	return extras
}

// ParseWorkItemID extracts a work item id from an Azure DevOps work
// item URL. The second return is false for any other URL, including
// manually pasted links to unrelated systems.
func ParseWorkItemID(url string) (int, bool) {
	m := workItemURLPattern.FindStringSubmatch(url)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
