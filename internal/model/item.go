package model

import "time"

// ExtraField is one named scalar property extracted from a source page,
// already rendered to its display string. Order is preserved so the
// generated work item description is stable across runs.
type ExtraField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SourceItem is the canonical representation of a Notion page after
// normalization. It is rebuilt from the API on every fetch; the engine
// never persists it.
type SourceItem struct {
	// ID is the Notion page id.
	ID string `json:"id"`

	// Title is the page's title property. Pages without a title are
	// dropped during fetch and reported as warnings.
	Title string `json:"title"`

	// Description is the configured description property, empty if the
	// property is absent or unset.
	Description string `json:"description"`

	// Status is the page status in Notion vocabulary, empty if unset.
	Status string `json:"status"`

	// AssigneeEmail is the email of the first person in the configured
	// assignee property, empty if unset.
	AssigneeEmail string `json:"assignee_email"`

	// TargetID is the linked work item id parsed from the cross-link
	// URL, or 0 when the page is not linked.
	TargetID int `json:"target_id"`

	// TargetURL is the raw value of the cross-link property. A non-empty
	// URL that does not parse to a work item id marks a manual link,
	// which the engine never overwrites.
	TargetURL string `json:"target_url"`

	// LastEditedAt is Notion's last_edited_time for the page.
	LastEditedAt time.Time `json:"last_edited_at"`

	// Extra holds every other extractable property as name/value pairs,
	// in the order Notion returned them.
	Extra []ExtraField `json:"extra,omitempty"`

	// ChildIDs lists related subtask page ids from the configured
	// subtask relation property.
	ChildIDs []string `json:"child_ids,omitempty"`
}

// Linked reports whether the item carries a parseable work item id.
func (s *SourceItem) Linked() bool {
	return s.TargetID != 0
}

// ManuallyLinked reports whether a cross-link URL is present that does
// not resolve to a work item id. Such links are user-established and
// must never be overwritten by the engine.
func (s *SourceItem) ManuallyLinked() bool {
	return s.TargetURL != "" && s.TargetID == 0
}

// TargetItem is the canonical representation of an Azure DevOps work
// item. Work items created by this engine always carry a back-reference
// tag encoding the originating page id; that tag is the sole join key
// between the two systems.
type TargetItem struct {
	// ID is the work item id.
	ID int `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// State is the work item state in Azure DevOps vocabulary.
	State string `json:"state"`

	// AssigneeName is the assigned user's display name, empty if
	// unassigned.
	AssigneeName string `json:"assignee_name"`

	// ChangedAt is the work item's System.ChangedDate.
	ChangedAt time.Time `json:"changed_at"`

	// SourceID is the page id parsed from the back-reference tag, empty
	// when the work item carries no such tag.
	SourceID string `json:"source_id"`

	// URL is the browser link to the work item.
	URL string `json:"url"`
}
