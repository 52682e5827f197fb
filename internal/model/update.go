package model

// SourceFieldUpdate carries the fields pass 2 writes back to a source
// page. Nil fields are left untouched.
type SourceFieldUpdate struct {
	Title         *string
	Status        *string
	AssigneeEmail *string
}

// Empty reports whether the update would write nothing.
func (u SourceFieldUpdate) Empty() bool {
	return u.Title == nil && u.Status == nil && u.AssigneeEmail == nil
}

// ChildItem is the minimal shape of a subtask page fetched for child
// work item creation.
type ChildItem struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// WorkItemDraft is the input for creating a work item from a source
// item. State is the desired state in target vocabulary; Assignee is
// the target identity, empty to leave the item unassigned.
type WorkItemDraft struct {
	Title       string
	Description string
	State       string
	Assignee    string
	SourceID    string
	Extra       []ExtraField
}
