package model

// MappingRules is the vocabulary translation table for one tenant. The
// engine treats it as immutable for the duration of a run.
type MappingRules struct {
	// StatusMap translates a Notion status to a work item state.
	StatusMap map[string]string `mapstructure:"status_map" yaml:"status_map"`

	// ReverseStatusMap translates a work item state to a Notion status.
	ReverseStatusMap map[string]string `mapstructure:"reverse_status_map" yaml:"reverse_status_map"`

	// AssigneeMap translates a Notion person email to an Azure DevOps
	// identity (usually also an email).
	AssigneeMap map[string]string `mapstructure:"assignee_map" yaml:"assignee_map"`

	// ReverseAssigneeMap translates an Azure DevOps identity back to a
	// Notion person email.
	ReverseAssigneeMap map[string]string `mapstructure:"reverse_assignee_map" yaml:"reverse_assignee_map"`

	// DefaultTargetState is used when a Notion status has no mapping.
	DefaultTargetState string `mapstructure:"default_target_state" yaml:"default_target_state"`

	// DefaultSourceStatus is used when a work item state has no mapping.
	DefaultSourceStatus string `mapstructure:"default_source_status" yaml:"default_source_status"`
}

// FieldBindings names the Notion properties that back each synced
// field. Property names are tenant-specific; there are no universal
// Notion schema conventions to rely on.
type FieldBindings struct {
	// Status is the status or select property holding the page status.
	Status string `mapstructure:"status" yaml:"status"`

	// Assignee is the people property holding the assignee.
	Assignee string `mapstructure:"assignee" yaml:"assignee"`

	// Description is the rich text property holding the description.
	Description string `mapstructure:"description" yaml:"description"`

	// BackLink is the url property that receives the work item link.
	BackLink string `mapstructure:"back_link" yaml:"back_link"`

	// Subtasks is the relation property listing subtask pages.
	Subtasks string `mapstructure:"subtasks" yaml:"subtasks"`
}
