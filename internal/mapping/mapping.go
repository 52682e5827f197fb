// Package mapping translates status vocabulary and assignee identity
// between Notion and Azure DevOps. All lookups are pure: exact match
// first, then case-insensitive, then the configured default. Assignee
// translation has no default because identity must never be fabricated.
package mapping

import (
	"strings"

	"github.com/nhle/syncbridge/internal/model"
)

// Mapper applies one tenant's MappingRules in both directions.
type Mapper struct {
	rules model.MappingRules
}

// New creates a Mapper over the given rules.
func New(rules model.MappingRules) *Mapper {
	return &Mapper{rules: rules}
}

// TargetState maps a Notion status to a work item state, falling back
// to the configured default target state.
func (m *Mapper) TargetState(sourceStatus string) string {
	return lookup(m.rules.StatusMap, sourceStatus, m.rules.DefaultTargetState)
}

// SourceStatus maps a work item state to a Notion status, falling back
// to the configured default source status.
func (m *Mapper) SourceStatus(targetState string) string {
	return lookup(m.rules.ReverseStatusMap, targetState, m.rules.DefaultSourceStatus)
}

// TargetAssignee maps a Notion person email to an Azure DevOps identity.
// The second return is false when no mapping exists; the caller decides
// whether to pass the identity through raw or leave the field unset.
func (m *Mapper) TargetAssignee(email string) (string, bool) {
	return lookupNoDefault(m.rules.AssigneeMap, email)
}

// SourceAssignee maps an Azure DevOps identity back to a Notion person
// email. The second return is false when no mapping exists.
func (m *Mapper) SourceAssignee(identity string) (string, bool) {
	return lookupNoDefault(m.rules.ReverseAssigneeMap, identity)
}

// lookup resolves key in table: exact match, then case-insensitive
// match, then fallback. Empty keys resolve straight to the fallback.
func lookup(table map[string]string, key, fallback string) string {
	if key == "" {
		return fallback
	}
	if v, ok := table[key]; ok {
		return v
	}
	for k, v := range table {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return fallback
}

// lookupNoDefault is lookup without a fallback value.
func lookupNoDefault(table map[string]string, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	if v, ok := table[key]; ok {
		return v, true
	}
	for k, v := range table {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
