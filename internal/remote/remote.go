// Package remote defines the error taxonomy shared by the Notion and
// Azure DevOps adapters. The orchestrator uses these types to decide
// whether a failure aborts the run, fails one item, or is a benign skip.
package remote

import (
	"errors"
	"fmt"
)

// System identifies which external system produced an error.
type System string

const (
	SystemNotion System = "notion"
	SystemAzDO   System = "azure-devops"
)

// AuthError indicates that authentication has failed or expired for one
// of the external systems. It aborts the whole run.
type AuthError struct {
	System  System
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.System, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// NotFoundError indicates that a referenced record no longer exists.
// The orchestrator treats it as a per-item skip, not a failure.
type NotFoundError struct {
	System System
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s record %s not found", e.System, e.ID)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InvalidTransitionError indicates the target system rejected a state
// change as structurally disallowed. This is expected and recoverable:
// the orchestrator records a skip carrying the attempted transition.
type InvalidTransitionError struct {
	From    string
	To      string
	Message string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf(
		"invalid state transition %q -> %q: %s", e.From, e.To, e.Message,
	)
}

// IsInvalidTransition reports whether err (or any error in its chain)
// is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var it *InvalidTransitionError
	return errors.As(err, &it)
}

// ConfigError indicates missing or invalid setup for a tenant. Runs
// failing with it abort before a run record is created.
type ConfigError struct {
	TenantID string
	Message  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for tenant %s: %s", e.TenantID, e.Message)
}

// IsConfigError reports whether err (or any error in its chain) is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
