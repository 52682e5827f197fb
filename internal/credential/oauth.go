package credential

import (
	"encoding/json"
	"fmt"
	"time"
)

// OAuthState is the persisted OAuth session for one tenant. The client
// credentials are captured at connect time so later refreshes need no
// interactive input.
type OAuthState struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
}

// SaveOAuthState stores a tenant's OAuth state in the keyring.
func SaveOAuthState(tenantID string, state OAuthState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling oauth state: %w", err)
	}
	return Set(NotionOAuthKey(tenantID), string(data))
}

// LoadOAuthState retrieves a tenant's OAuth state from the keyring.
func LoadOAuthState(tenantID string) (OAuthState, error) {
	raw, err := Get(NotionOAuthKey(tenantID))
	if err != nil {
		return OAuthState{}, err
	}

	var state OAuthState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return OAuthState{}, fmt.Errorf("unmarshaling oauth state: %w", err)
	}

	return state, nil
}

// ClearOAuthState removes a tenant's OAuth state. Called when a refresh
// is rejected outright so subsequent runs fail fast instead of retrying
// a dead session.
func ClearOAuthState(tenantID string) error {
	return Delete(NotionOAuthKey(tenantID))
}
