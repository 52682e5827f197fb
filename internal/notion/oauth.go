package notion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nhle/syncbridge/internal/credential"
	"github.com/nhle/syncbridge/internal/remote"
)

// refreshSafetyWindow is how long before expiry a stored access token is
// already treated as stale, so a token never expires mid-run.
const refreshSafetyWindow = 5 * time.Minute

// oauthStateStore persists per-tenant OAuth sessions. The credential
// package is the production implementation.
type oauthStateStore interface {
	Load(tenantID string) (credential.OAuthState, error)
	Save(tenantID string, state credential.OAuthState) error
	Clear(tenantID string) error
}

// keyringOAuthStore keeps sessions in the system keyring.
type keyringOAuthStore struct{}

func (keyringOAuthStore) Load(tenantID string) (credential.OAuthState, error) {
	return credential.LoadOAuthState(tenantID)
}

func (keyringOAuthStore) Save(tenantID string, state credential.OAuthState) error {
	return credential.SaveOAuthState(tenantID, state)
}

func (keyringOAuthStore) Clear(tenantID string) error {
	return credential.ClearOAuthState(tenantID)
}

// OAuthResolver turns a tenant's stored OAuth session into a usable
// access token, refreshing through the token endpoint as needed.
type OAuthResolver struct {
	tokenURL   string
	httpClient *http.Client
	store      oauthStateStore
}

// NewOAuthResolver creates a resolver over the public token endpoint
// and the system keyring.
func NewOAuthResolver() *OAuthResolver {
	return &OAuthResolver{
		tokenURL:   baseURL + "/v1/oauth/token",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      keyringOAuthStore{},
	}
}

// ResolveOAuthToken resolves a tenant's access token with a default
// resolver.
func ResolveOAuthToken(ctx context.Context, tenantID string) (string, error) {
	return NewOAuthResolver().Resolve(ctx, tenantID)
}

// tokenResponse is the OAuth token endpoint's success payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// tokenError is the OAuth token endpoint's error payload.
type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Resolve returns a usable access token for the tenant, refreshing the
// stored session first when it is expired or inside the safety window.
// A refresh rejected with invalid_grant clears the stored state so the
// next run fails immediately with a reconnect message instead of
// retrying a dead session.
func (r *OAuthResolver) Resolve(ctx context.Context, tenantID string) (string, error) {
	state, err := r.store.Load(tenantID)
	if err != nil {
		return "", &remote.AuthError{
			System: remote.SystemNotion,
			Message: fmt.Sprintf(
				"no OAuth session for tenant %s, run connect first", tenantID,
			),
		}
	}

	if state.ExpiresAt.IsZero() ||
		time.Until(state.ExpiresAt) > refreshSafetyWindow {
		return state.AccessToken, nil
	}

	refreshed, err := r.refreshSession(ctx, state)
	if err != nil {
		// A rejected refresh token never recovers. Clear the stored
		// session so the next run reports a clean reconnect message
		// instead of retrying a dead session.
		var ig *invalidGrantError
		if errors.As(err, &ig) {
			if clearErr := r.store.Clear(tenantID); clearErr != nil {
				return "", fmt.Errorf("clearing revoked oauth state: %w", clearErr)
			}
			return "", &remote.AuthError{
				System: remote.SystemNotion,
				Message: "the stored OAuth session was revoked, " +
					"run connect again to re-authorize",
			}
		}
		return "", err
	}

	if err := r.store.Save(tenantID, refreshed); err != nil {
		return "", fmt.Errorf("persisting refreshed oauth state: %w", err)
	}

	return refreshed.AccessToken, nil
}

// refreshSession exchanges the refresh token for a new session.
func (r *OAuthResolver) refreshSession(
	ctx context.Context,
	state credential.OAuthState,
) (credential.OAuthState, error) {
	if state.RefreshToken == "" {
		return credential.OAuthState{}, &remote.AuthError{
			System:  remote.SystemNotion,
			Message: "access token expired and no refresh token is stored, reconnect required",
		}
	}

	body, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": state.RefreshToken,
	})
	if err != nil {
		return credential.OAuthState{}, fmt.Errorf("marshaling refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, r.tokenURL, bytes.NewReader(body),
	)
	if err != nil {
		return credential.OAuthState{}, fmt.Errorf("creating refresh request: %w", err)
	}

	basic := base64.StdEncoding.EncodeToString(
		[]byte(state.ClientID + ":" + state.ClientSecret),
	)
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return credential.OAuthState{}, fmt.Errorf("refreshing oauth token: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return credential.OAuthState{}, fmt.Errorf("reading refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var oauthErr tokenError
		_ = json.Unmarshal(respBody, &oauthErr)
		return credential.OAuthState{}, refreshFailure(resp.StatusCode, oauthErr)
	}

	var token tokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return credential.OAuthState{}, fmt.Errorf("unmarshaling refresh response: %w", err)
	}

	next := state
	next.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		next.RefreshToken = token.RefreshToken
	}
	if token.ExpiresIn > 0 {
		next.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	} else {
		next.ExpiresAt = time.Time{}
	}

	return next, nil
}

// refreshFailure maps a token endpoint error to the caller-facing error.
// invalid_grant means the session is permanently dead.
func refreshFailure(status int, oauthErr tokenError) error {
	if oauthErr.Error == "invalid_grant" {
		return &invalidGrantError{description: oauthErr.Description}
	}

	msg := oauthErr.Description
	if msg == "" {
		msg = oauthErr.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("token endpoint returned status %d", status)
	}
	return &remote.AuthError{System: remote.SystemNotion, Message: msg}
}

// invalidGrantError marks a refresh token the authorization server has
// rejected outright, as opposed to a transient token endpoint failure.
type invalidGrantError struct {
	description string
}

func (e *invalidGrantError) Error() string {
	return "refresh token rejected (invalid_grant): " + e.description
}
