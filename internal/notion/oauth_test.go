package notion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nhle/syncbridge/internal/credential"
	"github.com/nhle/syncbridge/internal/remote"
)

type fakeOAuthStore struct {
	state   credential.OAuthState
	loadErr error

	saved   *credential.OAuthState
	cleared bool
}

func (f *fakeOAuthStore) Load(string) (credential.OAuthState, error) {
	return f.state, f.loadErr
}

func (f *fakeOAuthStore) Save(_ string, state credential.OAuthState) error {
	f.saved = &state
	return nil
}

func (f *fakeOAuthStore) Clear(string) error {
	f.cleared = true
	return nil
}

func testOAuthResolver(srv *httptest.Server, store *fakeOAuthStore) *OAuthResolver {
	return &OAuthResolver{
		tokenURL:   srv.URL,
		httpClient: srv.Client(),
		store:      store,
	}
}

// refusingTokenServer fails the test if the token endpoint is hit.
func refusingTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			t.Error("token endpoint called unexpectedly")
		}))
}

func TestResolveFreshTokenSkipsRefresh(t *testing.T) {
	srv := refusingTokenServer(t)
	defer srv.Close()

	tests := []struct {
		name      string
		expiresAt time.Time
	}{
		{"static token without expiry", time.Time{}},
		{"expiry well outside the safety window", time.Now().Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeOAuthStore{state: credential.OAuthState{
				AccessToken: "stored-token",
				ExpiresAt:   tt.expiresAt,
			}}
			r := testOAuthResolver(srv, store)

			token, err := r.Resolve(context.Background(), "acme")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if token != "stored-token" {
				t.Errorf("token = %q", token)
			}
			if store.saved != nil {
				t.Error("state rewritten without a refresh")
			}
		})
	}
}

func TestResolveRefreshesInsideSafetyWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			wantAuth := "Basic " + base64.StdEncoding.EncodeToString(
				[]byte("cid:secret"),
			)
			if got := r.Header.Get("Authorization"); got != wantAuth {
				t.Errorf("Authorization = %q, want %q", got, wantAuth)
			}

			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding request: %v", err)
			}
			if body["grant_type"] != "refresh_token" || body["refresh_token"] != "old-rt" {
				t.Errorf("request body = %v", body)
			}

			_ = json.NewEncoder(w).Encode(tokenResponse{
				AccessToken:  "new-at",
				RefreshToken: "new-rt",
				ExpiresIn:    3600,
			})
		}))
	defer srv.Close()

	store := &fakeOAuthStore{state: credential.OAuthState{
		AccessToken:  "old-at",
		RefreshToken: "old-rt",
		ExpiresAt:    time.Now().Add(time.Minute),
		ClientID:     "cid",
		ClientSecret: "secret",
	}}
	r := testOAuthResolver(srv, store)

	token, err := r.Resolve(context.Background(), "acme")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if token != "new-at" {
		t.Errorf("token = %q, want the refreshed one", token)
	}

	if store.saved == nil {
		t.Fatal("refreshed state not persisted")
	}
	if store.saved.AccessToken != "new-at" || store.saved.RefreshToken != "new-rt" {
		t.Errorf("saved state = %+v", store.saved)
	}
	if store.saved.ExpiresAt.Before(time.Now().Add(50 * time.Minute)) {
		t.Errorf("saved expiry = %v, want ~1h out", store.saved.ExpiresAt)
	}
	if store.saved.ClientID != "cid" || store.saved.ClientSecret != "secret" {
		t.Error("client credentials lost across refresh")
	}
}

func TestResolveInvalidGrantClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(tokenError{
				Error:       "invalid_grant",
				Description: "refresh token revoked",
			})
		}))
	defer srv.Close()

	store := &fakeOAuthStore{state: credential.OAuthState{
		AccessToken:  "old-at",
		RefreshToken: "old-rt",
		ExpiresAt:    time.Now().Add(time.Minute),
	}}
	r := testOAuthResolver(srv, store)

	_, err := r.Resolve(context.Background(), "acme")
	if !remote.IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if !strings.Contains(err.Error(), "connect") {
		t.Errorf("err = %q, want reconnect guidance", err)
	}
	if !store.cleared {
		t.Error("revoked session not cleared")
	}
	if store.saved != nil {
		t.Error("revoked session rewritten")
	}
}

func TestResolveTransientRefreshFailureKeepsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
	defer srv.Close()

	store := &fakeOAuthStore{state: credential.OAuthState{
		AccessToken:  "old-at",
		RefreshToken: "old-rt",
		ExpiresAt:    time.Now().Add(time.Minute),
	}}
	r := testOAuthResolver(srv, store)

	_, err := r.Resolve(context.Background(), "acme")
	if !remote.IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("err = %q, want the endpoint status", err)
	}
	// A transient failure may succeed next run; the session stays.
	if store.cleared {
		t.Error("session cleared on a transient failure")
	}
}

func TestResolveExpiredWithoutRefreshToken(t *testing.T) {
	srv := refusingTokenServer(t)
	defer srv.Close()

	store := &fakeOAuthStore{state: credential.OAuthState{
		AccessToken: "old-at",
		ExpiresAt:   time.Now().Add(time.Minute),
	}}
	r := testOAuthResolver(srv, store)

	_, err := r.Resolve(context.Background(), "acme")
	if !remote.IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if !strings.Contains(err.Error(), "reconnect") {
		t.Errorf("err = %q, want reconnect guidance", err)
	}
}

func TestResolveMissingSession(t *testing.T) {
	srv := refusingTokenServer(t)
	defer srv.Close()

	store := &fakeOAuthStore{loadErr: errors.New("keyring item not found")}
	r := testOAuthResolver(srv, store)

	_, err := r.Resolve(context.Background(), "acme")
	if !remote.IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if !strings.Contains(err.Error(), "run connect first") {
		t.Errorf("err = %q", err)
	}
}
