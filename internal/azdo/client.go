package azdo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/syncbridge/internal/remote"
)

// apiVersion is appended to every request path.
const apiVersion = "7.0"

// PATAuth builds the Authorization header value for a Personal Access
// Token (basic auth with an empty user name).
func PATAuth(pat string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(":" + pat))
	return "Basic " + encoded
}

// BearerAuth builds the Authorization header value for an OAuth access
// token.
func BearerAuth(token string) string {
	return "Bearer " + token
}

// Client is a thin HTTP client for the Azure DevOps REST API. It
// handles authentication, JSON and JSON-patch marshaling, and automatic
// retry with exponential backoff on HTTP 429.
type Client struct {
	orgURL     string
	authHeader string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new Azure DevOps HTTP client. orgURL is the
// organization root (e.g. https://dev.azure.com/acme); authHeader is
// built with PATAuth or BearerAuth.
func NewClient(orgURL, authHeader string) *Client {
	return &Client{
		orgURL:     strings.TrimRight(orgURL, "/"),
		authHeader: authHeader,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result interface{},
) error {
	return c.do(ctx, http.MethodGet, path, "", nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPost, path, "application/json", body, result)
}

// PostPatchDoc performs an HTTP POST with a JSON-patch document body,
// used for work item creation.
func (c *Client) PostPatchDoc(
	ctx context.Context,
	path string,
	ops []patchOp,
	result interface{},
) error {
	return c.do(ctx, http.MethodPost, path, "application/json-patch+json", ops, result)
}

// PatchDoc performs an HTTP PATCH with a JSON-patch document body,
// used for work item updates.
func (c *Client) PatchDoc(
	ctx context.Context,
	path string,
	ops []patchOp,
	result interface{},
) error {
	return c.do(ctx, http.MethodPatch, path, "application/json-patch+json", ops, result)
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	contentType string,
	body interface{},
	result interface{},
) error {
	url := c.orgURL + path
	if strings.Contains(path, "?") {
		url += "&api-version=" + apiVersion
	} else {
		url += "?api-version=" + apiVersion
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Rebuild the body reader on retries since it was consumed.
		if attempt > 0 && body != nil {
			data, _ := json.Marshal(body)
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(
			ctx, method, url, bodyReader,
		)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", c.authHeader)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf(
				"rate limited (429) on %s %s", method, path,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized ||
			resp.StatusCode == http.StatusNonAuthoritativeInfo {
			// Azure DevOps answers 203 with a sign-in page when the
			// credential is expired rather than a clean 401.
			return &remote.AuthError{
				System: remote.SystemAzDO,
				Message: fmt.Sprintf(
					"authentication failed: check the credential for %s",
					c.orgURL,
				),
			}
		}

		if resp.StatusCode == http.StatusNotFound {
			return &remote.NotFoundError{
				System: remote.SystemAzDO,
				ID:     path,
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var apiErr ErrorResponse
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
				return fmt.Errorf(
					"azure devops API error (%d) on %s %s: %s",
					resp.StatusCode, method, path, apiErr.Message,
				)
			}
			return fmt.Errorf(
				"unexpected status %d on %s %s: %s",
				resp.StatusCode, method, path, string(respBody),
			)
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w",
				method, path, err,
			)
		}

		return nil
	}

	return fmt.Errorf(
		"max retries (%d) exceeded: %w", c.maxRetries, lastErr,
	)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
