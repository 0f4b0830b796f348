package ado

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Status is an HTTP status code, extended with one synthetic value for
// servers that answer an API request with an HTML sign-in page.
type Status int

// StatusSigninPage marks a response that redirected toward a sign-in page
// instead of answering with JSON. Some on-prem servers report auth failure
// as a 203 HTML page in violation of the Accept header.
const StatusSigninPage Status = -203

// OK reports whether the status is in the 2xx range.
func (s Status) OK() bool { return s >= 200 && s <= 299 }

// NotFound reports whether the status is 404.
func (s Status) NotFound() bool { return s == http.StatusNotFound }

// Doer executes a single HTTP request. *http.Client satisfies it; tests
// substitute fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// JSONClient is the transport surface the API client depends on: one GET
// returning the response status and body. Non-2xx statuses are data, not
// errors; the error return is reserved for transport failures.
type JSONClient interface {
	Get(ctx context.Context, url, password string) (Status, json.RawMessage, error)
}

// HTTPJSONClient fetches JSON documents using HTTP Basic authentication with
// an empty username and a personal access token as the password, the scheme
// Azure DevOps expects for PATs.
type HTTPJSONClient struct {
	client Doer
}

// NewHTTPJSONClient wraps the given HTTP client.
func NewHTTPJSONClient(client Doer) *HTTPJSONClient {
	return &HTTPJSONClient{client: client}
}

// Get performs the request. A body that is not valid JSON yields a nil
// RawMessage alongside the real status, so callers can still branch on the
// status code before deciding the response is uninterpretable.
func (c *HTTPJSONClient) Get(ctx context.Context, url, password string) (Status, json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if password != "" {
		req.Header.Set("Authorization", "Basic "+basicAuthToken(password))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	if isSigninPage(resp) {
		return StatusSigninPage, nil, nil
	}

	if !json.Valid(body) {
		return Status(resp.StatusCode), nil, nil
	}
	return Status(resp.StatusCode), json.RawMessage(body), nil
}

// isSigninPage detects servers that report auth failure by redirecting to an
// HTML sign-in page rather than returning 401.
func isSigninPage(resp *http.Response) bool {
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "text/html") {
		return false
	}
	if resp.StatusCode == http.StatusNonAuthoritativeInfo {
		return true
	}
	return resp.Request != nil && resp.Request.URL != nil &&
		strings.Contains(strings.ToLower(resp.Request.URL.Path), "signin")
}

func basicAuthToken(password string) string {
	return base64.StdEncoding.EncodeToString([]byte(":" + password))
}

// describeStatus renders a failed status for user display, folding in the
// remote error body's message when one is present. When testing is set the
// caller is actively editing connection settings, so the generic settings
// hint is dropped in favor of the message alone.
func describeStatus(status Status, body json.RawMessage, testing bool) string {
	if status == StatusSigninPage {
		return "Authentication is required: the server answered with a sign-in page." +
			" Confirm the Personal Access Token is valid and has not expired."
	}

	desc := fmt.Sprintf("HTTP status %d (%s)", int(status), http.StatusText(int(status)))
	if msg := remoteMessage(body); msg != "" {
		desc += fmt.Sprintf(": %q", msg)
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		desc += ". Confirm the Personal Access Token has the Build (read) and Work items (read) scopes"
	}
	if !testing {
		desc += ". Check the Azure DevOps connection settings."
	} else {
		desc += "."
	}
	return desc
}

// remoteMessage extracts the `message` field Azure DevOps error bodies carry.
func remoteMessage(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}
