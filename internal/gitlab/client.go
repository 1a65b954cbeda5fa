package gitlab

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"cfgpush/internal/cfgpush"
	"cfgpush/internal/config"
)

// retryStatuses are the responses worth another attempt.
var retryStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client talks to the repository commits endpoint of a GitLab-compatible API.
// Transient failures are retried beneath both operations; any other response
// is returned to the caller as-is.
type Client struct {
	http   *retryablehttp.Client
	url    string
	token  string
	branch string
	clock  cfgpush.Clock
}

var _ cfgpush.CommitAPI = (*Client)(nil)

// NewClient creates a Client from the API configuration.
func NewClient(cfg config.APIConfig, logger cfgpush.Logger, clock cfgpush.Clock) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api base_url is required")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("api project_id is required")
	}

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: transport, Timeout: cfg.Timeout.Duration}
	rc.RetryMax = attempts - 1
	rc.RetryWaitMin = cfg.RetryWaitMin.Duration
	rc.RetryWaitMax = cfg.RetryWaitMax.Duration
	rc.CheckRetry = checkRetry
	rc.Backoff = cappedBackoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	if logger != nil {
		rc.Logger = retryablehttp.LeveledLogger(logger)
	}

	branch := cfg.Branch
	if branch == "" {
		branch = "master"
	}

	return &Client{
		http:   rc,
		url:    CommitsURL(cfg.BaseURL, cfg.ProjectID),
		token:  cfg.Token,
		branch: branch,
		clock:  clock,
	}, nil
}

// CommitsURL returns the commits endpoint for project under base.
func CommitsURL(base, project string) string {
	return strings.TrimRight(base, "/") + "/projects/" + url.PathEscape(project) + "/repository/commits"
}

// Create creates identifier as a new path holding the initial placeholder.
func (c *Client) Create(ctx context.Context, identifier string) (*cfgpush.CommitResponse, error) {
	req := cfgpush.NewCommitRequest(c.branch, c.clock.Now(), cfgpush.ActionCreate, identifier, cfgpush.InitialContent)
	return c.do(ctx, req)
}

// Update replaces the content stored at identifier.
func (c *Client) Update(ctx context.Context, identifier string, content string) (*cfgpush.CommitResponse, error) {
	req := cfgpush.NewCommitRequest(c.branch, c.clock.Now(), cfgpush.ActionUpdate, identifier, content)
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, commit *cfgpush.CommitRequest) (*cfgpush.CommitResponse, error) {
	op := string(commit.Actions[0].Action)

	payload, err := json.Marshal(commit)
	if err != nil {
		return nil, &cfgpush.RequestError{Op: op, Err: fmt.Errorf("encoding payload: %w", err)}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &cfgpush.RequestError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PRIVATE-TOKEN", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &cfgpush.RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &cfgpush.RequestError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	return ParseResponse(resp.StatusCode, body), nil
}

// ParseResponse builds a CommitResponse, picking out the JSON "message"
// field when the body carries one as a string. Validation failures report
// message as an object, which is left in Body only.
func ParseResponse(status int, body []byte) *cfgpush.CommitResponse {
	out := &cfgpush.CommitResponse{StatusCode: status, Body: body}

	var envelope struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Message) == 0 {
		return out
	}
	var msg string
	if err := json.Unmarshal(envelope.Message, &msg); err == nil {
		out.Message = msg
	}
	return out
}

// cappedBackoff honors Retry-After like the default backoff but never waits
// longer than max; the dispatcher is blocked for the whole wait.
func cappedBackoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	d := retryablehttp.DefaultBackoff(min, max, attemptNum, resp)
	if max > 0 && d > max {
		return max
	}
	return d
}

// checkRetry retries the transient statuses and connection-level timeouts.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true, nil
		}
		return false, nil
	}
	return retryStatuses[resp.StatusCode], nil
}
