package cfgpush

import (
	"context"
	"time"
)

// MissingPathMessage is the commit API's "message" value when an update
// targets a path that has not been created yet.
const MissingPathMessage = "A file with this name doesn't exist"

// InitialContent is the placeholder body written when a path is created.
const InitialContent = "Initial commit"

// Action is a single-file change kind accepted by the commits endpoint.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// CommitAction is one entry of the commit request's actions array.
type CommitAction struct {
	Action   Action `json:"action"`
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

// CommitRequest is the JSON body posted to the commits endpoint.
// It is built per attempt and never stored.
type CommitRequest struct {
	Branch        string         `json:"branch"`
	CommitMessage string         `json:"commit_message"`
	Actions       []CommitAction `json:"actions"`
}

// NewCommitRequest builds a single-action request whose commit message is the
// UTC timestamp at.
func NewCommitRequest(branch string, at time.Time, action Action, path, content string) *CommitRequest {
	return &CommitRequest{
		Branch:        branch,
		CommitMessage: at.UTC().Format(time.RFC3339Nano),
		Actions: []CommitAction{
			{Action: action, FilePath: path, Content: content},
		},
	}
}

// CommitResponse is the outcome of a commit API call that reached the server.
type CommitResponse struct {
	StatusCode int
	// Message is the JSON "message" field when it is a string, otherwise empty.
	Message string
	Body    []byte
}

// OK reports whether the response has a 2xx status.
func (r *CommitResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// MissingPath reports whether the server rejected an update because the
// target path does not exist.
func (r *CommitResponse) MissingPath() bool {
	return r.Message == MissingPathMessage
}

// CommitAPI performs the two commit operations against the remote host.
// Responses with any HTTP status are returned without error; an error means
// the request never produced a response (and is a *RequestError).
type CommitAPI interface {
	// Create creates identifier as a new path holding InitialContent.
	Create(ctx context.Context, identifier string) (*CommitResponse, error)

	// Update replaces the content of identifier.
	Update(ctx context.Context, identifier string, content string) (*CommitResponse, error)
}
