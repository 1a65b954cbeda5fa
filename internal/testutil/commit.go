package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"cfgpush/internal/cfgpush"
)

// Reply is one scripted commit API answer.
type Reply struct {
	Status int
	Body   string
	Err    error // FakeCommitAPI only: return this instead of a response
}

// Created is the answer to a successful create or update.
func Created() Reply {
	return Reply{Status: http.StatusCreated, Body: `{"id":"0123abcd","message":"Initial commit"}`}
}

// MissingPath is the answer to an update of a path that does not exist yet.
func MissingPath() Reply {
	return Reply{Status: http.StatusBadRequest, Body: `{"message":"` + cfgpush.MissingPathMessage + `"}`}
}

// Status answers with code and a plain JSON message.
func Status(code int, message string) Reply {
	body, _ := json.Marshal(map[string]string{"message": message})
	return Reply{Status: code, Body: string(body)}
}

// Call is one request observed by FakeCommitAPI or CommitServer.
type Call struct {
	Action     cfgpush.Action
	Identifier string
	Content    string

	// Set by CommitServer only.
	Token       string
	ContentType string
	URLPath     string
	Request     cfgpush.CommitRequest
}

// script hands out replies in order, repeating the last one once exhausted.
type script struct {
	mu      sync.Mutex
	replies map[cfgpush.Action][]Reply
	calls   []Call
}

func (s *script) next(c Call) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)

	queue := s.replies[c.Action]
	if len(queue) == 0 {
		return Created()
	}
	r := queue[0]
	if len(queue) > 1 {
		s.replies[c.Action] = queue[1:]
	}
	return r
}

func (s *script) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// FakeCommitAPI is an in-process cfgpush.CommitAPI that answers from a script.
// Unscripted actions answer Created.
type FakeCommitAPI struct {
	script
}

var _ cfgpush.CommitAPI = (*FakeCommitAPI)(nil)

// NewFakeCommitAPI creates a FakeCommitAPI with the given update and create replies.
func NewFakeCommitAPI(updates, creates []Reply) *FakeCommitAPI {
	return &FakeCommitAPI{script{replies: map[cfgpush.Action][]Reply{
		cfgpush.ActionUpdate: updates,
		cfgpush.ActionCreate: creates,
	}}}
}

func (f *FakeCommitAPI) Create(_ context.Context, identifier string) (*cfgpush.CommitResponse, error) {
	return respond(f.next(Call{Action: cfgpush.ActionCreate, Identifier: identifier, Content: cfgpush.InitialContent}))
}

func (f *FakeCommitAPI) Update(_ context.Context, identifier, content string) (*cfgpush.CommitResponse, error) {
	return respond(f.next(Call{Action: cfgpush.ActionUpdate, Identifier: identifier, Content: content}))
}

func respond(r Reply) (*cfgpush.CommitResponse, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	resp := &cfgpush.CommitResponse{StatusCode: r.Status, Body: []byte(r.Body)}
	var envelope struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(resp.Body, &envelope) == nil {
		resp.Message = envelope.Message
	}
	return resp, nil
}

// CommitServer is an httptest server speaking the commits endpoint. It
// records each request and answers from a script per action.
type CommitServer struct {
	*httptest.Server
	script
}

// NewCommitServer starts a CommitServer that is closed when the test completes.
func NewCommitServer(t *testing.T, updates, creates []Reply) *CommitServer {
	t.Helper()

	s := &CommitServer{script: script{replies: map[cfgpush.Action][]Reply{
		cfgpush.ActionUpdate: updates,
		cfgpush.ActionCreate: creates,
	}}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// BaseURL returns the API base, to be used as api.base_url.
func (s *CommitServer) BaseURL() string {
	return s.Server.URL + "/api/v4"
}

func (s *CommitServer) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req cfgpush.CommitRequest
	if err := json.Unmarshal(body, &req); err != nil || len(req.Actions) != 1 {
		http.Error(w, `{"message":"malformed request"}`, http.StatusBadRequest)
		return
	}

	call := Call{
		Action:      req.Actions[0].Action,
		Identifier:  req.Actions[0].FilePath,
		Content:     req.Actions[0].Content,
		Token:       r.Header.Get("PRIVATE-TOKEN"),
		ContentType: r.Header.Get("Content-Type"),
		URLPath:     r.URL.EscapedPath(),
		Request:     req,
	}
	reply := s.next(call)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	io.WriteString(w, reply.Body)
}
