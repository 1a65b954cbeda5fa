package cfgpush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

type fakeTimeout struct{}

func (fakeTimeout) Error() string   { return "i/o timeout" }
func (fakeTimeout) Timeout() bool   { return true }
func (fakeTimeout) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantTag  Tag
		wantCode int
	}{
		{name: "status error", err: &StatusError{Op: "update", StatusCode: 503}, wantTag: TagHTTPError, wantCode: 503},
		{name: "wrapped status error", err: fmt.Errorf("push: %w", &StatusError{Op: "update", StatusCode: 404}), wantTag: TagHTTPError, wantCode: 404},
		{name: "deadline", err: &RequestError{Op: "update", Err: context.DeadlineExceeded}, wantTag: TagTimeout, wantCode: 408},
		{name: "net timeout", err: &RequestError{Op: "update", Err: fakeTimeout{}}, wantTag: TagTimeout, wantCode: 408},
		{name: "connection refused", err: &RequestError{Op: "update", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, wantTag: TagConnection},
		{name: "bare reset", err: syscall.ECONNRESET, wantTag: TagConnection},
		{name: "dns", err: &RequestError{Op: "create", Err: &net.DNSError{Name: "git.invalid"}}, wantTag: TagConnection},
		{name: "generic request", err: &RequestError{Op: "update", Err: errors.New("unsupported protocol scheme")}, wantTag: TagRequest},
		{name: "malformed name", err: fmt.Errorf("%w: bad", ErrMalformedName), wantTag: TagType},
		{name: "json type", err: &json.UnmarshalTypeError{Value: "number"}, wantTag: TagType},
		{name: "anything else", err: errors.New("gzip: invalid header"), wantTag: TagUncaught},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Message != tt.wantTag {
				t.Errorf("Classify() tag = %q, want %q", got.Message, tt.wantTag)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Classify() code = %d, want %d", got.Code, tt.wantCode)
			}
		})
	}
}

func TestTag_Text(t *testing.T) {
	if got := TagTimeout.Text(); got != "Request timeout!" {
		t.Errorf("TagTimeout.Text() = %q", got)
	}
	if got := Tag("bogus").Text(); got != "Unexpected error" {
		t.Errorf("unknown tag Text() = %q, want fallback", got)
	}
}

type notifierFunc func(ctx context.Context, text string) error

func (f notifierFunc) Notify(ctx context.Context, text string) error { return f(ctx, text) }

type countingLogger struct {
	NopLogger
	errors, warns int
}

func (l *countingLogger) Error(string, ...any) { l.errors++ }
func (l *countingLogger) Warn(string, ...any)  { l.warns++ }

func TestReporter_Report(t *testing.T) {
	var sent []string
	logger := &countingLogger{}
	r := NewReporter(notifierFunc(func(_ context.Context, text string) error {
		sent = append(sent, text)
		return nil
	}), logger)

	out := r.Report(context.Background(), &StatusError{Op: "update", StatusCode: 500}, "/srv/ftp/sw1.gz")

	if out.Message != TagHTTPError || out.Code != 500 {
		t.Errorf("Report() = %+v", out)
	}
	if len(sent) != 1 || sent[0] != "Error status code received: /srv/ftp/sw1.gz" {
		t.Errorf("notifications = %q", sent)
	}
	if logger.errors != 1 {
		t.Errorf("error logs = %d, want 1", logger.errors)
	}
}

func TestReporter_NotifierFailure(t *testing.T) {
	logger := &countingLogger{}
	r := NewReporter(notifierFunc(func(context.Context, string) error {
		return errors.New("webhook unreachable")
	}), logger)

	out := r.Report(context.Background(), errors.New("boom"), "")
	if out.Message != TagUncaught {
		t.Errorf("Report() tag = %q, want %q", out.Message, TagUncaught)
	}
	if logger.warns != 1 {
		t.Errorf("warn logs = %d, want 1", logger.warns)
	}
}

func TestReporter_NilNotifier(t *testing.T) {
	r := NewReporter(nil, NewNopLogger())
	out := r.Report(context.Background(), ErrMalformedName, "x")
	if out.Message != TagType {
		t.Errorf("Report() tag = %q, want %q", out.Message, TagType)
	}
}
