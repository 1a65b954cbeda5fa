package cfgpush

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"syscall"
)

// Tag classifies a failure reported by the pipeline.
type Tag string

const (
	TagTimeout    Tag = "TimeOut"
	TagHTTPError  Tag = "HttpError"
	TagConnection Tag = "ConnectionError"
	TagRequest    Tag = "RequestException"
	TagType       Tag = "TypeError"
	TagUncaught   Tag = "UncaughtError"
)

var tagText = map[Tag]string{
	TagTimeout:    "Request timeout!",
	TagHTTPError:  "Error status code received",
	TagConnection: "Connection error",
	TagRequest:    "Request Exception error",
	TagType:       "Type error",
	TagUncaught:   "Unexpected error",
}

// Text returns the human-readable notification text for the tag.
func (t Tag) Text() string {
	if s, ok := tagText[t]; ok {
		return s
	}
	return tagText[TagUncaught]
}

// Outcome is the classified result of a failure. Code carries the HTTP
// status when one is known.
type Outcome struct {
	Message Tag
	Code    int
}

// Classify maps err onto one of the fixed failure tags.
func Classify(err error) Outcome {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return Outcome{Message: TagHTTPError, Code: statusErr.StatusCode}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return Outcome{Message: TagTimeout, Code: http.StatusRequestTimeout}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return Outcome{Message: TagConnection}
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return Outcome{Message: TagRequest}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.Is(err, ErrMalformedName) || errors.As(err, &typeErr) {
		return Outcome{Message: TagType}
	}

	return Outcome{Message: TagUncaught}
}

// Reporter turns failures into classified outcomes: it logs them, forwards a
// one-line description to the Notifier and never propagates the error.
type Reporter struct {
	notifier Notifier
	logger   Logger
}

// NewReporter creates a Reporter. A nil notifier disables notifications.
func NewReporter(notifier Notifier, logger Logger) *Reporter {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Reporter{notifier: notifier, logger: logger}
}

// Report classifies err, logs it, and notifies the sink. detail names the
// subject of the failure (usually the arrival path) in the notification.
func (r *Reporter) Report(ctx context.Context, err error, detail string) Outcome {
	outcome := Classify(err)

	r.logger.Error("arrival failed", "outcome", string(outcome.Message), "code", outcome.Code, "detail", detail, "error", err)

	text := outcome.Message.Text()
	if detail != "" {
		text += ": " + detail
	}
	if nerr := r.notifier.Notify(ctx, text); nerr != nil {
		r.logger.Warn("failure notification not delivered", "error", nerr)
	}

	return outcome
}
