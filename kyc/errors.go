package kyc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rentbase/idverify/model"
)

// Error is the normalized failure every component of the engine returns.
// Retryable marks failures the orchestrator may try again.
type Error struct {
	Kind      model.ErrorKind
	Provider  string
	Op        string
	Message   string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString("provider " + e.Provider + " ")
	}
	if e.Op != "" {
		b.WriteString(e.Op + " ")
	}
	b.WriteString("[" + string(e.Kind) + "]: " + e.Message)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError reports malformed or missing request fields.
func NewValidationError(op, message string, err error) *Error {
	return &Error{Kind: model.ErrorValidation, Op: op, Message: message, Err: err}
}

// NewConfigurationError reports an unknown provider or missing credentials.
func NewConfigurationError(provider, message string, err error) *Error {
	return &Error{Kind: model.ErrorConfiguration, Provider: provider, Message: message, Err: err}
}

// NewNetworkError reports a transient transport failure talking to a vendor.
func NewNetworkError(provider, op string, err error) *Error {
	return &Error{Kind: model.ErrorNetwork, Provider: provider, Op: op, Message: "transport failure", Err: err, Retryable: true}
}

// NewTimeoutError reports a vendor that did not answer within the deadline.
func NewTimeoutError(provider, op string, err error) *Error {
	return &Error{Kind: model.ErrorTimeout, Provider: provider, Op: op, Message: "no response before deadline", Err: err, Retryable: true}
}

// NewProviderError reports an application-level failure signalled by the vendor.
func NewProviderError(provider, op, message string, transient bool, err error) *Error {
	return &Error{Kind: model.ErrorProvider, Provider: provider, Op: op, Message: message, Err: err, Retryable: transient}
}

// ErrCancelled is returned when the caller abandons a verification.
var ErrCancelled = errors.New("verification cancelled by caller")

// KindOf maps any error onto the taxonomy.
func KindOf(err error) model.ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorTimeout
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
		return model.ErrorCancelled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return model.ErrorTimeout
		}
		return model.ErrorNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return model.ErrorNetwork
	}
	return model.ErrorProvider
}

// IsRetryable reports whether another attempt could produce a different answer.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	switch KindOf(err) {
	case model.ErrorNetwork, model.ErrorTimeout:
		return true
	}
	return false
}

// ClassifyHTTPError converts an error from http.Client.Do into the taxonomy.
// A cancelled caller context is passed through untouched.
func ClassifyHTTPError(ctx context.Context, provider, op string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if KindOf(err) == model.ErrorTimeout {
		return NewTimeoutError(provider, op, err)
	}
	return NewNetworkError(provider, op, err)
}

// ClassifyStatus converts a non-2xx vendor response into the taxonomy.
// Callers handle 404 themselves when it means "no record".
func ClassifyStatus(provider, op string, statusCode int, body []byte) error {
	cause := fmt.Errorf("status %d: %s", statusCode, truncate(string(body), 256))
	switch {
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return NewTimeoutError(provider, op, cause)
	case statusCode >= 500:
		return NewNetworkError(provider, op, cause)
	case statusCode == http.StatusTooManyRequests:
		return NewProviderError(provider, op, "rate limited", true, cause)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewProviderError(provider, op, "credentials rejected", false, cause)
	default:
		return NewProviderError(provider, op, "request rejected", false, cause)
	}
}

// RequireFields fails fast when any named field is blank.
func RequireFields(op string, fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return NewValidationError(op, "missing required fields: "+strings.Join(missing, ", "), nil)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
