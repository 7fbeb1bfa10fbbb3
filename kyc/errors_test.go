package kyc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentbase/idverify/model"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "i/o" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

var _ net.Error = timeoutErr{}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ErrorKind
	}{
		{"nil", nil, ""},
		{"validation", NewValidationError("verify", "bad", nil), model.ErrorValidation},
		{"wrapped configuration", fmt.Errorf("outer: %w", NewConfigurationError("x", "unknown provider", nil)), model.ErrorConfiguration},
		{"deadline", context.DeadlineExceeded, model.ErrorTimeout},
		{"cancelled", context.Canceled, model.ErrorCancelled},
		{"net timeout", timeoutErr{timeout: true}, model.ErrorTimeout},
		{"net failure", timeoutErr{timeout: false}, model.ErrorNetwork},
		{"url error", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, model.ErrorNetwork},
		{"anything else", errors.New("boom"), model.ErrorProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewNetworkError("dojah", "verify_nin", nil)))
	assert.True(t, IsRetryable(NewTimeoutError("dojah", "verify_nin", nil)))
	assert.True(t, IsRetryable(NewProviderError("dojah", "verify_nin", "rate limited", true, nil)))
	assert.True(t, IsRetryable(context.DeadlineExceeded))

	assert.False(t, IsRetryable(NewProviderError("dojah", "verify_nin", "rejected", false, nil)))
	assert.False(t, IsRetryable(NewValidationError("verify_nin", "missing", nil)))
	assert.False(t, IsRetryable(NewConfigurationError("dojah", "missing key", nil)))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewNetworkError("dojah", "verify_nin", cause)

	assert.Equal(t, "provider dojah verify_nin [NETWORK_ERROR]: transport failure: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	// "é" is two bytes, cutting at 3 would split the second one
	assert.Equal(t, "é...", truncate("ééé", 3))
	assert.Equal(t, "...", truncate("日本", 2))

	err := ClassifyStatus("dojah", "verify_nin", 500, []byte(strings.Repeat("ñ", 300)))
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code      int
		kind      model.ErrorKind
		retryable bool
	}{
		{500, model.ErrorNetwork, true},
		{503, model.ErrorNetwork, true},
		{504, model.ErrorTimeout, true},
		{408, model.ErrorTimeout, true},
		{429, model.ErrorProvider, true},
		{401, model.ErrorProvider, false},
		{403, model.ErrorProvider, false},
		{400, model.ErrorProvider, false},
	}

	for _, tt := range tests {
		err := ClassifyStatus("dojah", "verify_nin", tt.code, []byte(`{"error":"x"}`))
		assert.Equal(t, tt.kind, KindOf(err), tt.code)
		assert.Equal(t, tt.retryable, IsRetryable(err), tt.code)
	}
}

func TestClassifyHTTPError(t *testing.T) {
	ctx := context.Background()

	err := ClassifyHTTPError(ctx, "dojah", "verify_nin", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{timeout: true}})
	assert.Equal(t, model.ErrorTimeout, KindOf(err))

	err = ClassifyHTTPError(ctx, "dojah", "verify_nin", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")})
	assert.Equal(t, model.ErrorNetwork, KindOf(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = ClassifyHTTPError(cancelled, "dojah", "verify_nin", errors.New("anything"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.ErrorCancelled, KindOf(err))
}

func TestRequireFields(t *testing.T) {
	require.NoError(t, RequireFields("verify_nin", map[string]string{"document_number": "123"}))

	err := RequireFields("verify_nin", map[string]string{"document_number": " ", "dob": ""})
	require.Error(t, err)
	assert.Equal(t, model.ErrorValidation, KindOf(err))
	assert.Contains(t, err.Error(), "dob, document_number")
}
