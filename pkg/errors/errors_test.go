package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

var (
	errInner     = errors.New("inner")
	errRootCause = errors.New("root cause")
	errPlain     = errors.New("plain error")
	errUserDeny  = errors.New("user rejected the request")
)

func TestExitCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"success", nil, linkerr.ExitSuccess},
		{"general error", linkerr.ErrGeneral, linkerr.ExitGeneral},
		{"input error", linkerr.ErrInvalidInput, linkerr.ExitInput},
		{"rejected request", linkerr.ErrRPCRejected, linkerr.ExitAuth},
		{"no accounts", linkerr.ErrNoAccountsReturned, linkerr.ExitAuth},
		{"not found error", linkerr.ErrNotFound, linkerr.ExitNotFound},
		{"provider missing", linkerr.ErrProviderNotDetected, linkerr.ExitUnavailable},
		{"reconnect exhausted", linkerr.ErrMaxReconnectAttempts, linkerr.ExitUnavailable},
		{"plain error", errPlain, linkerr.ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, linkerr.ExitCode(tt.err))
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	t.Parallel()
	sentinels := []error{
		linkerr.ErrProviderNotDetected,
		linkerr.ErrNoAccountsReturned,
		linkerr.ErrRPCRejected,
		linkerr.ErrNetworkSwitchRejected,
		linkerr.ErrMaxReconnectAttempts,
	}

	for _, sentinel := range sentinels {
		wrapped := linkerr.Wrap(sentinel, "wrapped")
		require.ErrorIs(t, wrapped, sentinel)
	}
}

func TestErrorCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err      error
		expected string
	}{
		{linkerr.ErrGeneral, "GENERAL_ERROR"},
		{linkerr.ErrProviderNotDetected, "PROVIDER_NOT_DETECTED"},
		{linkerr.ErrNoAccountsReturned, "NO_ACCOUNTS_RETURNED"},
		{linkerr.ErrRPCRejected, "RPC_REJECTED"},
		{linkerr.ErrNetworkSwitchRejected, "NETWORK_SWITCH_REJECTED"},
		{linkerr.ErrMaxReconnectAttempts, "MAX_RECONNECT_ATTEMPTS"},
		{errPlain, "GENERAL_ERROR"},
		{nil, "GENERAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, linkerr.Code(tt.err))
		})
	}
}

func TestLinkError_Error(t *testing.T) {
	t.Parallel()

	t.Run("message only", func(t *testing.T) {
		t.Parallel()
		err := &linkerr.LinkError{Code: "TEST", Message: "something failed"}
		assert.Equal(t, "something failed", err.Error())
	})

	t.Run("with details sorted", func(t *testing.T) {
		t.Parallel()
		err := &linkerr.LinkError{
			Code:    "TEST",
			Message: "failed",
			Details: map[string]string{"beta": "2", "alpha": "1"},
		}
		assert.Equal(t, "failed (alpha: 1) (beta: 2)", err.Error())
	})

	t.Run("with details and cause", func(t *testing.T) {
		t.Parallel()
		err := &linkerr.LinkError{
			Code:    "TEST",
			Message: "outer",
			Details: map[string]string{"key": "val"},
			Cause:   errInner,
		}
		assert.Equal(t, "outer (key: val): inner", err.Error())
	})
}

func TestLinkError_IsAndUnwrap(t *testing.T) {
	t.Parallel()

	a := &linkerr.LinkError{Code: "SAME_CODE", Message: "a", Cause: errRootCause}
	b := &linkerr.LinkError{Code: "SAME_CODE", Message: "b"}
	c := &linkerr.LinkError{Code: "OTHER", Message: "c"}

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
	assert.False(t, a.Is(errPlain))
	assert.Equal(t, errRootCause, a.Unwrap())
	assert.NoError(t, b.Unwrap())
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("sentinel keeps identity", func(t *testing.T) {
		t.Parallel()
		wrapped := linkerr.Wrap(linkerr.ErrUnknownNetwork, "network %s", "goerli")
		assert.Contains(t, wrapped.Error(), "network goerli")
		require.ErrorIs(t, wrapped, linkerr.ErrUnknownNetwork)
		assert.Equal(t, linkerr.ExitNotFound, linkerr.ExitCode(wrapped))
	})

	t.Run("nil input", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, linkerr.Wrap(nil, "context"))
	})

	t.Run("plain error", func(t *testing.T) {
		t.Parallel()
		wrapped := linkerr.Wrap(errPlain, "context")
		var le *linkerr.LinkError
		require.ErrorAs(t, wrapped, &le)
		assert.Equal(t, "GENERAL_ERROR", le.Code)
		assert.Equal(t, "context", le.Message)
		assert.Equal(t, errPlain, le.Cause)
	})
}

func TestWithCause(t *testing.T) {
	t.Parallel()

	err := linkerr.WithCause(linkerr.ErrRPCRejected, errUserDeny)
	require.ErrorIs(t, err, linkerr.ErrRPCRejected)
	require.ErrorIs(t, err, errUserDeny)
	assert.Equal(t, "wallet request rejected: user rejected the request", err.Error())

	// The sentinel itself is never mutated.
	assert.NoError(t, linkerr.ErrRPCRejected.Unwrap())

	assert.NoError(t, linkerr.WithCause(nil, errUserDeny))

	plain := linkerr.WithCause(errPlain, errInner)
	require.ErrorIs(t, plain, errPlain)
	require.ErrorIs(t, plain, errInner)
}

func TestWithDetailsAndSuggestion(t *testing.T) {
	t.Parallel()
	details := map[string]string{"chain_id": "0x7a69"}

	err := linkerr.WithDetails(linkerr.ErrNetworkSwitchRejected, details)
	err = linkerr.WithSuggestion(err, "Add the network to your wallet first")

	var le *linkerr.LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "NETWORK_SWITCH_REJECTED", le.Code)
	assert.Equal(t, details, le.Details)
	assert.Equal(t, "Add the network to your wallet first", le.Suggestion)

	assert.NoError(t, linkerr.WithDetails(nil, details))
	assert.NoError(t, linkerr.WithSuggestion(nil, "x"))

	plain := linkerr.WithSuggestion(errPlain, "try this")
	require.ErrorAs(t, plain, &le)
	assert.Equal(t, "GENERAL_ERROR", le.Code)
	assert.Equal(t, "plain error", le.Message)
}

func TestUserMessage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errPlain, "Plain error"},
		{"sentinel", linkerr.ErrProviderNotDetected, "Wallet provider not detected"},
		{"with cause", linkerr.WithCause(linkerr.ErrRPCRejected, errUserDeny), "Wallet request rejected: user rejected the request"},
		{"with suggestion", linkerr.ErrMaxReconnectAttempts, "Max reconnection attempts reached. Please reconnect manually."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, linkerr.UserMessage(tt.err))
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	err := linkerr.New("CUSTOM_ERROR", "custom error message")
	assert.Equal(t, "custom error message", err.Error())
	assert.Equal(t, linkerr.ExitGeneral, err.ExitCode)
}
