package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeCapability, "matcher unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeCapability, CodeOf(err))
	assert.Equal(t, "matcher unavailable", MessageOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHasCodeWalksTheChain(t *testing.T) {
	inner := New(CodeNotFound, "template missing")
	outer := Wrap(inner, CodeCapability, "lookup failed")

	assert.True(t, HasCode(outer, CodeCapability))
	assert.True(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(outer, CodeConflict))

	// Plain errors carry no code at all.
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.True(t, Is(outer, CodeNotFound))
}

func TestHasCodeThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeTimeout, "deadline hit"))
	assert.True(t, HasCode(err, CodeTimeout))
	assert.Equal(t, CodeTimeout, CodeOf(err))
	assert.Equal(t, "deadline hit", MessageOf(err))
}

func TestCodeOfFallsBackToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestMessageOfFallbacks(t *testing.T) {
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
	assert.Equal(t, "", MessageOf(nil))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeBadRequest, http.StatusBadRequest},
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeUnsupportedStrategy, http.StatusBadRequest},
		{CodePolicyViolation, http.StatusUnprocessableEntity},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeCapability, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
		{Code("unknown"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			require.Equal(t, tc.want, ToHTTPStatus(tc.code))
		})
	}
}
