package connectors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderErrorStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   string
	}{
		{401, KindInvalidCredential},
		{403, KindInvalidCredential},
		{404, KindNotFound},
		{429, KindRateLimited},
		{500, KindServerError},
		{503, KindServerError},
		{422, KindServerError},
	}

	for _, tt := range tests {
		err := NewProviderError("mailerlite", tt.status, "nope")
		if err.Kind != tt.kind {
			t.Errorf("status %d classified as %s, want %s", tt.status, err.Kind, tt.kind)
		}
	}
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, IsAuthError(NewProviderError("aweber", 401, "expired")))
	assert.False(t, IsAuthError(NewProviderError("aweber", 429, "slow down")))
	assert.False(t, IsAuthError(errors.New("plain")))

	// Classification survives wrapping.
	wrapped := fmt.Errorf("fetching page 3: %w", NewProviderError("aweber", 403, "denied"))
	assert.True(t, IsAuthError(wrapped))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewProviderError("mailerlite", 404, "gone")))
	assert.False(t, IsNotFound(NewProviderError("mailerlite", 500, "boom")))
	assert.False(t, IsNotFound(nil))
}

func TestNetworkErrorKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewNetworkError("mailerlite", cause)

	assert.Equal(t, KindNetwork, err.Kind)
	assert.True(t, errors.Is(err, cause))
	assert.Zero(t, err.StatusCode)
}
