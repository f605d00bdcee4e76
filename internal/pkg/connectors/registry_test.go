package connectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsyncio/subsync/app/models"
)

type noopConnector struct{}

func (noopConnector) ValidateCredential(ctx context.Context, secret, publicationID string) (bool, error) {
	return true, nil
}
func (noopConnector) ListPublications(ctx context.Context, secret string) ([]Publication, error) {
	return nil, nil
}
func (noopConnector) FetchSubscribers(ctx context.Context, secret, publicationID string) ([]RemoteSubscriber, error) {
	return nil, nil
}
func (noopConnector) GetSubscriberCount(ctx context.Context, secret, publicationID string) (int, error) {
	return 0, nil
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register("campaignmonitor", noopConnector{})

	c, ok := reg.Resolve("campaignmonitor")
	assert.True(t, ok)
	assert.NotNil(t, c)

	_, ok = reg.Resolve("unknown")
	assert.False(t, ok)
}

func TestRegistryDuplicateRegistrationPanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register("campaignmonitor", noopConnector{})

	assert.Panics(t, func() {
		reg.Register("campaignmonitor", noopConnector{})
	})
}

func TestRegistryTypesSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register("zeta", noopConnector{})
	reg.Register("alpha", noopConnector{})

	assert.Equal(t, []string{"alpha", "zeta"}, reg.Types())
}

func TestDefaultRegistryContainsBuiltins(t *testing.T) {
	reg := Default()

	ml, ok := reg.Resolve(models.EspTypeMailerlite)
	require.True(t, ok)
	_, isOAuth := ml.(OAuthConnector)
	assert.False(t, isOAuth)

	aw, ok := reg.Resolve(models.EspTypeAWeber)
	require.True(t, ok)
	_, isOAuth = aw.(OAuthConnector)
	assert.True(t, isOAuth)
}
