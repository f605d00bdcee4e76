package connectors

import (
	"context"
	"time"
)

// Publication is one remote list/segment/audience, unified across ESPs.
type Publication struct {
	ID   string
	Name string
}

// RemoteSubscriber is the provider-agnostic shape a connector returns for one
// list member. Known fields are typed; anything provider-specific lands in
// Fields as an opaque bag.
type RemoteSubscriber struct {
	ID             string
	Email          string
	Status         string
	FirstName      string
	LastName       string
	SubscribedAt   *time.Time
	UnsubscribedAt *time.Time
	Fields         map[string]interface{}
}

// Connector is the fixed contract every ESP adapter implements. The secret is
// whatever credential the connection's auth method prescribes: a static API
// key, or a decrypted OAuth access token for OAuthConnector implementations.
type Connector interface {
	ValidateCredential(ctx context.Context, secret, publicationID string) (bool, error)
	ListPublications(ctx context.Context, secret string) ([]Publication, error)
	FetchSubscribers(ctx context.Context, secret, publicationID string) ([]RemoteSubscriber, error)
	GetSubscriberCount(ctx context.Context, secret, publicationID string) (int, error)
}

// OAuthConnector is implemented by connectors that authenticate with an OAuth
// bearer token instead of a static API key.
type OAuthConnector interface {
	Connector
	OAuthScopes() []string
}
