package espsync

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/internal/pkg/connectors"
	"github.com/subsyncio/subsync/internal/pkg/security"
)

// mapRemoteSubscriber builds the local row for one fetched record. Known
// fields map onto typed columns; whatever else the provider sent is kept as
// an opaque metadata bag so the schema stays bounded.
func mapRemoteSubscriber(conn *models.EspConnection, publicationID string, r connectors.RemoteSubscriber, secret string) (*models.Subscriber, error) {
	externalID := strings.TrimSpace(r.ID)
	if externalID == "" {
		return nil, errors.New("remote record is missing an id")
	}
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return nil, errors.New("remote record is missing an email address")
	}

	emailEnc, err := security.EncryptCredential(email, secret)
	if err != nil {
		return nil, err
	}

	status := r.Status
	if !models.IsKnownSubscriberStatus(status) {
		status = models.SubscriberStatusPending
	}

	metadataJSON := ""
	if len(r.Fields) > 0 {
		raw, err := json.Marshal(r.Fields)
		if err != nil {
			return nil, err
		}
		metadataJSON = string(raw)
	}

	return &models.Subscriber{
		EspConnectionID: conn.ID,
		ExternalID:      externalID,
		PublicationID:   publicationID,
		EmailEnc:        emailEnc,
		EmailMasked:     security.MaskEmail(email),
		Status:          status,
		FirstName:       strings.TrimSpace(r.FirstName),
		LastName:        strings.TrimSpace(r.LastName),
		SubscribedAt:    r.SubscribedAt,
		UnsubscribedAt:  r.UnsubscribedAt,
		MetadataJSON:    metadataJSON,
	}, nil
}
