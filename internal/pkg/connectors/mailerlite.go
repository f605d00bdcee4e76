package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/internal/pkg/env"
)

const defaultMailerliteAPIBaseURL = "https://connect.mailerlite.com/api"

const mailerlitePageSize = 100

// MailerliteConnector talks to the MailerLite API using a static API key sent
// as a bearer token. Groups are exposed as publications.
type MailerliteConnector struct {
	APIBaseURL string
	HTTPClient *http.Client
}

func NewMailerliteConnector() *MailerliteConnector {
	return &MailerliteConnector{
		APIBaseURL: strings.TrimRight(env.GetEnv("MAILERLITE_API_BASE_URL", defaultMailerliteAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *MailerliteConnector) get(ctx context.Context, secret, path string, query url.Values) ([]byte, error) {
	u, err := url.Parse(c.APIBaseURL + path)
	if err != nil {
		return nil, err
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(secret))
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(models.EspTypeMailerlite, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewProviderError(models.EspTypeMailerlite, resp.StatusCode, string(body))
	}
	return body, nil
}

// ValidateCredential checks the API key by listing groups; a specific group
// id additionally verifies that group still exists.
func (c *MailerliteConnector) ValidateCredential(ctx context.Context, secret, publicationID string) (bool, error) {
	path := "/groups"
	if strings.TrimSpace(publicationID) != "" {
		path = "/groups/" + url.PathEscape(publicationID)
	}
	_, err := c.get(ctx, secret, path, nil)
	if err != nil {
		if IsAuthError(err) || IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *MailerliteConnector) ListPublications(ctx context.Context, secret string) ([]Publication, error) {
	body, err := c.get(ctx, secret, "/groups", nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("mailerlite groups response: %w", err)
	}

	pubs := make([]Publication, 0, len(raw.Data))
	for _, g := range raw.Data {
		pubs = append(pubs, Publication{ID: g.ID, Name: g.Name})
	}
	return pubs, nil
}

func (c *MailerliteConnector) FetchSubscribers(ctx context.Context, secret, publicationID string) ([]RemoteSubscriber, error) {
	var out []RemoteSubscriber
	cursor := ""

	for {
		query := url.Values{}
		query.Set("filter[group]", publicationID)
		query.Set("limit", fmt.Sprintf("%d", mailerlitePageSize))
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		body, err := c.get(ctx, secret, "/subscribers", query)
		if err != nil {
			return nil, err
		}

		var raw struct {
			Data []struct {
				ID             string                 `json:"id"`
				Email          string                 `json:"email"`
				Status         string                 `json:"status"`
				SubscribedAt   string                 `json:"subscribed_at"`
				UnsubscribedAt string                 `json:"unsubscribed_at"`
				Fields         map[string]interface{} `json:"fields"`
			} `json:"data"`
			Meta struct {
				NextCursor string `json:"next_cursor"`
			} `json:"meta"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("mailerlite subscribers response: %w", err)
		}

		for _, s := range raw.Data {
			sub := RemoteSubscriber{
				ID:             s.ID,
				Email:          s.Email,
				Status:         mailerliteStatusToLocal(s.Status),
				SubscribedAt:   parseMailerliteTime(s.SubscribedAt),
				UnsubscribedAt: parseMailerliteTime(s.UnsubscribedAt),
				Fields:         s.Fields,
			}
			if name, ok := s.Fields["name"].(string); ok {
				sub.FirstName = name
			}
			if last, ok := s.Fields["last_name"].(string); ok {
				sub.LastName = last
			}
			out = append(out, sub)
		}

		if raw.Meta.NextCursor == "" || len(raw.Data) == 0 {
			break
		}
		cursor = raw.Meta.NextCursor
	}

	return out, nil
}

func (c *MailerliteConnector) GetSubscriberCount(ctx context.Context, secret, publicationID string) (int, error) {
	body, err := c.get(ctx, secret, "/groups/"+url.PathEscape(publicationID), nil)
	if err != nil {
		return 0, err
	}

	var raw struct {
		Data struct {
			ActiveCount int `json:"active_count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("mailerlite group response: %w", err)
	}
	return raw.Data.ActiveCount, nil
}

func mailerliteStatusToLocal(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return models.SubscriberStatusActive
	case "unsubscribed":
		return models.SubscriberStatusUnsubscribed
	case "bounced":
		return models.SubscriberStatusBounced
	case "junk":
		return models.SubscriberStatusComplained
	case "unconfirmed":
		return models.SubscriberStatusPending
	default:
		return models.SubscriberStatusPending
	}
}

func parseMailerliteTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
