package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/internal/pkg/env"
)

const defaultAWeberAPIBaseURL = "https://api.aweber.com/1.0"

const aweberPageSize = 100

// AWeberConnector talks to the AWeber API using an OAuth bearer token. Lists
// are exposed as publications; list ids are scoped to the first account the
// token grants access to.
type AWeberConnector struct {
	APIBaseURL string
	HTTPClient *http.Client
}

func NewAWeberConnector() *AWeberConnector {
	return &AWeberConnector{
		APIBaseURL: strings.TrimRight(env.GetEnv("AWEBER_API_BASE_URL", defaultAWeberAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// OAuthScopes returns the scopes the access token must carry.
func (c *AWeberConnector) OAuthScopes() []string {
	return []string{"account.read", "list.read", "subscriber.read"}
}

func (c *AWeberConnector) get(ctx context.Context, token, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(models.EspTypeAWeber, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewProviderError(models.EspTypeAWeber, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *AWeberConnector) accountID(ctx context.Context, token string) (string, error) {
	body, err := c.get(ctx, token, c.APIBaseURL+"/accounts")
	if err != nil {
		return "", err
	}

	var raw struct {
		Entries []struct {
			ID json.Number `json:"id"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("aweber accounts response: %w", err)
	}
	if len(raw.Entries) == 0 {
		return "", NewProviderError(models.EspTypeAWeber, http.StatusNotFound, "token grants access to no accounts")
	}
	return raw.Entries[0].ID.String(), nil
}

func (c *AWeberConnector) ValidateCredential(ctx context.Context, token, publicationID string) (bool, error) {
	accountID, err := c.accountID(ctx, token)
	if err != nil {
		if IsAuthError(err) {
			return false, nil
		}
		return false, err
	}
	if strings.TrimSpace(publicationID) == "" {
		return true, nil
	}
	_, err = c.get(ctx, token, fmt.Sprintf("%s/accounts/%s/lists/%s", c.APIBaseURL, accountID, url.PathEscape(publicationID)))
	if err != nil {
		if IsAuthError(err) || IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *AWeberConnector) ListPublications(ctx context.Context, token string) ([]Publication, error) {
	accountID, err := c.accountID(ctx, token)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, token, fmt.Sprintf("%s/accounts/%s/lists", c.APIBaseURL, accountID))
	if err != nil {
		return nil, err
	}

	var raw struct {
		Entries []struct {
			ID   json.Number `json:"id"`
			Name string      `json:"name"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("aweber lists response: %w", err)
	}

	pubs := make([]Publication, 0, len(raw.Entries))
	for _, l := range raw.Entries {
		pubs = append(pubs, Publication{ID: l.ID.String(), Name: l.Name})
	}
	return pubs, nil
}

func (c *AWeberConnector) FetchSubscribers(ctx context.Context, token, publicationID string) ([]RemoteSubscriber, error) {
	accountID, err := c.accountID(ctx, token)
	if err != nil {
		return nil, err
	}

	var out []RemoteSubscriber
	start := 0

	for {
		u := fmt.Sprintf("%s/accounts/%s/lists/%s/subscribers?ws.start=%d&ws.size=%d",
			c.APIBaseURL, accountID, url.PathEscape(publicationID), start, aweberPageSize)
		body, err := c.get(ctx, token, u)
		if err != nil {
			return nil, err
		}

		var raw struct {
			Entries []struct {
				ID             json.Number            `json:"id"`
				Email          string                 `json:"email"`
				Status         string                 `json:"status"`
				Name           string                 `json:"name"`
				SubscribedAt   string                 `json:"subscribed_at"`
				UnsubscribedAt string                 `json:"unsubscribed_at"`
				CustomFields   map[string]interface{} `json:"custom_fields"`
			} `json:"entries"`
			TotalSize int `json:"total_size"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("aweber subscribers response: %w", err)
		}

		for _, s := range raw.Entries {
			first, last := splitName(s.Name)
			out = append(out, RemoteSubscriber{
				ID:             s.ID.String(),
				Email:          s.Email,
				Status:         aweberStatusToLocal(s.Status),
				FirstName:      first,
				LastName:       last,
				SubscribedAt:   parseAWeberTime(s.SubscribedAt),
				UnsubscribedAt: parseAWeberTime(s.UnsubscribedAt),
				Fields:         s.CustomFields,
			})
		}

		start += len(raw.Entries)
		if len(raw.Entries) == 0 || start >= raw.TotalSize {
			break
		}
	}

	return out, nil
}

func (c *AWeberConnector) GetSubscriberCount(ctx context.Context, token, publicationID string) (int, error) {
	accountID, err := c.accountID(ctx, token)
	if err != nil {
		return 0, err
	}

	u := fmt.Sprintf("%s/accounts/%s/lists/%s/subscribers?ws.size=1", c.APIBaseURL, accountID, url.PathEscape(publicationID))
	body, err := c.get(ctx, token, u)
	if err != nil {
		return 0, err
	}

	var raw struct {
		TotalSize json.Number `json:"total_size"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("aweber subscribers response: %w", err)
	}
	total, err := strconv.Atoi(raw.TotalSize.String())
	if err != nil {
		return 0, fmt.Errorf("aweber total_size: %w", err)
	}
	return total, nil
}

func aweberStatusToLocal(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "subscribed":
		return models.SubscriberStatusActive
	case "unsubscribed":
		return models.SubscriberStatusUnsubscribed
	case "unconfirmed":
		return models.SubscriberStatusPending
	default:
		return models.SubscriberStatusPending
	}
}

func splitName(name string) (string, string) {
	parts := strings.Fields(strings.TrimSpace(name))
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func parseAWeberTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
