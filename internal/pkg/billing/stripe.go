package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/subsyncio/subsync/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// StripeClient is the external billing collaborator. It implements both
// SubscriptionProvider and UsageReporter.
type StripeClient struct {
	SecretKey  string
	APIBaseURL string

	HTTPClient *http.Client
}

func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// IsConfigured reports whether a secret key is present.
func (c *StripeClient) IsConfigured() bool {
	return c.SecretKey != ""
}

type stripeSubscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	Items              struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	} `json:"items"`
}

func (raw *stripeSubscription) toRemote() RemoteSubscription {
	out := RemoteSubscription{
		ID:                raw.ID,
		CustomerID:        raw.Customer,
		Status:            raw.Status,
		CancelAtPeriodEnd: raw.CancelAtPeriodEnd,
	}
	// A missing period decodes to 0. Converting that through time.Unix would
	// produce the 1970 epoch, which is not the zero time, so the absence of a
	// period has to be decided on the raw integers.
	if raw.CurrentPeriodStart > 0 {
		out.CurrentPeriodStart = time.Unix(raw.CurrentPeriodStart, 0).UTC()
	}
	if raw.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(raw.CurrentPeriodEnd, 0).UTC()
	}
	if len(raw.Items.Data) > 0 {
		out.ItemID = raw.Items.Data[0].ID
	}
	return out
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	if c.SecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe request %s failed: status=%d body=%s", path, resp.StatusCode, string(raw))
	}
	return raw, nil
}

// GetSubscription fetches one subscription by id.
func (c *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*RemoteSubscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, errors.New("subscription id is required")
	}
	body, err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(subscriptionID), nil)
	if err != nil {
		return nil, err
	}

	var raw stripeSubscription
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	remote := raw.toRemote()
	return &remote, nil
}

// ListSubscriptionsByCustomer lists a customer's subscriptions across all
// statuses, in provider order.
func (c *StripeClient) ListSubscriptionsByCustomer(ctx context.Context, customerID string) ([]RemoteSubscription, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}
	body, err := c.do(ctx, http.MethodGet, "/subscriptions?status=all&customer="+url.QueryEscape(customerID), nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Data []stripeSubscription `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	out := make([]RemoteSubscription, 0, len(raw.Data))
	for i := range raw.Data {
		out = append(out, raw.Data[i].toRemote())
	}
	return out, nil
}

// ReportUsage records a usage total against a subscription item. The "set"
// action keeps repeated reports idempotent within a period.
func (c *StripeClient) ReportUsage(ctx context.Context, subscriptionItemID string, quantity int64) (string, error) {
	if strings.TrimSpace(subscriptionItemID) == "" {
		return "", errors.New("subscription item id is required")
	}
	if quantity < 0 {
		return "", errors.New("quantity must not be negative")
	}

	form := url.Values{}
	form.Set("quantity", strconv.FormatInt(quantity, 10))
	form.Set("action", "set")
	form.Set("timestamp", strconv.FormatInt(time.Now().Unix(), 10))

	body, err := c.do(ctx, http.MethodPost, "/subscription_items/"+url.PathEscape(subscriptionItemID)+"/usage_records", form)
	if err != nil {
		return "", err
	}

	var raw struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", err
	}
	return raw.ID, nil
}
