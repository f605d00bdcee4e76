package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStripeTestClient(t *testing.T, handler http.HandlerFunc) *StripeClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &StripeClient{
		SecretKey:  "sk_test_123",
		APIBaseURL: srv.URL,
		HTTPClient: srv.Client(),
	}
}

func TestGetSubscriptionDecodesPeriod(t *testing.T) {
	client := newStripeTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/sub_123", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "sub_123",
			"customer": "cus_123",
			"status": "active",
			"current_period_start": 1754006400,
			"current_period_end": 1756684800,
			"cancel_at_period_end": false,
			"items": {"data": [{"id": "si_123"}]}
		}`))
	})

	remote, err := client.GetSubscription(context.Background(), "sub_123")
	require.NoError(t, err)

	assert.Equal(t, "sub_123", remote.ID)
	assert.Equal(t, "cus_123", remote.CustomerID)
	assert.Equal(t, "si_123", remote.ItemID)
	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), remote.CurrentPeriodStart)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), remote.CurrentPeriodEnd)
}

func TestGetSubscriptionWithoutPeriodStaysZero(t *testing.T) {
	client := newStripeTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "sub_123", "customer": "cus_123", "status": "incomplete", "items": {"data": []}}`))
	})

	remote, err := client.GetSubscription(context.Background(), "sub_123")
	require.NoError(t, err)

	// Absent period fields must not turn into the 1970 epoch.
	assert.True(t, remote.CurrentPeriodStart.IsZero())
	assert.True(t, remote.CurrentPeriodEnd.IsZero())
	assert.Empty(t, remote.ItemID)
}

func TestReportUsageSetsQuantity(t *testing.T) {
	client := newStripeTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscription_items/si_123/usage_records", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "3", r.PostForm.Get("quantity"))
		assert.Equal(t, "set", r.PostForm.Get("action"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "mbur_1"}`))
	})

	ref, err := client.ReportUsage(context.Background(), "si_123", 3)
	require.NoError(t, err)
	assert.Equal(t, "mbur_1", ref)
}
