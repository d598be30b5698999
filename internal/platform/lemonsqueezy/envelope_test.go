package lemonsqueezy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_OrderCreated(t *testing.T) {
	body := []byte(`{
		"meta": {
			"event_name": "order_created",
			"test_mode": true,
			"custom_data": {"user_id": "usr-42"}
		},
		"data": {
			"type": "orders",
			"id": "ORD-1",
			"attributes": {
				"identifier": "f9e7-...-11d1",
				"user_email": "a@x.com",
				"user_name": "Ada",
				"status": "paid",
				"total": 2000,
				"currency": "USD",
				"first_order_item": {"product_name": "Pro Plan", "variant_id": 7}
			}
		}
	}`)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)
	require.Equal(t, "order_created", env.EventName)
	require.Equal(t, "ORD-1", env.EventID)
	require.True(t, env.TestMode)
	require.Equal(t, "usr-42", env.MetadataUserID())
	require.NotNil(t, env.Order)
	require.Equal(t, "paid", env.Order.Status)
	require.Equal(t, int64(2000), env.Order.Total)
	require.Equal(t, "a@x.com", env.UserEmail())
	require.Equal(t, "Ada", env.UserName())
	require.Equal(t, "Pro Plan", env.Order.FirstOrderItem.ProductName)
}

func TestDecodeEnvelope_Subscription(t *testing.T) {
	body := []byte(`{
		"meta": {"event_name": "subscription_created"},
		"data": {
			"type": "subscriptions",
			"id": "SUB-1",
			"attributes": {
				"user_email": "b@x.com",
				"status": "on_trial",
				"cancelled": false,
				"product_name": "Pro Plan",
				"renews_at": "2026-09-01T00:00:00Z"
			}
		}
	}`)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)
	require.NotNil(t, env.Subscription)
	require.Equal(t, "on_trial", env.Subscription.Status)
	require.False(t, env.Subscription.Cancelled)
	require.Equal(t, "SUB-1", env.EventID)
}

func TestDecodeEnvelope_SubscriptionInvoice(t *testing.T) {
	body := []byte(`{
		"meta": {"event_name": "subscription_payment_success"},
		"data": {
			"type": "subscription-invoices",
			"id": "INV-9",
			"attributes": {
				"subscription_id": 11,
				"user_email": "b@x.com",
				"status": "paid",
				"total": 999,
				"billing_reason": "renewal"
			}
		}
	}`)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)
	require.NotNil(t, env.SubscriptionInvoice)
	require.Equal(t, int64(11), env.SubscriptionInvoice.SubscriptionID)
	require.Equal(t, int64(999), env.SubscriptionInvoice.Total)
}

func TestDecodeEnvelope_UnknownEventStillDecodes(t *testing.T) {
	body := []byte(`{
		"meta": {"event_name": "license_key_created"},
		"data": {"type": "license-keys", "id": "LK-1", "attributes": {"key": "xxxx"}}
	}`)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)
	require.Equal(t, "license_key_created", env.EventName)
	require.Nil(t, env.Order)
	require.Nil(t, env.Subscription)
	require.Nil(t, env.SubscriptionInvoice)
	require.NotEmpty(t, env.RawAttributes)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	cases := map[string][]byte{
		"not json":           []byte(`{{{`),
		"missing event name": []byte(`{"meta":{},"data":{"id":"1"}}`),
		"missing data id":    []byte(`{"meta":{"event_name":"order_created"},"data":{}}`),
	}
	for name, body := range cases {
		_, err := DecodeEnvelope(body)
		require.ErrorIs(t, err, ErrMalformedPayload, name)
	}
}

func TestDecodeEnvelope_PartialAttributes(t *testing.T) {
	// Field validation is deferred to the state machine; a sparse payload
	// must still decode.
	body := []byte(`{
		"meta": {"event_name": "order_created"},
		"data": {"type": "orders", "id": "ORD-2", "attributes": {"status": "pending"}}
	}`)
	env, err := DecodeEnvelope(body)
	require.NoError(t, err)
	require.NotNil(t, env.Order)
	require.Equal(t, "pending", env.Order.Status)
	require.Zero(t, env.Order.Total)
}
