package lemonsqueezy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ship-kit/billing/pkg/types"
)

// Event names delivered by Lemon Squeezy.
const (
	EventOrderCreated  = "order_created"
	EventOrderRefunded = "order_refunded"

	EventSubscriptionCreated   = "subscription_created"
	EventSubscriptionUpdated   = "subscription_updated"
	EventSubscriptionCancelled = "subscription_cancelled"
	EventSubscriptionResumed   = "subscription_resumed"
	EventSubscriptionExpired   = "subscription_expired"
	EventSubscriptionPaused    = "subscription_paused"
	EventSubscriptionUnpaused  = "subscription_unpaused"

	EventSubscriptionPaymentSuccess   = "subscription_payment_success"
	EventSubscriptionPaymentFailed    = "subscription_payment_failed"
	EventSubscriptionPaymentRecovered = "subscription_payment_recovered"
)

// Order statuses as reported in order attributes.
const (
	OrderStatusPaid     = "paid"
	OrderStatusPending  = "pending"
	OrderStatusRefunded = "refunded"
)

// ErrMalformedPayload indicates the request body is not a decodable webhook
// envelope. The caller should respond 400; the provider will eventually stop
// retrying.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Envelope is the canonical decoded form of one webhook delivery. Unknown
// event names decode successfully with only the generic fields populated;
// rejecting them is the state machine's call, not the codec's.
type Envelope struct {
	EventName string
	// EventID is the provider id of the underlying resource (order id,
	// subscription id, or invoice id depending on the event).
	EventID      string
	ResourceType string
	TestMode     bool
	// CustomData carries checkout-time metadata, e.g. the internal user id.
	CustomData map[string]string

	// RawAttributes is the undecoded attributes object, kept for audit
	// logging and forward compatibility.
	RawAttributes json.RawMessage

	// Exactly one of the following is set for known resource types.
	Order               *OrderAttributes
	Subscription        *SubscriptionAttributes
	SubscriptionInvoice *SubscriptionInvoiceAttributes
}

// OrderAttributes is the subset of order fields the core consumes. Fields may
// be zero-valued on partially populated payloads.
type OrderAttributes struct {
	Identifier string `json:"identifier"`
	UserEmail  string `json:"user_email"`
	UserName   string `json:"user_name"`
	Status     string `json:"status"`
	// Total is in minor currency units.
	Total      int64  `json:"total"`
	Currency   string `json:"currency"`
	Refunded   bool   `json:"refunded"`
	RefundedAt string `json:"refunded_at"`

	FirstOrderItem struct {
		ProductID   int64  `json:"product_id"`
		VariantID   int64  `json:"variant_id"`
		ProductName string `json:"product_name"`
		VariantName string `json:"variant_name"`
	} `json:"first_order_item"`
}

type SubscriptionAttributes struct {
	OrderID     int64  `json:"order_id"`
	UserEmail   string `json:"user_email"`
	UserName    string `json:"user_name"`
	Status      string `json:"status"`
	Cancelled   bool   `json:"cancelled"`
	ProductID   int64  `json:"product_id"`
	VariantID   int64  `json:"variant_id"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
	CardBrand   string `json:"card_brand"`
	CardLast4   string `json:"card_last_four"`
	TrialEndsAt string `json:"trial_ends_at"`
	RenewsAt    string `json:"renews_at"`
	EndsAt      string `json:"ends_at"`
}

// Lifecycle converts the provider status string to the shared enum.
func (a *SubscriptionAttributes) Lifecycle() types.SubscriptionLifecycle {
	return types.SubscriptionLifecycle(a.Status)
}

type SubscriptionInvoiceAttributes struct {
	SubscriptionID int64  `json:"subscription_id"`
	UserEmail      string `json:"user_email"`
	UserName       string `json:"user_name"`
	BillingReason  string `json:"billing_reason"`
	Status         string `json:"status"`
	// Total is in minor currency units.
	Total     int64  `json:"total"`
	Currency  string `json:"currency"`
	CardBrand string `json:"card_brand"`
	CardLast4 string `json:"card_last_four"`
}

// wire shapes of the Lemon Squeezy webhook body
type webhookBody struct {
	Meta webhookMeta `json:"meta"`
	Data webhookData `json:"data"`
}

type webhookMeta struct {
	EventName  string            `json:"event_name"`
	TestMode   bool              `json:"test_mode"`
	CustomData map[string]string `json:"custom_data"`
}

type webhookData struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
}

// DecodeEnvelope parses a raw webhook body into an Envelope. It validates
// only the envelope shape; per-event field requirements are deferred to the
// state machine, which must tolerate partially populated payloads.
func DecodeEnvelope(rawBody []byte) (*Envelope, error) {
	var body webhookBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if body.Meta.EventName == "" {
		return nil, fmt.Errorf("%w: missing meta.event_name", ErrMalformedPayload)
	}
	if body.Data.ID == "" {
		return nil, fmt.Errorf("%w: missing data.id", ErrMalformedPayload)
	}

	env := &Envelope{
		EventName:     body.Meta.EventName,
		EventID:       body.Data.ID,
		ResourceType:  body.Data.Type,
		TestMode:      body.Meta.TestMode,
		CustomData:    body.Meta.CustomData,
		RawAttributes: body.Data.Attributes,
	}

	if len(body.Data.Attributes) == 0 {
		return env, nil
	}

	switch body.Data.Type {
	case "orders":
		var attrs OrderAttributes
		if err := json.Unmarshal(body.Data.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("%w: order attributes: %v", ErrMalformedPayload, err)
		}
		env.Order = &attrs
	case "subscriptions":
		var attrs SubscriptionAttributes
		if err := json.Unmarshal(body.Data.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("%w: subscription attributes: %v", ErrMalformedPayload, err)
		}
		env.Subscription = &attrs
	case "subscription-invoices":
		var attrs SubscriptionInvoiceAttributes
		if err := json.Unmarshal(body.Data.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("%w: subscription invoice attributes: %v", ErrMalformedPayload, err)
		}
		env.SubscriptionInvoice = &attrs
	default:
		// Unknown resource types keep raw attributes only.
	}

	return env, nil
}

// UserEmail returns the purchaser email carried by the payload, if any.
func (e *Envelope) UserEmail() string {
	switch {
	case e.Order != nil:
		return e.Order.UserEmail
	case e.Subscription != nil:
		return e.Subscription.UserEmail
	case e.SubscriptionInvoice != nil:
		return e.SubscriptionInvoice.UserEmail
	}
	return ""
}

// UserName returns the purchaser display name carried by the payload, if any.
func (e *Envelope) UserName() string {
	switch {
	case e.Order != nil:
		return e.Order.UserName
	case e.Subscription != nil:
		return e.Subscription.UserName
	case e.SubscriptionInvoice != nil:
		return e.SubscriptionInvoice.UserName
	}
	return ""
}

// MetadataUserID returns the internal user id set at checkout time, if any.
func (e *Envelope) MetadataUserID() string {
	if e.CustomData == nil {
		return ""
	}
	return e.CustomData["user_id"]
}
