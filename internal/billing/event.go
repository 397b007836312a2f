package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Provider event types the reconciler acts on.
const (
	TypeCheckoutCompleted       = "checkout.session.completed"
	TypeInvoicePaymentSucceeded = "invoice.payment_succeeded"
	TypeInvoicePaid             = "invoice.paid"
	TypeSubscriptionDeleted     = "customer.subscription.deleted"
	TypeInvoicePaymentFailed    = "invoice.payment_failed"
)

const defaultCustomerName = "Contractor"

// Kind is the closed set of event classifications.
type Kind string

const (
	KindPaymentSucceeded      Kind = "payment_succeeded"
	KindSubscriptionCancelled Kind = "subscription_cancelled"
	KindPaymentFailed         Kind = "payment_failed"
	KindUnrecognized          Kind = "unrecognized"
)

var ErrInvalidPayload = errors.New("invalid event payload")

// Event is one classified provider event. The concrete type is one of
// PaymentSucceeded, SubscriptionEnded or Unrecognized.
type Event interface {
	EventID() string
	EventType() string
	Kind() Kind
}

// Identity is the customer as described by the payload.
type Identity struct {
	Email       string
	DisplayName string
	Phone       string
}

// PaymentSucceeded covers first checkouts and recurring renewals.
type PaymentSucceeded struct {
	ID          string
	Type        string
	Customer    Identity
	AmountCents *int64
	NewCheckout bool
}

func (e PaymentSucceeded) EventID() string   { return e.ID }
func (e PaymentSucceeded) EventType() string { return e.Type }
func (e PaymentSucceeded) Kind() Kind        { return KindPaymentSucceeded }

// SubscriptionEnded covers cancellations and failed renewals.
type SubscriptionEnded struct {
	ID     string
	Type   string
	Email  string
	Reason Kind
}

func (e SubscriptionEnded) EventID() string   { return e.ID }
func (e SubscriptionEnded) EventType() string { return e.Type }
func (e SubscriptionEnded) Kind() Kind        { return e.Reason }

// Unrecognized is acknowledged without reconciliation.
type Unrecognized struct {
	ID     string
	Type   string
	Reason string
}

func (e Unrecognized) EventID() string   { return e.ID }
func (e Unrecognized) EventType() string { return e.Type }
func (e Unrecognized) Kind() Kind        { return KindUnrecognized }

type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object eventObject `json:"object"`
	} `json:"data"`
}

type eventObject struct {
	ID              string           `json:"id"`
	Customer        string           `json:"customer,omitempty"`
	CustomerEmail   *string          `json:"customer_email,omitempty"`
	CustomerDetails *customerDetails `json:"customer_details,omitempty"`
	AmountTotal     *int64           `json:"amount_total,omitempty"`
	AmountPaid      *int64           `json:"amount_paid,omitempty"`
	BillingReason   string           `json:"billing_reason,omitempty"`
}

type customerDetails struct {
	Email *string `json:"email"`
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// ParseEvent decodes a verified payload and classifies it.
func ParseEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, fmt.Errorf("%w: id and type are required", ErrInvalidPayload)
	}

	obj := env.Data.Object
	switch env.Type {
	case TypeCheckoutCompleted, TypeInvoicePaymentSucceeded, TypeInvoicePaid:
		email := NormalizeEmail(firstNonEmpty(obj.detailsEmail(), deref(obj.CustomerEmail)))
		if email == "" {
			return Unrecognized{ID: env.ID, Type: env.Type, Reason: "no customer email"}, nil
		}
		return PaymentSucceeded{
			ID:   env.ID,
			Type: env.Type,
			Customer: Identity{
				Email:       email,
				DisplayName: firstNonEmpty(obj.detailsName(), defaultCustomerName),
				Phone:       obj.detailsPhone(),
			},
			AmountCents: obj.amount(),
			NewCheckout: env.Type == TypeCheckoutCompleted,
		}, nil

	case TypeSubscriptionDeleted, TypeInvoicePaymentFailed:
		email := NormalizeEmail(firstNonEmpty(deref(obj.CustomerEmail), obj.detailsEmail()))
		if email == "" {
			return Unrecognized{ID: env.ID, Type: env.Type, Reason: "no customer email"}, nil
		}
		reason := KindSubscriptionCancelled
		if env.Type == TypeInvoicePaymentFailed {
			reason = KindPaymentFailed
		}
		return SubscriptionEnded{ID: env.ID, Type: env.Type, Email: email, Reason: reason}, nil

	default:
		return Unrecognized{ID: env.ID, Type: env.Type, Reason: "unhandled event type"}, nil
	}
}

// amount prefers the checkout total and falls back to the invoice amount.
func (o eventObject) amount() *int64 {
	if o.AmountTotal != nil {
		return o.AmountTotal
	}
	return o.AmountPaid
}

func (o eventObject) detailsEmail() string {
	if o.CustomerDetails == nil {
		return ""
	}
	return deref(o.CustomerDetails.Email)
}

func (o eventObject) detailsName() string {
	if o.CustomerDetails == nil {
		return ""
	}
	return strings.TrimSpace(deref(o.CustomerDetails.Name))
}

func (o eventObject) detailsPhone() string {
	if o.CustomerDetails == nil {
		return ""
	}
	return strings.TrimSpace(deref(o.CustomerDetails.Phone))
}

// NormalizeEmail canonicalizes the contractor natural key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
