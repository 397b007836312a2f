package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/signalcore-billing/internal/domain"
	"github.com/Priya8975/signalcore-billing/internal/identity"
	"github.com/Priya8975/signalcore-billing/internal/metrics"
	"github.com/Priya8975/signalcore-billing/internal/notify"
)

// Activity actions written by the reconciler.
const (
	ActionPaymentProcessed  = "Payment Processed"
	ActionSubscriptionEnded = "Subscription Ended"
)

// ContractorStore is the part of the data store the reconciler writes to.
// UpsertContractor must be a single insert-or-update on the email key.
type ContractorStore interface {
	UpsertContractor(ctx context.Context, up domain.ContractorUpsert) (*domain.UpsertResult, error)
	MarkChurned(ctx context.Context, email string) (*domain.Contractor, error)
}

type ActivityLog interface {
	InsertActivity(ctx context.Context, a domain.NewActivity) (*domain.Activity, error)
}

// IdentityProvisioner creates a login. It returns identity.ErrAlreadyExists
// when the email is already registered.
type IdentityProvisioner interface {
	Provision(ctx context.Context, email, password string) (string, error)
}

type Notifier interface {
	SendWelcome(ctx context.Context, w notify.Welcome) error
}

// EventLedger remembers provider event ids that were fully reconciled.
type EventLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type ActivityPublisher interface {
	PublishActivity(a domain.Activity, email, tier string)
}

// Outcome summarizes what a reconciliation did.
type Outcome struct {
	EventID      string `json:"event_id"`
	Kind         Kind   `json:"kind"`
	Tier         string `json:"tier,omitempty"`
	MonthlyFee   int64  `json:"monthly_fee,omitempty"`
	ContractorID string `json:"contractor_id,omitempty"`
	Created      bool   `json:"created"`
	Provisioned  bool   `json:"provisioned"`
	WelcomeSent  bool   `json:"welcome_sent"`
	Duplicate    bool   `json:"duplicate"`
	NoOp         bool   `json:"no_op"`
}

// ReconcilerConfig holds the timeouts applied to collaborator calls.
type ReconcilerConfig struct {
	StoreTimeout   time.Duration
	NotifyTimeout  time.Duration
	PasswordLength int
}

// Reconciler brings contractor and activity records up to date for one
// provider event. Steps are ordered and individually tolerant; there is no
// cross-call transaction.
type Reconciler struct {
	contractors ContractorStore
	activities  ActivityLog
	tiers       *TierTable
	cfg         ReconcilerConfig
	logger      *slog.Logger

	provisioner IdentityProvisioner
	notifier    Notifier
	ledger      EventLedger
	publisher   ActivityPublisher
}

// Option wires an optional collaborator into a Reconciler.
type Option func(*Reconciler)

func WithProvisioner(p IdentityProvisioner) Option {
	return func(r *Reconciler) { r.provisioner = p }
}

func WithNotifier(n Notifier) Option {
	return func(r *Reconciler) { r.notifier = n }
}

func WithLedger(l EventLedger) Option {
	return func(r *Reconciler) { r.ledger = l }
}

func WithPublisher(p ActivityPublisher) Option {
	return func(r *Reconciler) { r.publisher = p }
}

func NewReconciler(contractors ContractorStore, activities ActivityLog, tiers *TierTable, cfg ReconcilerConfig, logger *slog.Logger, opts ...Option) *Reconciler {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.PasswordLength <= 0 {
		cfg.PasswordLength = DefaultPasswordLength
	}
	if tiers == nil {
		tiers = DefaultTierTable()
	}

	r := &Reconciler{
		contractors: contractors,
		activities:  activities,
		tiers:       tiers,
		cfg:         cfg,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tiers returns the tier table in use.
func (r *Reconciler) Tiers() *TierTable {
	return r.tiers
}

// Reconcile applies a classified event. A returned error means the provider
// should redeliver; every step is safe to repeat.
func (r *Reconciler) Reconcile(ctx context.Context, ev Event) (*Outcome, error) {
	out := &Outcome{EventID: ev.EventID(), Kind: ev.Kind()}

	if _, ok := ev.(Unrecognized); ok {
		out.NoOp = true
		return out, nil
	}

	if r.ledger != nil {
		seen, err := r.ledger.Seen(ctx, ev.EventID())
		if err != nil {
			r.logger.Warn("event ledger lookup failed", "error", err, "event_id", ev.EventID())
		} else if seen {
			out.Duplicate = true
			r.logger.Info("event already processed", "event_id", ev.EventID(), "event_type", ev.EventType())
			return out, nil
		}
	}

	var err error
	switch e := ev.(type) {
	case PaymentSucceeded:
		err = r.paymentSucceeded(ctx, e, out)
	case SubscriptionEnded:
		err = r.subscriptionEnded(ctx, e, out)
	default:
		return nil, fmt.Errorf("unsupported event %T", ev)
	}
	if err != nil {
		return nil, err
	}

	if r.ledger != nil {
		if err := r.ledger.MarkProcessed(ctx, ev.EventID()); err != nil {
			r.logger.Warn("failed to mark event processed", "error", err, "event_id", ev.EventID())
		}
	}
	return out, nil
}

func (r *Reconciler) paymentSucceeded(ctx context.Context, ev PaymentSucceeded, out *Outcome) error {
	tier := r.tiers.Resolve(ev.AmountCents)
	out.Tier = tier.ID
	out.MonthlyFee = tier.MonthlyFee

	r.logger.Info("processing subscription",
		"event_id", ev.ID,
		"email", ev.Customer.Email,
		"tier", tier.ID,
	)

	// Provisioning runs first so the contractor row can reference the login.
	var authUserID *string
	var tempPassword string
	if ev.NewCheckout && r.provisioner != nil {
		password, err := GenerateTempPassword(r.cfg.PasswordLength)
		if err != nil {
			return fmt.Errorf("generating temporary password: %w", err)
		}

		userID, err := r.provisionIdentity(ctx, ev.Customer.Email, password)
		switch {
		case errors.Is(err, identity.ErrAlreadyExists):
			r.logger.Info("user already exists, skipping auth creation", "email", ev.Customer.Email)
		case err != nil:
			return fmt.Errorf("provisioning identity for %s: %w", ev.Customer.Email, err)
		default:
			authUserID = &userID
			tempPassword = password
			out.Provisioned = true
		}
	}

	res, err := r.upsertContractor(ctx, domain.ContractorUpsert{
		Email:       ev.Customer.Email,
		CompanyName: ev.Customer.DisplayName,
		ContactName: ev.Customer.DisplayName,
		Phone:       ev.Customer.Phone,
		Tier:        tier.ID,
		MonthlyFee:  tier.MonthlyFee,
		AuthUserID:  authUserID,
	})
	if err != nil {
		return fmt.Errorf("upserting contractor %s: %w", ev.Customer.Email, err)
	}
	out.ContractorID = res.Contractor.ID
	out.Created = res.Created

	if res.Created {
		r.logger.Info("created new contractor", "email", ev.Customer.Email, "contractor_id", res.Contractor.ID)
	} else {
		r.logger.Info("updated contractor", "email", ev.Customer.Email, "contractor_id", res.Contractor.ID)
	}

	if ev.NewCheckout && tempPassword != "" {
		out.WelcomeSent = r.sendWelcome(ctx, ev.Customer, tempPassword, tier)
	}

	contractorID := res.Contractor.ID
	return r.recordActivity(ctx, domain.NewActivity{
		ContractorID: &contractorID,
		Action:       ActionPaymentProcessed,
		Details:      fmt.Sprintf("Subscription for %s (%s) updated via Stripe", ev.Customer.Email, tier.ID),
	}, ev.Customer.Email, tier.ID)
}

func (r *Reconciler) subscriptionEnded(ctx context.Context, ev SubscriptionEnded, out *Outcome) error {
	storeCtx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()

	c, err := r.contractors.MarkChurned(storeCtx, ev.Email)
	if err != nil {
		return fmt.Errorf("churning contractor %s: %w", ev.Email, err)
	}
	if c == nil {
		out.NoOp = true
		r.logger.Info("no contractor for ended subscription", "event_id", ev.ID, "email", ev.Email)
		return nil
	}
	out.ContractorID = c.ID
	out.Tier = c.Tier

	r.logger.Info("contractor deactivated", "email", ev.Email, "event_type", ev.Type)

	contractorID := c.ID
	return r.recordActivity(ctx, domain.NewActivity{
		ContractorID: &contractorID,
		Action:       ActionSubscriptionEnded,
		Details:      fmt.Sprintf("Contractor %s status set to churned due to %s", ev.Email, ev.Type),
	}, ev.Email, c.Tier)
}

func (r *Reconciler) provisionIdentity(ctx context.Context, email, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()
	return r.provisioner.Provision(ctx, email, password)
}

func (r *Reconciler) upsertContractor(ctx context.Context, up domain.ContractorUpsert) (*domain.UpsertResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()
	return r.contractors.UpsertContractor(ctx, up)
}

// sendWelcome never fails the reconciliation.
func (r *Reconciler) sendWelcome(ctx context.Context, customer Identity, password string, tier Tier) bool {
	if r.notifier == nil {
		r.logger.Warn("notifier not configured, skipping welcome email", "email", customer.Email)
		metrics.WelcomeEmails.WithLabelValues("skipped").Inc()
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.NotifyTimeout)
	defer cancel()

	err := r.notifier.SendWelcome(ctx, notify.Welcome{
		Email:        customer.Email,
		Name:         customer.DisplayName,
		TempPassword: password,
		TierName:     tier.Name,
	})
	if err != nil {
		r.logger.Error("failed to send welcome email", "error", err, "email", customer.Email)
		metrics.WelcomeEmails.WithLabelValues("failed").Inc()
		return false
	}

	r.logger.Info("welcome email sent", "email", customer.Email)
	metrics.WelcomeEmails.WithLabelValues("sent").Inc()
	return true
}

func (r *Reconciler) recordActivity(ctx context.Context, a domain.NewActivity, email, tier string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()

	act, err := r.activities.InsertActivity(ctx, a)
	if err != nil {
		return fmt.Errorf("recording activity: %w", err)
	}
	if r.publisher != nil {
		r.publisher.PublishActivity(*act, email, tier)
	}
	return nil
}
