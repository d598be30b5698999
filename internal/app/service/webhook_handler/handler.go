// Package webhook_handler orchestrates webhook ingestion: signature check,
// decode, dedup short-circuit, user resolution, state-machine planning and
// the transactional ledger write, in that order.
package webhook_handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ship-kit/billing/internal/app/service/event_log"
	"github.com/ship-kit/billing/internal/app/service/ledger"
	"github.com/ship-kit/billing/internal/app/service/payment_state"
	"github.com/ship-kit/billing/internal/app/service/users"
	"github.com/ship-kit/billing/internal/models"
	"github.com/ship-kit/billing/internal/platform/lemonsqueezy"
	"github.com/ship-kit/billing/pkg/config"
	"github.com/ship-kit/billing/pkg/logctx"
	"github.com/ship-kit/billing/pkg/metrics"
	"github.com/ship-kit/billing/pkg/types"
)

// ErrUnknownProvider is returned for providers this deployment does not
// serve.
var ErrUnknownProvider = errors.New("unknown payment provider")

// ErrBadSignature is returned when the request body does not authenticate
// against the provider's shared secret. Callers respond 401 and must not log
// the payload.
var ErrBadSignature = errors.New("invalid webhook signature")

type ResultStatus string

const (
	// ResultProcessed means a ledger write committed.
	ResultProcessed ResultStatus = "processed"
	// ResultDuplicate means the event was already durably applied.
	ResultDuplicate ResultStatus = "duplicate"
	// ResultSkipped means the event is ignorable (unhandled type or a
	// planned no-op, e.g. a non-paid order).
	ResultSkipped ResultStatus = "skipped"
)

type Result struct {
	Status    ResultStatus    `json:"status"`
	EventName string          `json:"event_name"`
	Payment   *models.Payment `json:"payment,omitempty"`
}

type Handler struct {
	cfg      *config.Config
	ledger   *ledger.Service
	users    *users.Service
	eventLog *event_log.Service
	Logger   *zap.SugaredLogger
}

// NewHandler wires the ingestion pipeline. It fails when no provider secret
// is configured: serving a webhook route that accepts unsigned events is
// worse than not starting.
func NewHandler(cfg *config.Config, l *ledger.Service, u *users.Service, el *event_log.Service, log *zap.SugaredLogger) (*Handler, error) {
	if _, err := cfg.WebhookSecret(types.PaymentProviderLemonSqueezy); err != nil {
		return nil, fmt.Errorf("webhook ingestion misconfigured: %w", err)
	}
	return &Handler{cfg: cfg, ledger: l, users: u, eventLog: el, Logger: log}, nil
}

// Handle runs the ingestion pipeline for one delivery. Signature and decode
// failures come back as typed errors for the HTTP layer to translate;
// duplicate and ignorable events come back as non-error Results so the
// provider gets a 200 and stops retrying.
func (h *Handler) Handle(ctx context.Context, provider types.PaymentProvider, rawBody []byte, signature string) (res *Result, resErr error) {
	log := logctx.FromCtx(ctx, h.Logger)

	secret, err := h.cfg.WebhookSecret(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	if !lemonsqueezy.VerifySignature(rawBody, signature, secret) {
		metrics.ObserveWebhookEvent(string(provider), "", metrics.OutcomeRejected)
		return nil, ErrBadSignature
	}
	log.Infow("webhook_signature_checked", "provider", provider)

	env, err := lemonsqueezy.DecodeEnvelope(rawBody)
	if err != nil {
		metrics.ObserveWebhookEvent(string(provider), "", metrics.OutcomeRejected)
		return nil, err
	}
	log.Infow("webhook_decoded", "provider", provider, "event", env.EventName, "event_id", env.EventID, "test_mode", env.TestMode)

	logEntry := h.newLogEntry(ctx, provider, env, rawBody)
	h.eventLog.Save(ctx, logEntry)

	defer func() {
		h.finishLogEntry(ctx, logEntry, res, resErr)
		h.observe(provider, env.EventName, res, resErr)
	}()

	out, err := payment_state.Plan(env)
	if err != nil {
		if errors.Is(err, payment_state.ErrUnhandledEvent) {
			log.Infow("webhook_event_unhandled", "event", env.EventName)
			return &Result{Status: ResultSkipped, EventName: env.EventName}, nil
		}
		return nil, err
	}

	if out.Action == payment_state.ActionNone {
		log.Infow("webhook_event_noop", "event", env.EventName, "event_id", env.EventID)
		return &Result{Status: ResultSkipped, EventName: env.EventName}, nil
	}

	// Short-circuit obvious duplicates before touching the user table. The
	// ledger's unique key remains the authoritative barrier.
	if out.Action == payment_state.ActionInsert {
		seen, err := h.ledger.IsProcessed(ctx, provider, out.DedupKey)
		if err != nil {
			return nil, err
		}
		if seen {
			log.Infow("webhook_event_duplicate", "event", env.EventName, "dedup_key", out.DedupKey)
			return &Result{Status: ResultDuplicate, EventName: env.EventName}, nil
		}
	}

	var userID string
	if out.Action != payment_state.ActionUpdate {
		user, created, err := h.users.ResolveOrCreate(ctx, env.UserEmail(), env.UserName(), env.MetadataUserID())
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user: %w", err)
		}
		userID = user.ID
		logEntry.UserID = lo.ToPtr(user.ID)
		log.Infow("webhook_user_resolved", "user_id", user.ID, "created", created)
	}

	payment, err := h.ledger.Apply(ctx, provider, userID, env.EventName, env.TestMode, out)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateEvent) {
			log.Infow("webhook_event_duplicate", "event", env.EventName, "dedup_key", out.DedupKey)
			return &Result{Status: ResultDuplicate, EventName: env.EventName}, nil
		}
		if errors.Is(err, ledger.ErrOutOfOrderEvent) {
			log.Errorw("webhook_event_out_of_order", "event", env.EventName, "dedup_key", out.DedupKey, "error", err.Error())
		}
		return nil, err
	}

	log.Infow("webhook_event_persisted", "event", env.EventName, "dedup_key", out.DedupKey, "status", payment.Status)
	return &Result{Status: ResultProcessed, EventName: env.EventName, Payment: payment}, nil
}

func (h *Handler) newLogEntry(ctx context.Context, provider types.PaymentProvider, env *lemonsqueezy.Envelope, rawBody []byte) *models.WebhookEventLog {
	var userID *string
	if id := env.MetadataUserID(); id != "" {
		userID = lo.ToPtr(id)
	}
	return &models.WebhookEventLog{
		Processor: string(provider),
		EventName: env.EventName,
		EventID:   env.EventID,
		UserID:    userID,
		TraceID:   logctx.TraceID(ctx),
		TestMode:  env.TestMode,
		Payload:   datatypes.JSON(rawBody),
		Status:    models.WebhookEventLogStatusReceived,
	}
}

func (h *Handler) finishLogEntry(ctx context.Context, entry *models.WebhookEventLog, res *Result, resErr error) {
	resMap := map[string]any{}
	switch {
	case resErr != nil:
		entry.Status = models.WebhookEventLogStatusHandleFailed
		resMap["error"] = resErr.Error()
	case res != nil && res.Status == ResultProcessed:
		entry.Status = models.WebhookEventLogStatusHandled
		resMap["result"] = res
	default:
		entry.Status = models.WebhookEventLogStatusSkipped
		resMap["result"] = res
	}
	resBytes, _ := json.Marshal(resMap)
	entry.Result = lo.ToPtr(datatypes.JSON(resBytes))
	h.eventLog.Save(ctx, entry)
}

func (h *Handler) observe(provider types.PaymentProvider, event string, res *Result, resErr error) {
	outcome := metrics.OutcomeFailed
	switch {
	case resErr == nil && res != nil && res.Status == ResultProcessed:
		outcome = metrics.OutcomeProcessed
	case resErr == nil && res != nil && res.Status == ResultDuplicate:
		outcome = metrics.OutcomeDuplicate
	case resErr == nil:
		outcome = metrics.OutcomeSkipped
	case errors.Is(resErr, lemonsqueezy.ErrMalformedPayload):
		outcome = metrics.OutcomeRejected
	}
	metrics.ObserveWebhookEvent(string(provider), event, outcome)
}
