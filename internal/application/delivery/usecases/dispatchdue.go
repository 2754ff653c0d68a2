package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencat-io/opencat/internal/domain/delivery"
	"github.com/opencat-io/opencat/internal/domain/event"
	"github.com/opencat-io/opencat/internal/infrastructure/mail"
	"github.com/opencat-io/opencat/internal/infrastructure/webhook"
	"github.com/opencat-io/opencat/internal/shared/config"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// Dispatcher defaults, used when the configuration leaves a knob unset.
const (
	DefaultDispatchBatchSize = 50
	DefaultClaimLease        = 2 * time.Minute
)

// webhookBody is the JSON document posted to endpoints. Every retry of the
// same delivery sends the identical bytes, so receivers can deduplicate on
// the event id.
type webhookBody struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload"`
}

// DispatchDueUseCase is the dispatcher loop body: claim a batch of due
// deliveries, attempt each one, and record the outcome. Claiming sets a
// lease so concurrent dispatchers never double-send; a crashed worker's
// claims simply become due again when the lease runs out. Newly dead-lettered
// deliveries from a batch are reported to the operator in one digest mail.
type DispatchDueUseCase struct {
	deliveryRepo delivery.Repository
	endpointRepo delivery.EndpointRepository
	eventRepo    event.Repository
	sender       webhook.Sender
	mailer       mail.AlertMailer // may be nil
	policy       delivery.BackoffPolicy
	maxAttempts  int
	lease        time.Duration
	batchSize    int
	logger       logger.Interface
}

func NewDispatchDueUseCase(
	deliveryRepo delivery.Repository,
	endpointRepo delivery.EndpointRepository,
	eventRepo event.Repository,
	sender webhook.Sender,
	mailer mail.AlertMailer,
	cfg config.WebhookConfig,
	logger logger.Interface,
) *DispatchDueUseCase {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = delivery.DefaultMaxAttempts
	}
	lease := cfg.ClaimLease()
	if lease <= 0 {
		lease = DefaultClaimLease
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultDispatchBatchSize
	}

	return &DispatchDueUseCase{
		deliveryRepo: deliveryRepo,
		endpointRepo: endpointRepo,
		eventRepo:    eventRepo,
		sender:       sender,
		mailer:       mailer,
		policy:       delivery.NewBackoffPolicy(cfg.BackoffBase(), cfg.BackoffMax()),
		maxAttempts:  maxAttempts,
		lease:        lease,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Execute runs one dispatch pass. Returns the number of deliveries attempted.
func (uc *DispatchDueUseCase) Execute(ctx context.Context) (int, error) {
	claimed, err := uc.deliveryRepo.ClaimDue(ctx, time.Now().UTC(), uc.lease, uc.batchSize)
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	var deadLettered []mail.DeadLetterSummary
	attempted := 0
	for _, d := range claimed {
		summary, err := uc.dispatchOne(ctx, d)
		if err != nil {
			uc.logger.Errorw("dispatch attempt failed to record outcome",
				"delivery_sid", d.SID(),
				"error", err)
			continue
		}
		attempted++
		if summary != nil {
			deadLettered = append(deadLettered, *summary)
		}
	}

	if len(deadLettered) > 0 && uc.mailer != nil {
		if err := uc.mailer.SendDeadLetterDigest(deadLettered); err != nil {
			uc.logger.Warnw("failed to send dead-letter digest",
				"count", len(deadLettered),
				"error", err)
		}
	}

	return attempted, nil
}

// dispatchOne makes a single HTTP attempt for a claimed delivery and persists
// the outcome. The returned summary is non-nil when this attempt exhausted
// the budget and dead-lettered the delivery.
func (uc *DispatchDueUseCase) dispatchOne(ctx context.Context, d *delivery.WebhookDelivery) (*mail.DeadLetterSummary, error) {
	ep, err := uc.endpointRepo.GetByID(ctx, d.EndpointID())
	if err != nil {
		return nil, err
	}
	e, err := uc.eventRepo.GetByID(ctx, d.EventID())
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(webhookBody{
		ID:        e.SID(),
		Type:      e.Type().String(),
		CreatedAt: e.CreatedAt(),
		Payload:   e.Payload(),
	})
	if err != nil {
		return nil, err
	}

	result, sendErr := uc.sender.Send(ctx, webhook.Request{
		URL:         ep.URL(),
		Secret:      ep.Secret(),
		EventSID:    e.SID(),
		DeliverySID: d.SID(),
		Body:        body,
	})

	if sendErr == nil && result.Success() {
		if err := d.MarkDelivered(result.StatusCode); err != nil {
			return nil, err
		}
		if err := uc.deliveryRepo.Update(ctx, d); err != nil {
			return nil, err
		}
		uc.logger.Infow("webhook delivered",
			"delivery_sid", d.SID(),
			"event_sid", e.SID(),
			"endpoint_sid", ep.SID(),
			"status_code", result.StatusCode,
			"attempts", d.Attempts(),
			"duration", result.Duration)
		return nil, nil
	}

	// Every failure is treated as transient: non-2xx responses and transport
	// errors alike go back on the retry schedule until the budget runs out.
	statusCode := 0
	var errMsg string
	if sendErr != nil {
		errMsg = sendErr.Error()
	} else {
		statusCode = result.StatusCode
		errMsg = fmt.Sprintf("endpoint returned HTTP %d", statusCode)
	}

	dead, err := d.RecordFailure(statusCode, errMsg, uc.policy, uc.maxAttempts)
	if err != nil {
		return nil, err
	}
	if err := uc.deliveryRepo.Update(ctx, d); err != nil {
		return nil, err
	}

	if dead {
		uc.logger.Errorw("webhook delivery dead-lettered",
			"delivery_sid", d.SID(),
			"event_sid", e.SID(),
			"endpoint_sid", ep.SID(),
			"attempts", d.Attempts(),
			"last_status_code", statusCode,
			"last_error", errMsg)
		now := time.Now().UTC()
		return &mail.DeadLetterSummary{
			DeliverySID:    d.SID(),
			EndpointURL:    ep.URL(),
			EventType:      e.Type().String(),
			Attempts:       d.Attempts(),
			LastStatusCode: statusCode,
			LastError:      errMsg,
			DeadLetteredAt: now,
		}, nil
	}

	uc.logger.Warnw("webhook delivery failed, rescheduled",
		"delivery_sid", d.SID(),
		"event_sid", e.SID(),
		"endpoint_sid", ep.SID(),
		"attempts", d.Attempts(),
		"status_code", statusCode,
		"next_retry_at", d.NextRetryAt())
	return nil, nil
}
