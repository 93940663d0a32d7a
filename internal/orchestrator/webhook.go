package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/paycore/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/paycore/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	ErrInvalidWebhookPayload = errors.New("invalid_webhook_payload")
)

type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PaymentID     string `json:"payment_id"`
		TransactionID string `json:"transaction_id"`
		Reason        string `json:"reason"`
	} `json:"data"`
}

// HandleWebhook authenticates, deduplicates and applies one provider
// callback. Redeliveries of an already-processed event return nil without
// touching any payment.
func (o *Orchestrator) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if err := o.verifier.Verify(payload, signatureHeader); err != nil {
		o.metrics.RecordWebhookEvent(ctx, "unknown", "rejected")
		return err
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		o.metrics.RecordWebhookEvent(ctx, "unknown", "invalid")
		return ErrInvalidWebhookPayload
	}
	eventID := strings.TrimSpace(event.ID)
	eventType := strings.TrimSpace(event.Type)
	if eventID == "" || eventType == "" {
		o.metrics.RecordWebhookEvent(ctx, eventType, "invalid")
		return ErrInvalidWebhookPayload
	}

	outcome, ok := outcomeForEvent(eventType)
	if !ok {
		o.metrics.RecordWebhookEvent(ctx, eventType, "ignored")
		return paymentdomain.ErrUnknownEventType
	}

	paymentID, err := strconv.ParseInt(strings.TrimSpace(event.Data.PaymentID), 10, 64)
	if err != nil {
		o.metrics.RecordWebhookEvent(ctx, eventType, "invalid")
		return ErrInvalidWebhookPayload
	}

	record := &paymentdomain.EventRecord{
		Provider:        o.provider.Name(),
		ProviderEventID: eventID,
		EventType:       eventType,
		PaymentID:       snowflake.ID(paymentID),
		Payload:         datatypes.JSON(payload),
	}
	inserted, err := o.ledger.RecordProviderEvent(ctx, record)
	if err != nil {
		return err
	}
	if !inserted {
		o.log.Debug("webhook redelivery ignored",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType),
		)
		o.metrics.RecordWebhookEvent(ctx, eventType, "duplicate")
		return nil
	}

	if _, err := o.ledger.ApplyPaymentResult(ctx, ledgerdomain.PaymentResult{
		PaymentID:             snowflake.ID(paymentID),
		Outcome:               outcome,
		ProviderTransactionID: strings.TrimSpace(event.Data.TransactionID),
		FailureReason:         strings.TrimSpace(event.Data.Reason),
		Final:                 outcome == paymentdomain.OutcomeFailed,
	}); err != nil {
		if errors.Is(err, paymentdomain.ErrNotFound) {
			// The provider knows a payment we do not. Keep the event for
			// reconciliation and acknowledge so the provider stops retrying.
			o.log.Warn("webhook for unknown payment",
				zap.String("event_id", eventID),
				zap.String("payment_id", event.Data.PaymentID),
			)
			o.metrics.RecordWebhookEvent(ctx, eventType, "orphaned")
			return nil
		}
		return err
	}

	if err := o.ledger.MarkEventProcessed(ctx, record.ID); err != nil {
		o.log.Warn("marking webhook event processed failed",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
	o.metrics.RecordWebhookEvent(ctx, eventType, "processed")
	return nil
}

func outcomeForEvent(eventType string) (paymentdomain.Outcome, bool) {
	switch eventType {
	case paymentdomain.EventPaymentSucceeded:
		return paymentdomain.OutcomeSuccess, true
	case paymentdomain.EventPaymentFailed:
		return paymentdomain.OutcomeFailed, true
	case paymentdomain.EventPaymentRefunded:
		return paymentdomain.OutcomeRefunded, true
	default:
		return "", false
	}
}

func (o *Orchestrator) ListPayments(ctx context.Context, customerID snowflake.ID) ([]paymentdomain.Payment, error) {
	return o.ledger.ListPayments(ctx, customerID)
}
