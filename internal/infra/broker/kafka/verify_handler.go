package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"staypay/internal/app/commands"
	"staypay/internal/app/handlers/payments"
)

var ErrMissingReference = errors.New("kafka: verification message without tx_ref")

// Inbox deduplicates redelivered messages.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// VerifyReplayHandler turns messages on the verification topic into
// verification commands. It accepts a bare {"tx_ref": "..."} body, Chapa's
// webhook body, or a CloudEvent whose data carries tx_ref.
type VerifyReplayHandler struct {
	Commands commands.Bus
	Inbox    Inbox
	Logger   *slog.Logger
}

type verifyMessage struct {
	ID     string          `json:"id"`
	TxRef  string          `json:"tx_ref"`
	TrxRef string          `json:"trx_ref"`
	Data   json.RawMessage `json:"data"`
}

func (h VerifyReplayHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ref, eventID, err := parseVerifyMessage(msg)
	if err != nil {
		return err
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, eventID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	res, err := commands.Dispatch[payments.VerifyPaymentCommand, *payments.VerifyPaymentResult](ctx, h.Commands, payments.VerifyPaymentCommand{
		Reference: ref,
		Source:    payments.SourceReplay,
	})
	if err != nil {
		if h.Inbox != nil && errors.Is(err, payments.ErrGatewayUnavailable) {
			_ = h.Inbox.Forget(ctx, eventID)
		}
		return fmt.Errorf("verify %s: %w", ref, err)
	}
	if h.Logger != nil {
		h.Logger.Info("verification replayed", "tx_ref", ref, "status", res.Status, "changed", res.Changed)
	}
	return nil
}

func parseVerifyMessage(msg *sarama.ConsumerMessage) (ref string, eventID string, err error) {
	var body verifyMessage
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		return "", "", fmt.Errorf("kafka: decode verification message: %w", err)
	}
	ref = firstNonEmpty(body.TxRef, body.TrxRef)
	if ref == "" && len(body.Data) > 0 {
		var data verifyMessage
		if err := json.Unmarshal(body.Data, &data); err == nil {
			ref = firstNonEmpty(data.TxRef, data.TrxRef)
		}
	}
	if ref == "" {
		return "", "", ErrMissingReference
	}
	eventID = body.ID
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == "ce-id" && len(h.Value) > 0 {
			eventID = string(h.Value)
		}
	}
	if eventID == "" {
		eventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	return ref, eventID, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
