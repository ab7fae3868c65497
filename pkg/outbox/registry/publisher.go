package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/promoredeem/pkg/config"
	"github.com/angelmondragon/promoredeem/pkg/db/models"
	"github.com/angelmondragon/promoredeem/pkg/enums"
	"github.com/angelmondragon/promoredeem/pkg/outbox"
	"github.com/angelmondragon/promoredeem/pkg/outbox/payloads"
)

// ErrDecode marks rows whose stored envelope or data cannot be decoded.
var ErrDecode = errors.New("decode outbox payload")

// EventDescriptor routes one event type to a topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError tells the publisher to dead-letter the row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry maps voucher and QR events to the redemption topic and
// ledger movements to the points topic, which defaults to the redemption topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	redemptionTopic := strings.TrimSpace(cfg.RedemptionTopic)
	if redemptionTopic == "" {
		return nil, errors.New("redemption topic is required")
	}
	pointsTopic := strings.TrimSpace(cfg.PointsTopic)
	if pointsTopic == "" {
		pointsTopic = redemptionTopic
	}

	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	for _, d := range []EventDescriptor{
		describe[payloads.VoucherIssuedEvent](enums.EventVoucherIssued, enums.AggregateVoucher, redemptionTopic),
		describe[payloads.VoucherRedeemedEvent](enums.EventVoucherRedeemed, enums.AggregateVoucher, redemptionTopic),
		describe[payloads.QRCodeRedeemedEvent](enums.EventQRCodeRedeemed, enums.AggregateQRCode, redemptionTopic),
		describe[payloads.PointsMovementEvent](enums.EventPointsCredited, enums.AggregatePointsBalance, pointsTopic),
		describe[payloads.PointsMovementEvent](enums.EventPointsDebited, enums.AggregatePointsBalance, pointsTopic),
	} {
		reg.entries[d.EventType] = d
	}
	return reg, nil
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// Resolve checks the row against its descriptor and decodes the typed payload.
// Every failure is non-retryable since the row itself is at fault.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	case strings.TrimSpace(event.AggregateID) == "":
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%w: %s envelope: %v", ErrDecode, event.EventType, err))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%w: %s data: %v", ErrDecode, event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
