package enums

import "fmt"

// OutboxAggregateType is the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateVoucher       OutboxAggregateType = "voucher"
	AggregateQRCode        OutboxAggregateType = "qr_code"
	AggregatePointsBalance OutboxAggregateType = "points_balance"
)

func (a OutboxAggregateType) IsValid() bool {
	switch a {
	case AggregateVoucher, AggregateQRCode, AggregatePointsBalance:
		return true
	}
	return false
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(OutboxAggregateType(value), "aggregate type")
}

// OutboxEventType is the event_type column of outbox_events. Values are
// also published as the event_type message attribute.
type OutboxEventType string

const (
	EventVoucherIssued   OutboxEventType = "voucher_issued"
	EventVoucherRedeemed OutboxEventType = "voucher_redeemed"
	EventQRCodeRedeemed  OutboxEventType = "qr_code_redeemed"
	EventPointsCredited  OutboxEventType = "points_credited"
	EventPointsDebited   OutboxEventType = "points_debited"
)

func (e OutboxEventType) IsValid() bool {
	switch e {
	case EventVoucherIssued, EventVoucherRedeemed, EventQRCodeRedeemed,
		EventPointsCredited, EventPointsDebited:
		return true
	}
	return false
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(OutboxEventType(value), "event type")
}

type validated interface {
	~string
	IsValid() bool
}

func parse[T validated](v T, kind string) (T, error) {
	if v.IsValid() {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, string(v))
}
