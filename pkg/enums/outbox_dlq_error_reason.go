package enums

// OutboxDLQErrorReason says why the publisher parked an outbox row.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: retryable failures exhausted the attempt budget.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: the broker or routing rejected the event outright.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonDecodeFailed: the stored payload no longer matches its event type.
	OutboxDLQReasonDecodeFailed OutboxDLQErrorReason = "decode_failed"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonDecodeFailed:
		return true
	}
	return false
}

// ParseOutboxDLQErrorReason accepts only the known reasons.
func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, bool) {
	reason := OutboxDLQErrorReason(value)
	return reason, reason.IsValid()
}
