package fulfillment

import "time"

// RecordedEvent carries a finished run to downstream collaborators.
type RecordedEvent struct {
	Result        Result
	CustomerEmail string
	TraceID       string
	OccurredAt    time.Time
}

func (RecordedEvent) EventName() string { return "fulfillment.recorded" }

func NewRecordedEvent(res Result, email, traceID string) RecordedEvent {
	return RecordedEvent{
		Result:        res,
		CustomerEmail: email,
		TraceID:       traceID,
		OccurredAt:    time.Now().UTC(),
	}
}
