package notification

import (
	"context"
	"errors"
)

var (
	// ErrNoCredentials means the mail transport was never configured.
	ErrNoCredentials = errors.New("notification: mail credentials missing")
)

// State is the lifecycle of the outbound transport.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateConnecting    State = "connecting"
	StateReady         State = "ready"
	StateUnavailable   State = "unavailable"
)

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	To         string
	Subject    string
	Text       string
	HTML       string
	Attachment *Attachment
}

// SendResult is the outcome of one send. Exactly one of OK, Skipped or Err is set.
type SendResult struct {
	OK      bool
	Skipped bool
	Err     error
}

// Outcome is a short label for logs and metrics.
func (r SendResult) Outcome() string {
	switch {
	case r.OK:
		return "sent"
	case r.Skipped:
		return "skipped"
	default:
		return "error"
	}
}

// Channel delivers messages. Send never returns a Go error; failures are part of SendResult.
type Channel interface {
	Send(ctx context.Context, msg Message) SendResult
	State() State
}
