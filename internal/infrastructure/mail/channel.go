// Package mail implements the notification channel over SMTP.
package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/notification"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability/logctx"
)

const (
	componentMail = "mail"
	smtpPeer      = "smtp"

	DefaultConnectTimeout = 10 * time.Second
	DefaultSendTimeout    = 15 * time.Second
)

// Transport is the wire-level mail client. Verify checks that the relay
// accepts our credentials; Send delivers one message.
type Transport interface {
	Verify(ctx context.Context) error
	Send(ctx context.Context, msg notification.Message) error
}

type ChannelConfig struct {
	// ConnectTimeout bounds the one verification attempt.
	ConnectTimeout time.Duration
	// SendTimeout bounds each Send, including any wait for verification.
	SendTimeout time.Duration
}

// Channel is a lazily verified notification.Channel. The transport is verified
// on first use; concurrent first callers share that attempt. A failed
// verification leaves the channel Unavailable for the life of the process.
type Channel struct {
	transport Transport
	cfg       ChannelConfig

	mu    sync.Mutex
	state notification.State
	done  chan struct{}

	log          observability.Logger
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

var _ notification.Channel = (*Channel)(nil)

// NewChannel wraps transport. A nil transport means mail is not configured and
// every Send is skipped.
func NewChannel(transport Transport, cfg ChannelConfig, tel observability.Observability) *Channel {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if tel == nil {
		tel = observability.Nop()
	}
	return &Channel{
		transport:    transport,
		cfg:          cfg,
		state:        notification.StateUninitialized,
		log:          tel.Logger().With(observability.F("component", componentMail)),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

func (c *Channel) State() notification.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send delivers msg. It never blocks past SendTimeout and never returns a Go error.
func (c *Channel) Send(ctx context.Context, msg notification.Message) (res notification.SendResult) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	defer cancel()

	logger := logctx.FromOr(ctx, c.log).With(
		observability.F("component", componentMail),
		observability.F("to", msg.To),
	)
	start := time.Now()

	defer func() {
		c.observe("send", res.Outcome(), start)
		switch {
		case res.OK:
			logger.Info("mail_sent", observability.F("subject", msg.Subject))
		case res.Skipped:
			logger.Warn("mail_skipped", observability.F("state", string(c.State())))
		default:
			logger.Error("mail_send_failed", observability.F("error", res.Err))
		}
	}()

	if !c.awaitReady(ctx) {
		return notification.SendResult{Skipped: true}
	}
	if err := c.transport.Send(ctx, msg); err != nil {
		return notification.SendResult{Err: fmt.Errorf("mail: send to %s: %w", msg.To, err)}
	}
	return notification.SendResult{OK: true}
}

// awaitReady starts verification on first use and waits for it, or for ctx.
func (c *Channel) awaitReady(ctx context.Context) bool {
	c.mu.Lock()
	switch c.state {
	case notification.StateReady:
		c.mu.Unlock()
		return true
	case notification.StateUnavailable:
		c.mu.Unlock()
		return false
	case notification.StateUninitialized:
		if c.transport == nil {
			c.state = notification.StateUnavailable
			c.mu.Unlock()
			c.log.Warn("mail_disabled", observability.F("error", notification.ErrNoCredentials))
			return false
		}
		c.state = notification.StateConnecting
		c.done = make(chan struct{})
		go c.connect(c.done)
	}
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		return c.State() == notification.StateReady
	case <-ctx.Done():
		return false
	}
}

// connect runs detached from any caller so a cancelled first caller does not
// decide the channel's fate.
func (c *Channel) connect(done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()

	c.log.Info("mail_verifying")
	start := time.Now()
	err := c.transport.Verify(ctx)

	next := notification.StateReady
	outcome := "success"
	if err != nil {
		next = notification.StateUnavailable
		outcome = "error"
	}
	c.observe("verify", outcome, start)

	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	if err != nil {
		c.log.Error("mail_verify_failed",
			observability.F("error", err),
			observability.F("latency_seconds", time.Since(start).Seconds()),
		)
		return
	}
	c.log.Info("mail_ready", observability.F("latency_seconds", time.Since(start).Seconds()))
}

func (c *Channel) observe(endpoint, outcome string, start time.Time) {
	c.extCounter.Add(1,
		observability.L("peer", smtpPeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	c.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", smtpPeer),
		observability.L("endpoint", endpoint),
	)
}
