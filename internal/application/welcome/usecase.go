// Package welcome greets newly registered customers by mail.
package welcome

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"net/mail"
	"strings"
	"text/template"
	"time"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/notification"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	welcomeService  = "welcome-service"
	useCaseWelcome  = "welcome.send"
	spanName        = "UC.SendWelcome"
	defaultBrand    = "Textile Storefront"
	defaultCustomer = "Customer"
)

var ErrInvalidEmail = errors.New("welcome: invalid email address")

const welcomeText = `Hi {{.Name}},
Welcome to {{.Brand}}!

Your account has been successfully created. You can now explore our textile collections, track orders and manage your profile.

If you need any assistance, reply to this email and we will be happy to help.

Warm regards,
{{.Brand}} Team
`

const welcomeHTML = `<div style="font-family:Arial,sans-serif;line-height:1.6;color:#1f2937">
  <h2 style="color:#0f172a">Welcome to {{.Brand}}, {{.Name}}</h2>
  <p>Your account has been <strong>successfully created</strong>.</p>
  <p>You can now explore our textile collections, track orders and manage your account.</p>
  <p>If you need any assistance, simply reply to this email.</p>
  <p style="margin-top:20px"><strong>Warm regards,</strong><br/>{{.Brand}} Team</p>
</div>
`

var (
	textTmpl = template.Must(template.New("welcome.txt").Parse(welcomeText))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("welcome.html").Parse(welcomeHTML))
)

type Command struct {
	Email string
	Name  string
}

// Result mirrors the channel outcome: sent, skipped or error.
type Result struct {
	Outcome string
	Error   string
}

type SendWelcomeUseCase struct {
	channel notification.Channel
	brand   string

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewSendWelcomeUseCase(channel notification.Channel, brand string, tel observability.Observability) *SendWelcomeUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	if brand == "" {
		brand = defaultBrand
	}
	return &SendWelcomeUseCase{
		channel:      channel,
		brand:        brand,
		log:          tel.Logger().With(observability.F("service", welcomeService)),
		tracer:       tel.Tracer(),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// Execute sends the welcome mail. A mail that could not be delivered is
// reported in the result, never as an error; only a bad address is an error.
func (uc *SendWelcomeUseCase) Execute(ctx context.Context, cmd Command) (_ *Result, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseWelcome))
	ctx, span := uc.tracer.Start(ctx, spanName, attribute.String("use_case", useCaseWelcome))
	start := time.Now()
	result := &Result{Outcome: "error"}

	defer func() {
		outcome := result.Outcome
		if err != nil {
			outcome = "invalid"
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, outcome)
		}
		span.End()

		latency := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseWelcome),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency, observability.L("use_case", useCaseWelcome))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("latency_seconds", latency),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields, observability.F("trace_id", sc.TraceID().String()))
		}
		if result.Error != "" {
			fields = append(fields, observability.F("error", result.Error))
		}
		logger.Info("use_case_done", fields...)
	}()

	addr, perr := mail.ParseAddress(strings.TrimSpace(cmd.Email))
	if perr != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, cmd.Email)
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		name = defaultCustomer
	}

	msg, cerr := uc.compose(addr.Address, name)
	if cerr != nil {
		result.Error = cerr.Error()
		return result, nil
	}

	res := uc.channel.Send(ctx, msg)
	result.Outcome = res.Outcome()
	if res.Err != nil {
		result.Error = res.Err.Error()
	}
	return result, nil
}

func (uc *SendWelcomeUseCase) compose(to, name string) (notification.Message, error) {
	view := struct{ Name, Brand string }{Name: name, Brand: uc.brand}

	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, view); err != nil {
		return notification.Message{}, fmt.Errorf("welcome: compose text: %w", err)
	}
	if err := htmlTmpl.Execute(&html, view); err != nil {
		return notification.Message{}, fmt.Errorf("welcome: compose html: %w", err)
	}
	return notification.Message{
		To:      to,
		Subject: fmt.Sprintf("Welcome to %s, %s!", uc.brand, name),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
