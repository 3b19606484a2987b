package welcome_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Zhima-Mochi/textile-storefront/internal/application/welcome"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/notification"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/mail"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannel struct {
	last   notification.Message
	result notification.SendResult
}

func (c *stubChannel) Send(_ context.Context, msg notification.Message) notification.SendResult {
	c.last = msg
	return c.result
}

func (c *stubChannel) State() notification.State { return notification.StateReady }

func TestSendWelcome(t *testing.T) {
	tests := []struct {
		name        string
		result      notification.SendResult
		wantOutcome string
	}{
		{name: "sent", result: notification.SendResult{OK: true}, wantOutcome: "sent"},
		{name: "skipped", result: notification.SendResult{Skipped: true}, wantOutcome: "skipped"},
		{name: "error", result: notification.SendResult{Err: errors.New("550 rejected")}, wantOutcome: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &stubChannel{result: tt.result}
			uc := welcome.NewSendWelcomeUseCase(ch, "Loom House", nil)
			email := gofakeit.Email()

			res, err := uc.Execute(t.Context(), welcome.Command{Email: email, Name: "Asha"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)

			assert.Equal(t, email, ch.last.To)
			assert.Equal(t, "Welcome to Loom House, Asha!", ch.last.Subject)
			assert.Contains(t, ch.last.Text, "Hi Asha,")
			assert.Nil(t, ch.last.Attachment)
		})
	}
}

func TestSendWelcome_DefaultsAndValidation(t *testing.T) {
	ch := &stubChannel{result: notification.SendResult{OK: true}}
	uc := welcome.NewSendWelcomeUseCase(ch, "", nil)

	_, err := uc.Execute(t.Context(), welcome.Command{Email: "not-an-address"})
	require.ErrorIs(t, err, welcome.ErrInvalidEmail)

	res, err := uc.Execute(t.Context(), welcome.Command{Email: "buyer@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "sent", res.Outcome)
	assert.Contains(t, ch.last.Subject, "Customer")
}

func TestSendWelcome_NoMailConfigured(t *testing.T) {
	uc := welcome.NewSendWelcomeUseCase(mail.NewChannel(nil, mail.ChannelConfig{}, nil), "", nil)

	res, err := uc.Execute(t.Context(), welcome.Command{Email: "buyer@example.com", Name: "Asha"})
	require.NoError(t, err)
	assert.Equal(t, "skipped", res.Outcome)
}
