package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/textile-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testEvent struct{ n int }

func (testEvent) EventName() string { return "test.happened" }

func TestBus_DeliversToEverySubscriberBeforeStop(t *testing.T) {
	bus := outbox.NewBus(nil)

	var (
		mu  sync.Mutex
		got []int
	)
	record := func(_ context.Context, e domoutbox.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(testEvent).n)
		return nil
	}
	bus.Subscribe("test.happened", record)
	bus.Subscribe("test.happened", func(context.Context, domoutbox.Event) error { return errors.New("ignored") })
	bus.Subscribe("test.happened", func(context.Context, domoutbox.Event) error { panic("handler bug") })

	bus.Start(t.Context())
	for i := range 5 {
		require.NoError(t, bus.Publish(t.Context(), testEvent{n: i}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	bus.Stop(ctx)

	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, got)
}

func TestBus_PublishAfterStop(t *testing.T) {
	bus := outbox.NewBus(nil)
	bus.Start(t.Context())
	bus.Stop(t.Context())

	err := bus.Publish(t.Context(), testEvent{})
	require.ErrorIs(t, err, outbox.ErrClosed)
}
