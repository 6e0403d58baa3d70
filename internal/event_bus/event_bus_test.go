package event_bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishRunsHandlersInOrder(t *testing.T) {
	bus := NewEventBus()
	var calls []string
	bus.Subscribe("a", func(e Event) error { calls = append(calls, "first"); return nil })
	bus.Subscribe("a", func(e Event) error { calls = append(calls, "second"); return nil })
	bus.Subscribe("b", func(e Event) error { calls = append(calls, "other"); return nil })

	err := bus.Publish(NewEvent(context.Background(), "a", 1))

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestEventBus_FailingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus()
	called := 0
	bus.Subscribe("a", func(e Event) error { return errors.New("boom") })
	bus.Subscribe("a", func(e Event) error { panic("kaboom") })
	bus.Subscribe("a", func(e Event) error { called++; return nil })

	err := bus.Publish(NewEvent(context.Background(), "a", nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 handler(s) failed")
	assert.Equal(t, 1, called)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	called := 0
	unsubscribe := bus.Subscribe("a", func(e Event) error { called++; return nil })
	unsubscribe()

	require.NoError(t, bus.Publish(NewEvent(context.Background(), "a", nil)))
	assert.Equal(t, 0, called)
}

func TestSubscribeTyped_SkipsMismatchedPayload(t *testing.T) {
	bus := NewEventBus()
	var received []SmsDeliveryAttempted
	SubscribeTyped[SmsDeliveryAttempted](bus, SmsDeliveryAttemptedType, func(e EventT[SmsDeliveryAttempted]) error {
		received = append(received, e.Data)
		return nil
	})

	require.NoError(t, bus.Publish(NewEvent(context.Background(), SmsDeliveryAttemptedType, "not an attempt")))
	require.NoError(t, bus.Publish(NewEvent(context.Background(), SmsDeliveryAttemptedType, SmsDeliveryAttempted{Lane: "otp"})))

	require.Len(t, received, 1)
	assert.Equal(t, "otp", received[0].Lane)
}

func TestEventBus_CancelledContext(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe("a", func(e Event) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Publish(NewEvent(ctx, "a", nil))

	assert.ErrorIs(t, err, context.Canceled)
}
