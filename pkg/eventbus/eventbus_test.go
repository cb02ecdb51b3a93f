package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type testEvent struct{ name string }

func (e testEvent) Name() string { return e.name }

func TestBus_PublishAndWait(t *testing.T) {
	bus := New(zap.NewNop())

	var calls atomic.Int32
	bus.Subscribe("patron.active_loans", func(ctx context.Context, event Event) error {
		calls.Add(1)
		return nil
	})
	bus.Subscribe("patron.active_loans", func(ctx context.Context, event Event) error {
		calls.Add(1)
		return errors.New("smtp down")
	})
	bus.Subscribe("other", func(ctx context.Context, event Event) error {
		calls.Add(100)
		return nil
	})

	bus.Publish(context.Background(), testEvent{name: "patron.active_loans"})
	bus.Wait()

	assert.Equal(t, int32(2), calls.Load())
}

func TestBus_ListenerOutlivesCancelledPublisher(t *testing.T) {
	bus := New(zap.NewNop())

	var ctxErr atomic.Value
	bus.Subscribe("e", func(ctx context.Context, event Event) error {
		ctxErr.Store(ctx.Err() == nil)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, testEvent{name: "e"})
	bus.Wait()

	assert.Equal(t, true, ctxErr.Load())
}
