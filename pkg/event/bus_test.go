package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFIFO(t *testing.T) {
	bus := NewBus[int]()
	var got []string
	bus.Subscribe(func(v int) { got = append(got, "a") })
	bus.Subscribe(func(v int) { got = append(got, "b") })
	bus.Subscribe(func(v int) { got = append(got, "c") })

	bus.Publish(1)
	bus.Publish(2)

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus[string]()
	var calls int
	sub := bus.Subscribe(func(string) { calls++ })
	other := bus.Subscribe(func(string) {})
	require.NotEqual(t, sub.ID(), other.ID())

	bus.Publish("x")
	sub.Unsubscribe()
	sub.Unsubscribe()
	bus.Publish("y")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, bus.Len())

	var nilSub *Subscription
	assert.NotPanics(t, nilSub.Unsubscribe)
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus[int]()
	var order []int
	var second *Subscription
	bus.Subscribe(func(v int) {
		order = append(order, 1)
		second.Unsubscribe()
	})
	second = bus.Subscribe(func(v int) { order = append(order, 2) })

	bus.Publish(0)
	bus.Publish(0)

	// The snapshot taken for the first publish still includes the second handler.
	assert.Equal(t, []int{1, 2, 1}, order)
}

func TestChannelSubscription(t *testing.T) {
	bus := NewBus[int]()
	ch := bus.Channel(2)

	bus.Publish(1)
	bus.Publish(2)
	bus.Publish(3) // dropped, buffer full

	assert.Equal(t, 1, <-ch.C())
	assert.Equal(t, 2, <-ch.C())

	ch.Close()
	ch.Close()
	_, ok := <-ch.C()
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Len())
	assert.NotPanics(t, func() { bus.Publish(4) })
}
