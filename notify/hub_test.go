package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fila-zero/models"
)

func receiveEvent(t *testing.T, sub *Subscription) models.Event {
	t.Helper()

	select {
	case event := <-sub.Events():
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.Event{}
	}
}

func TestHub_PublishReachesSubscriber(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	sub := hub.Subscribe("shop-1")

	hub.Publish(models.Event{
		Kind:            models.EventQueueUpdate,
		EstablishmentID: "shop-1",
	})

	event := receiveEvent(t, sub)
	assert.Equal(t, models.EventQueueUpdate, event.Kind)
	assert.Equal(t, "shop-1", event.EstablishmentID)
}

func TestHub_EventsScopedToEstablishment(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	shop1 := hub.Subscribe("shop-1")
	shop2 := hub.Subscribe("shop-2")

	hub.Publish(models.Event{Kind: models.EventQueueCalled, EstablishmentID: "shop-1"})

	receiveEvent(t, shop1)

	select {
	case event := <-shop2.Events():
		t.Fatalf("shop-2 observer received event for shop-1: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PublishWithoutSubscribersIsNoOp(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	// must not panic or block
	hub.Publish(models.Event{Kind: models.EventQueueUpdate, EstablishmentID: "empty-shop"})
}

func TestHub_NoReplayForLateSubscribers(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	hub.Publish(models.Event{Kind: models.EventQueueUpdate, EstablishmentID: "shop-1"})

	late := hub.Subscribe("shop-1")
	select {
	case event := <-late.Events():
		t.Fatalf("late subscriber saw a past event: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	sub := hub.Subscribe("shop-1")
	hub.Unsubscribe(sub)

	_, ok := <-sub.Events()
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// publishing afterwards must not panic
	hub.Publish(models.Event{Kind: models.EventQueueUpdate, EstablishmentID: "shop-1"})

	// double unsubscribe is a no-op
	hub.Unsubscribe(sub)
}

func TestHub_SlowObserverDoesNotBlockPublish(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()

	slow := hub.Subscribe("shop-1")
	healthy := hub.Subscribe("shop-1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			hub.Publish(models.Event{Kind: models.EventQueueUpdate, EstablishmentID: "shop-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow observer")
	}

	// the slow observer still holds the first event it never drained
	require.Len(t, slow.events, 1)
	// the healthy observer got at least its buffer's worth
	assert.NotEmpty(t, healthy.events)
}

func TestHub_SubscribeAllSeesEveryEstablishment(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	sink := hub.SubscribeAll()

	hub.Publish(models.Event{Kind: models.EventQueueUpdate, EstablishmentID: "shop-1"})
	hub.Publish(models.Event{Kind: models.EventQueueServed, EstablishmentID: "shop-2"})

	first := receiveEvent(t, sink)
	second := receiveEvent(t, sink)
	assert.Equal(t, "shop-1", first.EstablishmentID)
	assert.Equal(t, "shop-2", second.EstablishmentID)
}

func TestHub_CloseClosesAllChannels(t *testing.T) {
	hub := NewHub(4)

	sub := hub.Subscribe("shop-1")
	sink := hub.SubscribeAll()

	hub.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)
	_, ok = <-sink.Events()
	assert.False(t, ok)

	// publish and double close after shutdown are no-ops
	hub.Publish(models.Event{Kind: models.EventQueueUpdate, EstablishmentID: "shop-1"})
	hub.Close()
}
