package events

import (
	"testing"
	"time"

	"pillnow/pkg/models"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a := bus.Subscribe()
	b := bus.Subscribe()

	event := models.StatusUpdateEvent{ScheduleID: 1, UserID: 7, NewStatus: models.StatusDone}
	bus.Publish(event)

	for _, sub := range []*Subscriber{a, b} {
		select {
		case got := <-sub.C:
			if got.ScheduleID != 1 || got.NewStatus != models.StatusDone {
				t.Errorf("unexpected event: %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	slow := bus.Subscribe()
	_ = slow // nunca lê

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			bus.Publish(models.StatusUpdateEvent{ScheduleID: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe()
	bus.Unsubscribe(sub)

	if _, ok := <-sub.C; ok {
		t.Fatal("expected channel closed after unsubscribe")
	}

	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", bus.SubscriberCount())
	}

	// segundo unsubscribe é inofensivo
	bus.Unsubscribe(sub)
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := NewBus()

	sub := bus.Subscribe()
	bus.Close()

	if _, ok := <-sub.C; ok {
		t.Fatal("expected channel closed after bus close")
	}

	// publish após close é descartado sem pânico
	bus.Publish(models.StatusUpdateEvent{ScheduleID: 1})

	late := bus.Subscribe()
	if _, ok := <-late.C; ok {
		t.Fatal("subscription after close must return a closed channel")
	}
}
