package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("list.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindListUpdated, Timestamp: time.Now()})

	select {
	case evt := <-ch:
		if evt.Kind != KindListUpdated {
			t.Errorf("Kind = %q, want %q", evt.Kind, KindListUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("unread.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindThreadUpdated})
	b.Publish(Event{Kind: KindUnreadChanged, Payload: UnreadChange{Total: 3}})

	select {
	case evt := <-ch:
		if evt.Kind != KindUnreadChanged {
			t.Errorf("Kind = %q, want %q", evt.Kind, KindUnreadChanged)
		}
		if uc, ok := evt.Payload.(UnreadChange); !ok || uc.Total != 3 {
			t.Errorf("Payload = %+v, want UnreadChange{Total: 3}", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected second event: %+v", evt)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 1)
	unsub()

	b.Publish(Event{Kind: KindListUpdated})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %+v", evt)
	default:
	}
}

func TestFullSubscriberDoesNotBlock(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		b.Publish(Event{Kind: KindListUpdated})
		b.Publish(Event{Kind: KindListUpdated})
		b.Publish(Event{Kind: KindListUpdated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}
