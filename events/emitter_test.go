package events_test

import (
	"testing"
	"time"

	"github.com/seloria/seloria/core"
	"github.com/seloria/seloria/events"
)

func TestPublishFansOutToEverySubscriber(t *testing.T) {
	e := events.NewEmitter()
	ch1, unsub1 := e.Subscribe()
	defer unsub1()
	ch2, unsub2 := e.Subscribe()
	defer unsub2()

	batch := []core.Event{core.NewEvent(core.EventBlockCommitted, map[string]string{"height": "1"})}
	e.Publish(batch)

	for i, ch := range []<-chan core.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != core.EventBlockCommitted {
				t.Fatalf("subscriber %d got type %v, want EventBlockCommitted", i, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the published event", i)
		}
	}
}

func TestUnsubscribeClosesTheChannel(t *testing.T) {
	e := events.NewEmitter()
	ch, unsub := e.Subscribe()
	unsub()

	_, open := <-ch
	if open {
		t.Fatalf("channel should be closed after unsubscribe")
	}
}

func TestPublishAfterUnsubscribeDoesNotReachDroppedSubscriber(t *testing.T) {
	e := events.NewEmitter()
	ch, unsub := e.Subscribe()
	unsub()

	// Publish must not panic or block once every subscriber has left.
	e.Publish([]core.Event{core.NewEvent(core.EventBlockCommitted, nil)})

	if _, open := <-ch; open {
		t.Fatalf("unsubscribed channel should stay closed after a later Publish")
	}
}

func TestSecondSubscriberDoesNotSeeEventsPublishedBeforeItJoined(t *testing.T) {
	e := events.NewEmitter()
	chA, unsubA := e.Subscribe()
	defer unsubA()

	e.Publish([]core.Event{core.NewEvent(core.EventKVUpdated, map[string]string{"key": "x"})})

	chB, unsubB := e.Subscribe()
	defer unsubB()
	e.Publish([]core.Event{core.NewEvent(core.EventKVUpdated, map[string]string{"key": "y"})})

	// chA, subscribed from the start, sees both events in order.
	for _, want := range []string{"x", "y"} {
		select {
		case ev := <-chA:
			if ev.Fields["key"] != want {
				t.Fatalf("chA got key %q, want %q", ev.Fields["key"], want)
			}
		case <-time.After(time.Second):
			t.Fatalf("chA never received key %q", want)
		}
	}

	// chB, subscribed after the first Publish, only ever sees the second.
	select {
	case ev := <-chB:
		if ev.Fields["key"] != "y" {
			t.Fatalf("chB got key %q, want %q", ev.Fields["key"], "y")
		}
	case <-time.After(time.Second):
		t.Fatalf("chB never received its event")
	}
	select {
	case ev := <-chB:
		t.Fatalf("chB should have received exactly one event, got extra %+v", ev)
	default:
	}
}
