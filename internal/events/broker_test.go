package events

import (
	"testing"
	"time"
)

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	b := NewBroker[int]()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(7)

	for _, ch := range []<-chan int{a, c} {
		select {
		case v := <-ch:
			if v != 7 {
				t.Fatalf("got %d, want 7", v)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for value")
		}
	}
}

func TestBrokerConflatesSlowSubscriber(t *testing.T) {
	b := NewBroker[int]()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	for i := 1; i <= 10; i++ {
		b.Publish(i)
	}

	if v := <-ch; v != 10 {
		t.Fatalf("slow subscriber got %d, want latest value 10", v)
	}
}

func TestBrokerSubscribeWithSeedsInitial(t *testing.T) {
	b := NewBroker[string]()
	ch, unsub := b.SubscribeWith(2, "now")
	defer unsub()

	b.Publish("later")

	if v := <-ch; v != "now" {
		t.Fatalf("first value = %q, want now", v)
	}
	if v := <-ch; v != "later" {
		t.Fatalf("second value = %q, want later", v)
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker[int]()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	if n := b.Subscribers(); n != 0 {
		t.Fatalf("subscribers = %d, want 0", n)
	}
	b.Publish(1)
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker[int]()
	ch, unsub := b.Subscribe(1)
	b.Close()
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Close")
	}
	late, _ := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatal("subscription after Close should be closed")
	}
}
