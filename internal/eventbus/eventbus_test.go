package eventbus

import "testing"

func TestBusFanOut(t *testing.T) {
	b := New()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	b.Publish("ev")
	if e := <-s1; e != "ev" {
		t.Fatalf("s1 got %v", e)
	}
	if e := <-s2; e != "ev" {
		t.Fatalf("s2 got %v", e)
	}
	b.Close()
	if _, ok := <-s1; ok {
		t.Fatal("channel still open after Close")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	b := New()
	s := b.Subscribe()
	b.Unsubscribe(s)
	if _, ok := <-s; ok {
		t.Fatal("unsubscribed channel not closed")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(1)
	b.Close()
}

func TestBusPublishAfterClose(t *testing.T) {
	b := New()
	b.Close()
	b.Publish("late")
	if ch := b.Subscribe(); ch == nil {
		t.Fatal("subscribe after close returned nil channel")
	} else if _, ok := <-ch; ok {
		t.Fatal("subscribe after close returned open channel")
	}
}
