package eventbus

import "testing"

func TestPublishSubscribe(t *testing.T) {
	bus := New[string]()
	ch := bus.Subscribe()
	bus.Publish("hello")
	if v := <-ch; v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	bus := New[int]()
	ch := bus.Subscribe()
	bus.Close()
	bus.Publish(42)
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed")
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	bus := New[int]()
	bus.Close()
	ch := bus.Subscribe()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel for late subscriber")
	}
}

func TestUnsubscribeAfterClose(t *testing.T) {
	bus := New[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}

func TestFullSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := New[int]()
	ch := bus.Subscribe()
	for i := 0; i < 100; i++ {
		bus.Publish(i) // must not block once the buffer is full
	}
	if v := <-ch; v != 0 {
		t.Fatalf("expected first event got %d", v)
	}
}
