package hub

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return h, cancel
}

func fakeClient(h *Hub, buffer int) *Client {
	c := &Client{hub: h, send: make(chan Message, buffer)}
	h.register <- c
	return c
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}, false
	}
}

func waitCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", want, h.ClientCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_Broadcast(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	a := fakeClient(h, 4)
	b := fakeClient(h, 4)
	waitCount(t, h, 2)

	if err := h.BroadcastJSON(map[string]string{"state": "attentive"}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}
	for _, c := range []*Client{a, b} {
		m, ok := receive(t, c)
		if !ok || string(m.Data) != `{"state":"attentive"}` {
			t.Errorf("Unexpected message %q (open=%v)", m.Data, ok)
		}
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	slow := fakeClient(h, 1)
	h.Broadcast(NewJSONMessage([]byte(`1`)))
	h.Broadcast(NewJSONMessage([]byte(`2`)))

	if m, ok := receive(t, slow); !ok || string(m.Data) != "1" {
		t.Fatalf("Expected first message, got %q", m.Data)
	}
	if _, ok := receive(t, slow); ok {
		t.Error("Expected slow client's channel to be closed")
	}
	waitCount(t, h, 0)
}

func TestHub_Unregister(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	c := fakeClient(h, 1)
	h.unregister <- c
	if _, ok := receive(t, c); ok {
		t.Error("Expected channel closed on unregister")
	}
}

func TestHub_Stop(t *testing.T) {
	h, cancel := startHub(t)
	c := fakeClient(h, 1)
	if !h.IsRunning() {
		t.Error("Expected hub running")
	}
	cancel()

	if _, ok := receive(t, c); ok {
		t.Error("Expected clients closed on stop")
	}
	<-h.done
	if h.IsRunning() {
		t.Error("Expected hub stopped")
	}
	if NewClient(h, nil) != nil {
		t.Error("Expected NewClient to fail on a stopped hub")
	}
}
