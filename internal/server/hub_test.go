package server

import (
	"testing"

	"go.uber.org/zap"

	"github.com/muurk/apsta/internal/wifi"
)

func seqs(msgs []Message) []uint64 {
	out := make([]uint64, len(msgs))
	for i, m := range msgs {
		out[i] = m.Seq
	}
	return out
}

func equalSeqs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHub_History(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		published int
		since     uint64
		want      []uint64
	}{
		{"empty", 3, 0, 0, []uint64{}},
		{"partial", 3, 2, 0, []uint64{1, 2}},
		{"exactly full", 3, 3, 0, []uint64{1, 2, 3}},
		{"wrapped", 3, 5, 0, []uint64{3, 4, 5}},
		{"since inside window", 3, 5, 3, []uint64{4, 5}},
		{"since latest", 3, 5, 5, []uint64{}},
		{"since beyond window", 4, 10, 1, []uint64{7, 8, 9, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub(tt.size, zap.NewNop())
			for i := 0; i < tt.published; i++ {
				h.Observe(wifi.Event{Kind: wifi.EventStateChanged})
			}
			if got := seqs(h.Since(tt.since)); !equalSeqs(got, tt.want) {
				t.Errorf("Since(%d) = %v, want %v", tt.since, got, tt.want)
			}
		})
	}
}

func TestHub_SubscribeDelivers(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	h.Observe(wifi.Event{Kind: wifi.EventRoleStarted})

	sub, backlog := h.subscribe("test", 0)
	if got := seqs(backlog); !equalSeqs(got, []uint64{1}) {
		t.Errorf("backlog = %v, want [1]", got)
	}
	if h.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", h.Subscribers())
	}

	h.Observe(wifi.Event{Kind: wifi.EventAssociated})
	msg := <-sub.send
	if msg.Seq != 2 || msg.Event.Kind != wifi.EventAssociated {
		t.Errorf("live message = %+v", msg)
	}

	h.unsubscribe(sub)
	h.unsubscribe(sub)
	if _, ok := <-sub.send; ok {
		t.Error("send channel still open after unsubscribe")
	}
	if h.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after unsubscribe", h.Subscribers())
	}
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	h := NewHub(0, nil)
	sub, _ := h.subscribe("slow", 0)

	for i := 0; i < clientBufferSize+10; i++ {
		h.Observe(wifi.Event{Kind: wifi.EventStateChanged})
	}

	if got := h.Dropped(); got != 10 {
		t.Errorf("Dropped() = %d, want 10", got)
	}
	if len(sub.send) != clientBufferSize {
		t.Errorf("buffered = %d, want %d", len(sub.send), clientBufferSize)
	}
	h.closeAll()
}
