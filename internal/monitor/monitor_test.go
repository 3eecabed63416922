package monitor

import "testing"

func TestBroadcastDeliversToOpenChannel(t *testing.T) {
	ch := make(chan []byte, 1)
	delivered, dropped := broadcastToChannels([]chan []byte{ch}, []byte(`{"a":1}`))
	if delivered != 1 || dropped != 0 {
		t.Fatalf("delivered=%d dropped=%d, want 1,0", delivered, dropped)
	}
	select {
	case got := <-ch:
		if string(got) != `{"a":1}` {
			t.Fatalf("payload = %q", got)
		}
	default:
		t.Fatal("expected payload to be queued")
	}
}

func TestBroadcastDropsOnFullChannel(t *testing.T) {
	ch := make(chan []byte, 1)
	ch <- []byte("stale")

	delivered, dropped := broadcastToChannels([]chan []byte{ch}, []byte("fresh"))
	if delivered != 0 || dropped != 1 {
		t.Fatalf("delivered=%d dropped=%d, want 0,1", delivered, dropped)
	}
	if string(<-ch) != "stale" {
		t.Fatal("full channel's existing message should not be displaced")
	}
}

func TestBroadcastNeverBlocksAcrossMultipleClients(t *testing.T) {
	full := make(chan []byte, 1)
	full <- []byte("x")
	open := make(chan []byte, 1)

	delivered, dropped := broadcastToChannels([]chan []byte{full, open}, []byte("evt"))
	if delivered != 1 || dropped != 1 {
		t.Fatalf("delivered=%d dropped=%d, want 1,1", delivered, dropped)
	}
}
