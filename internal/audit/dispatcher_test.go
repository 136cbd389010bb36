package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type gateSink struct {
	gate chan struct{}
	seen atomic.Int64
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
	s.seen.Add(1)
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher must report zero counters")
	}
}

func TestDispatcherStampsAndDelivers(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink, func() string { return "evt-1" })
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "secret_rotated", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.ID != "evt-1" {
			t.Fatalf("expected stamped id, got %q", ev.ID)
		}
		if ev.Timestamp.IsZero() {
			t.Fatal("expected stamped timestamp")
		}
		if ev.EventType != "secret_rotated" {
			t.Fatalf("unexpected event type %q", ev.EventType)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "token_blacklisted"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and buffer of one")
	}
	close(sink.gate)
	d.Close()
	if got := d.Delivered() + d.Dropped(); got != 10 {
		t.Fatalf("expected every event to be delivered or dropped, got %d", got)
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{ID: "a", EventType: "blacklist_cleanup", Success: true})
	sink.Emit(context.Background(), Event{ID: "b", EventType: "blacklist_cleanup", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if ev.ID != "b" {
		t.Fatalf("unexpected id %q", ev.ID)
	}
}
