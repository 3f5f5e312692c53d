package progress

import (
	"testing"
)

func TestStreamOrdering(t *testing.T) {
	s := NewStream(8)
	s.Publish(Event{Type: EventStart})
	s.Publish(Event{Type: EventScope})
	s.Publish(Event{Type: EventComplete})
	s.Close()

	var got []EventType
	for ev := range s.Events() {
		got = append(got, ev.Type)
	}
	want := []EventType{EventStart, EventScope, EventComplete}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestStreamDropsAfterTerminal(t *testing.T) {
	s := NewStream(8)
	s.Publish(Event{Type: EventComplete})
	s.Publish(Event{Type: EventStatistics}) // 终态之后，应被丢弃
	s.Publish(Event{Type: EventError})      // 第二个终态，同样丢弃
	s.Close()

	var n int
	for range s.Events() {
		n++
	}
	if n != 1 {
		t.Errorf("delivered %d events, want exactly the one terminal event", n)
	}
}

func TestStreamPublishAfterCloseIsSilent(t *testing.T) {
	s := NewStream(1)
	s.Close()
	// 不应 panic
	s.Publish(Event{Type: EventStart})
	s.Close() // 重复关闭也不应 panic
}

func TestIsTerminal(t *testing.T) {
	for _, tt := range []struct {
		t    EventType
		want bool
	}{
		{EventComplete, true},
		{EventError, true},
		{EventStart, false},
		{EventRegionError, false},
		{EventStatistics, false},
	} {
		if IsTerminal(tt.t) != tt.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.t, !tt.want, tt.want)
		}
	}
}

func TestDiscardSink(t *testing.T) {
	// Discard 接受任意事件且不阻塞
	for i := 0; i < 1000; i++ {
		Discard.Publish(Event{Type: EventArticleFound})
	}
}
