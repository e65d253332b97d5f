package events

import (
	"encoding/json"
	"testing"

	"econstats-engine/internal/domain"
)

func TestMakeEvent(t *testing.T) {
	s := MakeEvent("req-1", TypeUnit, 1, Unit{RunID: "r1", UnitResult: domain.Skipped("Iowa", "timeout")})
	var e Event
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != TypeUnit || e.RequestID != "req-1" || e.Version != 1 {
		t.Fatalf("event = %+v", e)
	}
	var u map[string]any
	if err := json.Unmarshal(e.Data, &u); err != nil {
		t.Fatal(err)
	}
	if u["run_id"] != "r1" || u["unit"] != "Iowa" || u["outcome"] != "skipped" {
		t.Fatalf("data = %v", u)
	}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	a, b := h.Subscribe(), h.Subscribe()
	h.Emit(TypeRunStarted, RunStarted{RunID: "r1", Pipeline: "qwi"})
	for _, ch := range []chan string{a, b} {
		select {
		case msg := <-ch:
			var e Event
			if err := json.Unmarshal([]byte(msg), &e); err != nil || e.Type != TypeRunStarted {
				t.Fatalf("msg = %s err = %v", msg, err)
			}
		default:
			t.Fatal("subscriber got nothing")
		}
	}
	h.Unsubscribe(a)
	h.Publish("x")
	if got := <-b; got != "x" {
		t.Fatalf("got %q", got)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	for i := 0; i < cap(ch)+5; i++ {
		h.Publish("e")
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffered = %d", len(ch))
	}
}

func TestNilHub(t *testing.T) {
	var h *Hub
	h.Publish("x")
	h.Emit(TypePing, nil)
}
