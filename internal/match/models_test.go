package match

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestNewReplayRecord_Duration(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	samples := []PositionSample{{OffsetMs: 0}, {OffsetMs: 40}, {OffsetMs: 95}}

	rec := NewReplayRecord(samples, start)
	if rec.DurationMs != 95 {
		t.Errorf("expected duration 95, got %d", rec.DurationMs)
	}
	if !rec.StartTime().Equal(start) {
		t.Errorf("expected start %v, got %v", start, rec.StartTime())
	}
	if rec.Players == nil || len(rec.Players) != 0 {
		t.Errorf("expected empty reserved players map, got %v", rec.Players)
	}
}

func TestReplayRecord_JSONShape(t *testing.T) {
	rec := NewReplayRecord([]PositionSample{{
		OffsetMs: 12,
		Players:  []PlayerPosition{{ID: 300, Name: "Bob", Team: 1, X: 3, Z: 4}},
		Ball:     Ball{X: 1.5, Z: 2.5},
	}}, time.UnixMilli(1700000000000))

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"samples":[{"t":12,"players":[{"id":300,"name":"Bob","team":1,"x":3,"z":4}],"ball":{"x":1.5,"z":2.5}}],"players":{},"startTime":1700000000000,"duration":12}`
	if string(raw) != want {
		t.Errorf("unexpected JSON:\n got  %s\n want %s", raw, want)
	}
}

func TestReplayRecord_JSONNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	rec := NewReplayRecord([]PositionSample{{
		OffsetMs: 20,
		Players:  []PlayerPosition{{ID: 300, Name: "Bob", Team: 1, X: inf, Z: 4}},
		Ball:     Ball{X: nan, Z: float32(math.Inf(-1))},
	}}, time.UnixMilli(0))

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"samples":[{"t":20,"players":[{"id":300,"name":"Bob","team":1,"x":null,"z":4}],"ball":{"x":null,"z":null}}],"players":{},"startTime":0,"duration":20}`
	if string(raw) != want {
		t.Errorf("unexpected JSON:\n got  %s\n want %s", raw, want)
	}
}

func TestNullableFloat(t *testing.T) {
	if v := NullableFloat(1.5); v != float32(1.5) {
		t.Errorf("expected 1.5, got %v", v)
	}
	if v := NullableFloat(float32(math.NaN())); v != nil {
		t.Errorf("expected nil for NaN, got %v", v)
	}
}
