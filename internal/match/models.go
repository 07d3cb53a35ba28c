// Package match holds the value types that flow from the frame decoder to the sinks.
package match

import (
	"encoding/json"
	"math"
	"time"
)

// Ball is the ball's position on the ground plane.
type Ball struct {
	X float32 `json:"x" cbor:"x"`
	Z float32 `json:"z" cbor:"z"`
}

// MarshalJSON writes non-finite coordinates as null.
func (b Ball) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X any `json:"x"`
		Z any `json:"z"`
	}{NullableFloat(b.X), NullableFloat(b.Z)})
}

// PlayerPosition is one resolved player inside a position sample.
type PlayerPosition struct {
	ID   uint64  `json:"id" cbor:"id"`
	Name string  `json:"name" cbor:"name"`
	Team int     `json:"team" cbor:"team"`
	X    float32 `json:"x" cbor:"x"`
	Z    float32 `json:"z" cbor:"z"`
}

// MarshalJSON writes non-finite coordinates as null.
func (p PlayerPosition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID   uint64 `json:"id"`
		Name string `json:"name"`
		Team int    `json:"team"`
		X    any    `json:"x"`
		Z    any    `json:"z"`
	}{p.ID, p.Name, p.Team, NullableFloat(p.X), NullableFloat(p.Z)})
}

// NullableFloat returns f, or nil when f is NaN or infinite. Any float32 bit
// pattern is a valid decode but JSON has no encoding for non-finite numbers.
func NullableFloat(f float32) any {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return nil
	}
	return f
}

// PositionSample is produced once per decoded position update.
// OffsetMs is relative to the owning session's start time.
type PositionSample struct {
	OffsetMs int64            `json:"t" cbor:"t"`
	Players  []PlayerPosition `json:"players" cbor:"players"`
	Ball     Ball             `json:"ball" cbor:"ball"`
}

// ReplayRecord is a finalized session.
type ReplayRecord struct {
	Samples []PositionSample `json:"samples" cbor:"samples"`
	// Players is reserved for downstream readers and is always empty.
	Players    map[string]any `json:"players" cbor:"players"`
	StartedAt  int64          `json:"startTime" cbor:"startTime"` // unix millis
	DurationMs int64          `json:"duration" cbor:"duration"`
}

// StartTime returns the session start as a time.
func (r *ReplayRecord) StartTime() time.Time {
	return time.UnixMilli(r.StartedAt)
}

// NewReplayRecord builds a record from a session's samples. Duration is the
// offset of the last sample.
func NewReplayRecord(samples []PositionSample, start time.Time) *ReplayRecord {
	var duration int64
	if len(samples) > 0 {
		duration = samples[len(samples)-1].OffsetMs
	}
	return &ReplayRecord{
		Samples:    samples,
		Players:    map[string]any{},
		StartedAt:  start.UnixMilli(),
		DurationMs: duration,
	}
}
