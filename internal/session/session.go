// Package session accumulates decoded samples into matches and finalizes them
// into replays at goal and reset boundaries.
package session

import (
	"time"

	"github.com/dgnsrekt/pucks-replay/internal/match"
)

// MatchSession is the in-progress match. It is replaced wholesale at every
// boundary and never shared between two lifecycles.
type MatchSession struct {
	samples   []match.PositionSample
	startTime time.Time
}

func newMatchSession(start time.Time) *MatchSession {
	return &MatchSession{startTime: start}
}

// StartTime returns when the session began.
func (s *MatchSession) StartTime() time.Time {
	return s.startTime
}

// Len returns the number of samples accumulated so far.
func (s *MatchSession) Len() int {
	return len(s.samples)
}

// OffsetMs returns the session clock reading for now.
func (s *MatchSession) OffsetMs(now time.Time) int64 {
	offset := now.Sub(s.startTime).Milliseconds()
	if offset < 0 {
		return 0
	}
	return offset
}

func (s *MatchSession) append(sample match.PositionSample) {
	s.samples = append(s.samples, sample)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns a Clock backed by time.Now.
func RealClock() Clock {
	return realClock{}
}
