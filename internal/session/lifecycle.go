package session

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dgnsrekt/pucks-replay/internal/frame"
	"github.com/dgnsrekt/pucks-replay/internal/match"
)

// DefaultReplayThreshold is the sample count a session must exceed to be kept.
const DefaultReplayThreshold = 50

// Publisher receives the lifecycle's outputs. Implementations must not block:
// the lifecycle runs on the message-processing path.
type Publisher interface {
	PublishLiveSnapshot(sample match.PositionSample)
	PublishReplay(record *match.ReplayRecord, replayID string)
}

// ReplayIDFunc names a replay finalized by the given session.
type ReplayIDFunc func(finalizedAt int64) string

// DefaultReplayID names replays after the finalize time in unix millis.
func DefaultReplayID(finalizedAt int64) string {
	return fmt.Sprintf("match_%d", finalizedAt)
}

// Options configures a Lifecycle. Zero values select defaults.
type Options struct {
	Threshold int
	Clock     Clock
	ReplayID  ReplayIDFunc
}

// Lifecycle owns the current MatchSession and applies decoded events to it.
// Apply is meant to be called from a single goroutine; the read accessors may
// be called concurrently.
type Lifecycle struct {
	mu        sync.RWMutex
	current   *MatchSession
	threshold int
	clock     Clock
	replayID  ReplayIDFunc
	publisher Publisher
	logger    *zap.Logger
}

func NewLifecycle(publisher Publisher, opts Options, logger *zap.Logger) *Lifecycle {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultReplayThreshold
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.ReplayID == nil {
		opts.ReplayID = DefaultReplayID
	}

	return &Lifecycle{
		current:   newMatchSession(opts.Clock.Now()),
		threshold: opts.Threshold,
		clock:     opts.Clock,
		replayID:  opts.ReplayID,
		publisher: publisher,
		logger:    logger,
	}
}

// ClockOffsetMs is the current session's clock reading, used to stamp the
// next decoded sample.
func (l *Lifecycle) ClockOffsetMs() int64 {
	now := l.clock.Now()
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current.OffsetMs(now)
}

// SessionLen returns the number of samples in the current session.
func (l *Lifecycle) SessionLen() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current.Len()
}

// SessionStart returns the start time of the current session.
func (l *Lifecycle) SessionStart() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current.StartTime().UnixMilli()
}

// Apply advances the state machine by one event. It returns the replay that
// was emitted, if any.
func (l *Lifecycle) Apply(ev frame.Event) *match.ReplayRecord {
	switch e := ev.(type) {
	case frame.PositionUpdate:
		l.mu.Lock()
		l.current.append(e.Sample)
		l.mu.Unlock()
		l.publisher.PublishLiveSnapshot(e.Sample)
		return nil

	case frame.SessionBoundary:
		return l.finalize(e.Reason)

	default:
		return nil
	}
}

// finalize emits the current session as a replay when it is long enough, then
// replaces it with a fresh one either way. Emission happens before the swap.
func (l *Lifecycle) finalize(reason frame.BoundaryReason) *match.ReplayRecord {
	now := l.clock.Now()

	l.mu.RLock()
	finished := l.current
	l.mu.RUnlock()

	var record *match.ReplayRecord
	if finished.Len() > l.threshold {
		record = match.NewReplayRecord(finished.samples, finished.StartTime())
		id := l.replayID(now.UnixMilli())
		l.publisher.PublishReplay(record, id)

		l.logger.Info("replay finalized",
			zap.String("replayID", id),
			zap.Stringer("reason", reason),
			zap.Int("samples", len(record.Samples)),
			zap.Int64("durationMs", record.DurationMs),
		)
	} else {
		l.logger.Debug("session discarded",
			zap.Stringer("reason", reason),
			zap.Int("samples", finished.Len()),
			zap.Int("threshold", l.threshold),
		)
	}

	l.mu.Lock()
	l.current = newMatchSession(now)
	l.mu.Unlock()

	return record
}
