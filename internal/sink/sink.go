// Package sink delivers live snapshots and finalized replays to persistence
// and fan-out targets without blocking the message-processing path.
package sink

import (
	"context"
	"errors"

	"github.com/dgnsrekt/pucks-replay/internal/match"
)

var ErrQueueFull = errors.New("sink queue full")

// Sink persists or forwards lifecycle outputs.
type Sink interface {
	PublishLiveSnapshot(ctx context.Context, sample match.PositionSample) error
	PublishReplay(ctx context.Context, record *match.ReplayRecord, replayID string) error
}

// Multi fans every call out to each sink in order and joins their errors.
type Multi []Sink

var _ Sink = Multi(nil)

func (m Multi) PublishLiveSnapshot(ctx context.Context, sample match.PositionSample) error {
	var errs []error
	for _, s := range m {
		if err := s.PublishLiveSnapshot(ctx, sample); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PublishReplay(ctx context.Context, record *match.ReplayRecord, replayID string) error {
	var errs []error
	for _, s := range m {
		if err := s.PublishReplay(ctx, record, replayID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop discards everything.
type Noop struct{}

func (Noop) PublishLiveSnapshot(context.Context, match.PositionSample) error { return nil }

func (Noop) PublishReplay(context.Context, *match.ReplayRecord, string) error { return nil }
