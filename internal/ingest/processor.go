// Package ingest is the single processing path from raw upstream messages to
// the session lifecycle.
package ingest

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dgnsrekt/pucks-replay/internal/frame"
	"github.com/dgnsrekt/pucks-replay/internal/registry"
	"github.com/dgnsrekt/pucks-replay/internal/session"
	"github.com/dgnsrekt/pucks-replay/internal/upstream"
	"github.com/dgnsrekt/pucks-replay/internal/wire"
)

// Snapshot is a point-in-time copy of the processor counters.
type Snapshot struct {
	Messages         uint64 `json:"messages"`
	PositionUpdates  uint64 `json:"positionUpdates"`
	Boundaries       uint64 `json:"boundaries"`
	Unhandled        uint64 `json:"unhandled"`
	Truncated        uint64 `json:"truncated"`
	Overlong         uint64 `json:"overlong"`
	UnresolvedSkips  uint64 `json:"unresolvedPlayers"`
	ReplaysEmitted   uint64 `json:"replaysEmitted"`
	SessionSamples   int    `json:"sessionSamples"`
	SessionStartedAt int64  `json:"sessionStartTime"`
}

// DecodeErrors is the total of all decode failures.
func (s Snapshot) DecodeErrors() uint64 {
	return s.Truncated + s.Overlong
}

// Processor decodes each message and applies it to the lifecycle. Handle must
// be called from one goroutine; arrival order is the processing order.
type Processor struct {
	lifecycle *session.Lifecycle
	entities  registry.Lookuper
	logger    *zap.Logger

	messages        atomic.Uint64
	positionUpdates atomic.Uint64
	boundaries      atomic.Uint64
	unhandled       atomic.Uint64
	truncated       atomic.Uint64
	overlong        atomic.Uint64
	unresolved      atomic.Uint64
	replays         atomic.Uint64
}

var _ upstream.Handler = (*Processor)(nil)

func NewProcessor(lifecycle *session.Lifecycle, entities registry.Lookuper, logger *zap.Logger) *Processor {
	return &Processor{
		lifecycle: lifecycle,
		entities:  entities,
		logger:    logger,
	}
}

// Handle processes one message. Malformed messages are logged, counted and
// dropped without touching the session.
func (p *Processor) Handle(message []byte) {
	p.messages.Add(1)

	ev, err := frame.DecodeMessage(message, p.lifecycle.ClockOffsetMs(), p.entities)
	if err != nil {
		p.countDecodeError(err)
		code := -1
		if len(message) > 0 {
			code = int(message[0])
		}
		p.logger.Debug("dropping malformed message",
			zap.Int("code", code),
			zap.Int("length", len(message)),
			zap.Error(err),
		)
		return
	}

	switch e := ev.(type) {
	case frame.PositionUpdate:
		p.positionUpdates.Add(1)
		if e.Unresolved > 0 {
			p.unresolved.Add(uint64(e.Unresolved))
		}
	case frame.SessionBoundary:
		p.boundaries.Add(1)
	case frame.Unhandled:
		p.unhandled.Add(1)
	}

	if record := p.lifecycle.Apply(ev); record != nil {
		p.replays.Add(1)
	}
}

func (p *Processor) countDecodeError(err error) {
	switch {
	case errors.Is(err, wire.ErrOverlong):
		p.overlong.Add(1)
	default:
		p.truncated.Add(1)
	}
}

// Stats returns the current counters and session size.
func (p *Processor) Stats() Snapshot {
	return Snapshot{
		Messages:         p.messages.Load(),
		PositionUpdates:  p.positionUpdates.Load(),
		Boundaries:       p.boundaries.Load(),
		Unhandled:        p.unhandled.Load(),
		Truncated:        p.truncated.Load(),
		Overlong:         p.overlong.Load(),
		UnresolvedSkips:  p.unresolved.Load(),
		ReplaysEmitted:   p.replays.Load(),
		SessionSamples:   p.lifecycle.SessionLen(),
		SessionStartedAt: p.lifecycle.SessionStart(),
	}
}
