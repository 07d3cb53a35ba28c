package rtdb

import (
	"context"

	"github.com/dgnsrekt/pucks-replay/internal/match"
	"github.com/dgnsrekt/pucks-replay/internal/sink"
)

// Document paths used by the original bot's database layout.
const (
	LivePath    = "live_match"
	ReplaysPath = "replays"
)

// Sink writes live snapshots and replays to fixed database paths.
type Sink struct {
	writer Writer
}

var _ sink.Sink = (*Sink)(nil)

func NewSink(w Writer) *Sink {
	return &Sink{writer: w}
}

func (s *Sink) PublishLiveSnapshot(ctx context.Context, sample match.PositionSample) error {
	return s.writer.Put(ctx, LivePath, sample)
}

func (s *Sink) PublishReplay(ctx context.Context, record *match.ReplayRecord, replayID string) error {
	return s.writer.Put(ctx, ReplaysPath+"/"+replayID, record)
}
