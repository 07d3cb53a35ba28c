package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/pucks-replay/internal/match"
)

type memorySink struct {
	mu        sync.Mutex
	live      []int64
	replayIDs []string
	failLive  bool
}

func (m *memorySink) PublishLiveSnapshot(ctx context.Context, sample match.PositionSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLive {
		return errors.New("boom")
	}
	m.live = append(m.live, sample.OffsetMs)
	return nil
}

func (m *memorySink) PublishReplay(ctx context.Context, record *match.ReplayRecord, replayID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replayIDs = append(m.replayIDs, replayID)
	return nil
}

func waitDone(t *testing.T, d *Dispatcher) {
	t.Helper()
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	s := &memorySink{}
	d := NewDispatcher(s, Config{LiveQueue: 100, ReplayQueue: 4, ReplayWorkers: 2}, zap.NewNop())

	for i := 0; i < 50; i++ {
		d.PublishLiveSnapshot(match.PositionSample{OffsetMs: int64(i)})
	}
	d.PublishReplay(match.NewReplayRecord(nil, time.Now()), "match_1")

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	cancel()
	waitDone(t, d)

	if len(s.live) != 50 {
		t.Fatalf("expected 50 live snapshots, got %d", len(s.live))
	}
	for i, off := range s.live {
		if off != int64(i) {
			t.Fatalf("live snapshot %d out of order: %d", i, off)
		}
	}
	if len(s.replayIDs) != 1 || s.replayIDs[0] != "match_1" {
		t.Errorf("unexpected replays: %v", s.replayIDs)
	}

	stats := d.Stats()
	if stats.LiveDelivered != 50 || stats.ReplayDelivered != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	s := &memorySink{}
	d := NewDispatcher(s, Config{LiveQueue: 1, ReplayQueue: 1}, zap.NewNop())

	d.PublishLiveSnapshot(match.PositionSample{OffsetMs: 1})
	d.PublishLiveSnapshot(match.PositionSample{OffsetMs: 2})
	d.PublishLiveSnapshot(match.PositionSample{OffsetMs: 3})
	d.PublishReplay(match.NewReplayRecord(nil, time.Now()), "a")
	d.PublishReplay(match.NewReplayRecord(nil, time.Now()), "b")

	stats := d.Stats()
	if stats.LiveDropped != 2 {
		t.Errorf("expected 2 live drops, got %d", stats.LiveDropped)
	}
	if stats.ReplayDropped != 1 {
		t.Errorf("expected 1 replay drop, got %d", stats.ReplayDropped)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	cancel()
	waitDone(t, d)

	if len(s.live) != 1 || s.live[0] != 3 {
		t.Errorf("expected newest snapshot kept, got %v", s.live)
	}
	if len(s.replayIDs) != 1 || s.replayIDs[0] != "a" {
		t.Errorf("expected replay a kept, got %v", s.replayIDs)
	}
}

func TestDispatcher_PublishAfterStop(t *testing.T) {
	d := NewDispatcher(&memorySink{}, Config{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	cancel()
	waitDone(t, d)

	d.PublishLiveSnapshot(match.PositionSample{})
	d.PublishReplay(match.NewReplayRecord(nil, time.Now()), "late")

	stats := d.Stats()
	if stats.LiveDropped != 1 || stats.ReplayDropped != 1 {
		t.Errorf("expected drops after stop, got %+v", stats)
	}
}

func TestDispatcher_CountsFailures(t *testing.T) {
	s := &memorySink{failLive: true}
	d := NewDispatcher(s, Config{}, zap.NewNop())

	d.PublishLiveSnapshot(match.PositionSample{})

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	cancel()
	waitDone(t, d)

	if got := d.Stats().LiveFailed; got != 1 {
		t.Errorf("expected 1 failure, got %d", got)
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	ok := &memorySink{}
	bad := &memorySink{failLive: true}
	m := Multi{bad, ok}

	err := m.PublishLiveSnapshot(context.Background(), match.PositionSample{OffsetMs: 9})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(ok.live) != 1 {
		t.Error("failure in one sink should not skip the next")
	}

	if err := m.PublishReplay(context.Background(), match.NewReplayRecord(nil, time.Now()), "x"); err != nil {
		t.Errorf("unexpected replay error: %v", err)
	}
}
