package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/pucks-replay/internal/match"
	"github.com/dgnsrekt/pucks-replay/internal/session"
)

// Config sizes the dispatcher queues.
type Config struct {
	LiveQueue     int
	ReplayQueue   int
	ReplayWorkers int
	// Timeout bounds a single sink call.
	Timeout time.Duration
}

type replayJob struct {
	record *match.ReplayRecord
	id     string
}

// Stats are cumulative dispatcher counters.
type Stats struct {
	LiveDelivered   uint64 `json:"liveDelivered"`
	LiveDropped     uint64 `json:"liveDropped"`
	LiveFailed      uint64 `json:"liveFailed"`
	ReplayDelivered uint64 `json:"replayDelivered"`
	ReplayDropped   uint64 `json:"replayDropped"`
	ReplayFailed    uint64 `json:"replayFailed"`
}

// Dispatcher hands lifecycle outputs to a Sink on background workers.
//
// Live snapshots go through one worker so they reach the sink in arrival
// order. Replays are spread over ReplayWorkers, so two replays finalized
// close together may be written in either order. Enqueueing never blocks:
// a full live queue drops its oldest snapshot, a full replay queue drops the
// new replay.
type Dispatcher struct {
	sink    Sink
	cfg     Config
	live    chan match.PositionSample
	replays chan replayJob
	logger  *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
	mu        sync.RWMutex
	stopped   bool

	liveDelivered   atomic.Uint64
	liveDropped     atomic.Uint64
	liveFailed      atomic.Uint64
	replayDelivered atomic.Uint64
	replayDropped   atomic.Uint64
	replayFailed    atomic.Uint64
}

var _ session.Publisher = (*Dispatcher)(nil)

func NewDispatcher(s Sink, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.LiveQueue < 1 {
		cfg.LiveQueue = 64
	}
	if cfg.ReplayQueue < 1 {
		cfg.ReplayQueue = 16
	}
	if cfg.ReplayWorkers < 1 {
		cfg.ReplayWorkers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Dispatcher{
		sink:    s,
		cfg:     cfg,
		live:    make(chan match.PositionSample, cfg.LiveQueue),
		replays: make(chan replayJob, cfg.ReplayQueue),
		logger:  logger,
		closed:  make(chan struct{}),
	}
}

// PublishLiveSnapshot queues a live snapshot. When the queue is full the
// oldest queued snapshot is discarded.
func (d *Dispatcher) PublishLiveSnapshot(sample match.PositionSample) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.liveDropped.Add(1)
		return
	}

	select {
	case d.live <- sample:
		return
	default:
	}

	// Queue full: evict the oldest snapshot so the newest position wins.
	select {
	case <-d.live:
		d.liveDropped.Add(1)
		d.logger.Debug("live snapshot dropped", zap.Error(ErrQueueFull))
	default:
	}
	select {
	case d.live <- sample:
	default:
		d.liveDropped.Add(1)
	}
}

// PublishReplay queues a finalized replay.
func (d *Dispatcher) PublishReplay(record *match.ReplayRecord, replayID string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.replayDropped.Add(1)
		d.logger.Error("replay dropped after shutdown", zap.String("replayID", replayID))
		return
	}

	select {
	case d.replays <- replayJob{record: record, id: replayID}:
	default:
		d.replayDropped.Add(1)
		d.logger.Error("replay dropped",
			zap.String("replayID", replayID),
			zap.Int("samples", len(record.Samples)),
			zap.Error(ErrQueueFull),
		)
	}
}

// Run starts the workers and blocks until ctx is cancelled and the queues
// have been drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.liveWorker()
	}()

	for i := 0; i < d.cfg.ReplayWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			d.replayWorker(workerID)
		}(i)
	}

	<-ctx.Done()
	d.stop()
	wg.Wait()
	d.logger.Info("sink dispatcher stopped")
	close(d.closed)
}

// Done is closed once Run has drained the queues and returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.closed
}

func (d *Dispatcher) stop() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		close(d.live)
		close(d.replays)
		d.mu.Unlock()
	})
}

// Workers use a fresh context per call so queued items still drain after the
// run context is cancelled.
func (d *Dispatcher) liveWorker() {
	for sample := range d.live {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		err := d.sink.PublishLiveSnapshot(ctx, sample)
		cancel()
		if err != nil {
			d.liveFailed.Add(1)
			d.logger.Warn("live snapshot publish failed", zap.Error(err))
			continue
		}
		d.liveDelivered.Add(1)
	}
}

func (d *Dispatcher) replayWorker(id int) {
	for job := range d.replays {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		err := d.sink.PublishReplay(ctx, job.record, job.id)
		cancel()
		if err != nil {
			d.replayFailed.Add(1)
			d.logger.Error("replay publish failed",
				zap.Int("worker", id),
				zap.String("replayID", job.id),
				zap.Error(err),
			)
			continue
		}
		d.replayDelivered.Add(1)
		d.logger.Info("replay published",
			zap.Int("worker", id),
			zap.String("replayID", job.id),
		)
	}
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		LiveDelivered:   d.liveDelivered.Load(),
		LiveDropped:     d.liveDropped.Load(),
		LiveFailed:      d.liveFailed.Load(),
		ReplayDelivered: d.replayDelivered.Load(),
		ReplayDropped:   d.replayDropped.Load(),
		ReplayFailed:    d.replayFailed.Load(),
	}
}
