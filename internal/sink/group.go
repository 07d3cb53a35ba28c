package sink

import (
	"context"
	"sync"

	"github.com/dgnsrekt/pucks-replay/internal/match"
	"github.com/dgnsrekt/pucks-replay/internal/session"
)

// Group publishes to several dispatchers, each with its own queues and
// workers, so a slow target in one cannot delay the others.
type Group struct {
	dispatchers []*Dispatcher
	done        chan struct{}
}

var _ session.Publisher = (*Group)(nil)

func NewGroup(dispatchers ...*Dispatcher) *Group {
	return &Group{
		dispatchers: dispatchers,
		done:        make(chan struct{}),
	}
}

func (g *Group) PublishLiveSnapshot(sample match.PositionSample) {
	for _, d := range g.dispatchers {
		d.PublishLiveSnapshot(sample)
	}
}

func (g *Group) PublishReplay(record *match.ReplayRecord, replayID string) {
	for _, d := range g.dispatchers {
		d.PublishReplay(record, replayID)
	}
}

// Run runs every dispatcher and returns once ctx is cancelled and all of
// them have drained.
func (g *Group) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, d := range g.dispatchers {
		wg.Add(1)
		go func(d *Dispatcher) {
			defer wg.Done()
			d.Run(ctx)
		}(d)
	}
	<-ctx.Done()
	wg.Wait()
	close(g.done)
}

// Done is closed once Run has returned.
func (g *Group) Done() <-chan struct{} {
	return g.done
}

// Stats sums the counters of every dispatcher.
func (g *Group) Stats() Stats {
	var total Stats
	for _, d := range g.dispatchers {
		st := d.Stats()
		total.LiveDelivered += st.LiveDelivered
		total.LiveDropped += st.LiveDropped
		total.LiveFailed += st.LiveFailed
		total.ReplayDelivered += st.ReplayDelivered
		total.ReplayDropped += st.ReplayDropped
		total.ReplayFailed += st.ReplayFailed
	}
	return total
}
