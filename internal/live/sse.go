package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/dgnsrekt/pucks-replay/internal/match"
	"github.com/dgnsrekt/pucks-replay/internal/sink"
)

// sseClient represents a connected SSE subscriber.
type sseClient struct {
	dataCh chan []byte
	doneCh chan struct{}
}

// Stream pushes the same events as the Hub to Server-Sent Events
// subscribers, for viewers that cannot open a websocket.
type Stream struct {
	logger *zap.Logger

	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	sequence uint64
	last     *Event // most recent snapshot, sent to new subscribers
	clients  map[*sseClient]bool
}

var _ sink.Sink = (*Stream)(nil)

func NewStream(logger *zap.Logger) *Stream {
	return &Stream{
		logger:  logger,
		done:    make(chan struct{}),
		clients: make(map[*sseClient]bool),
	}
}

// HandleSSE streams events until the request is cancelled.
func (s *Stream) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := &sseClient{
		dataCh: make(chan []byte, sendBufferSize),
		doneCh: make(chan struct{}),
	}

	initial := s.addClient(client)
	defer s.removeClient(client)

	s.logger.Debug("sse subscriber connected", zap.String("remoteAddr", r.RemoteAddr))

	// Headers go out immediately so subscribers see the stream open.
	w.WriteHeader(http.StatusOK)
	if initial != nil {
		if _, err := w.Write(initial); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse subscriber disconnected", zap.String("remoteAddr", r.RemoteAddr))
			return
		case <-client.doneCh:
			return
		case <-s.done:
			return
		case eventData := <-client.dataCh:
			if _, err := w.Write(eventData); err != nil {
				s.logger.Debug("failed to write to subscriber", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

// addClient registers a subscriber and returns the latest snapshot, if any,
// formatted for immediate delivery.
func (s *Stream) addClient(client *sseClient) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
	if s.last == nil {
		return nil
	}
	data, err := formatEvent(s.last, s.sequence)
	if err != nil {
		return nil
	}
	return data
}

func (s *Stream) removeClient(client *sseClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, client)
	close(client.doneCh)
}

// Close ends every open stream. It is registered as an http.Server shutdown
// hook since Shutdown does not cancel in-flight requests.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Subscribers returns the number of connected SSE subscribers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Stream) broadcast(ev *Event) error {
	s.mu.Lock()
	s.sequence++
	seq := s.sequence
	if ev.Type == EventSnapshot {
		s.last = ev
	}
	clients := make([]*sseClient, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	if len(clients) == 0 {
		return nil
	}

	eventData, err := formatEvent(ev, seq)
	if err != nil {
		return err
	}

	for _, client := range clients {
		select {
		case client.dataCh <- eventData:
		default:
			// Channel full, subscriber is slow
			s.logger.Debug("subscriber channel full, dropping event", zap.String("type", ev.Type))
		}
	}
	return nil
}

func formatEvent(ev *Event, seq uint64) ([]byte, error) {
	jsonData, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\nid: %d\ndata: %s\n\n", ev.Type, seq, jsonData)), nil
}

func (s *Stream) PublishLiveSnapshot(_ context.Context, sample match.PositionSample) error {
	return s.broadcast(snapshotEvent(sample))
}

func (s *Stream) PublishReplay(_ context.Context, record *match.ReplayRecord, replayID string) error {
	return s.broadcast(replayEvent(record, replayID))
}
