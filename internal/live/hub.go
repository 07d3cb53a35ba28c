// Package live fans live position snapshots out to websocket viewers.
package live

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dgnsrekt/pucks-replay/internal/match"
	"github.com/dgnsrekt/pucks-replay/internal/sink"
)

// directMessage is addressed to a single viewer.
type directMessage struct {
	client  *Client
	payload []byte
}

// Hub manages viewer connections and broadcasts events to all of them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event
	direct     chan directMessage
	done       chan struct{}
	encoder    *Encoder
	count      atomic.Int64
	logger     *zap.Logger
}

var _ sink.Sink = (*Hub)(nil)

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) (*Hub, error) {
	enc, err := NewEncoder()
	if err != nil {
		return nil, err
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event, 256),
		direct:     make(chan directMessage, 16),
		done:       make(chan struct{}),
		encoder:    enc,
		logger:     logger,
	}, nil
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("live hub shutting down", zap.Int("viewers", len(h.clients)))
			h.shutdown()
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.logger.Debug("viewer registered",
				zap.String("connID", client.connID),
				zap.String("protocol", client.protocol),
			)

		case client := <-h.unregister:
			h.remove(client)

		case ev := <-h.broadcast:
			h.fanOut(ev)

		case msg := <-h.direct:
			if _, ok := h.clients[msg.client]; ok && msg.payload != nil {
				select {
				case msg.client.send <- msg.payload:
				default:
				}
			}
		}
	}
}

// fanOut encodes the event at most once per protocol and queues it on every
// viewer. Viewers whose buffer is full are disconnected.
func (h *Hub) fanOut(ev *Event) {
	if len(h.clients) == 0 {
		return
	}

	var (
		jsonMsg, protoMsg []byte
		jsonErr, protoErr error
	)
	for client := range h.clients {
		var msg []byte
		switch client.protocol {
		case protocolProtobuf:
			if protoMsg == nil && protoErr == nil {
				protoMsg, protoErr = h.encoder.EncodeProtobuf(ev)
				if protoErr != nil {
					h.logger.Error("failed to encode protobuf event",
						zap.String("type", ev.Type),
						zap.Error(protoErr),
					)
				}
			}
			msg = protoMsg
		default:
			if jsonMsg == nil && jsonErr == nil {
				jsonMsg, jsonErr = ev.encodeJSON()
				if jsonErr != nil {
					h.logger.Error("failed to encode JSON event",
						zap.String("type", ev.Type),
						zap.Error(jsonErr),
					)
				}
			}
			msg = jsonMsg
		}
		if msg == nil {
			continue
		}

		select {
		case client.send <- msg:
		default:
			h.logger.Debug("viewer too slow, disconnecting", zap.String("connID", client.connID))
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.count.Store(int64(len(h.clients)))
	h.logger.Debug("viewer unregistered", zap.String("connID", client.connID))
}

// shutdown closes all viewer connections.
func (h *Hub) shutdown() {
	close(h.done)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.count.Store(0)
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	return int(h.count.Load())
}

// Broadcast queues an event for every viewer. It returns ctx.Err() if the
// broadcast buffer stays full until ctx is done, and nil once the hub has
// stopped.
func (h *Hub) Broadcast(ctx context.Context, ev *Event) error {
	select {
	case h.broadcast <- ev:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) PublishLiveSnapshot(ctx context.Context, sample match.PositionSample) error {
	return h.Broadcast(ctx, snapshotEvent(sample))
}

func (h *Hub) PublishReplay(ctx context.Context, record *match.ReplayRecord, replayID string) error {
	return h.Broadcast(ctx, replayEvent(record, replayID))
}
