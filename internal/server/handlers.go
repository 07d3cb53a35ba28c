package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgnsrekt/pucks-replay/internal/archive"
	"github.com/dgnsrekt/pucks-replay/internal/ingest"
	"github.com/dgnsrekt/pucks-replay/internal/match"
	"github.com/dgnsrekt/pucks-replay/internal/sink"
	"github.com/dgnsrekt/pucks-replay/internal/upstream"
)

const (
	defaultReplayLimit = 50
	maxReplayLimit     = 1000
)

type IngestStats interface {
	Stats() ingest.Snapshot
}

type SinkStats interface {
	Stats() sink.Stats
}

type UpstreamStats interface {
	Stats() upstream.Stats
}

type ReplayStore interface {
	List(ctx context.Context, limit int) ([]archive.Summary, error)
	Get(ctx context.Context, id string) (*match.ReplayRecord, error)
}

type LiveHub interface {
	HandleWS(w http.ResponseWriter, r *http.Request)
	Viewers() int
}

type EventStream interface {
	HandleSSE(w http.ResponseWriter, r *http.Request)
	Subscribers() int
}

// Deps are the components the HTTP surface reports on. Nil members disable
// the matching endpoints or health sections.
type Deps struct {
	Ingest   IngestStats
	Sink     SinkStats
	Upstream UpstreamStats
	Replays  ReplayStore
	Live     LiveHub
	Events   EventStream
}

type Server struct {
	ingest    IngestStats
	sink      SinkStats
	upstream  UpstreamStats
	replays   ReplayStore
	live      LiveHub
	events    EventStream
	startedAt time.Time
	logger    *zap.Logger
}

func NewServer(deps Deps, logger *zap.Logger) *Server {
	return &Server{
		ingest:    deps.Ingest,
		sink:      deps.Sink,
		upstream:  deps.Upstream,
		replays:   deps.Replays,
		live:      deps.Live,
		events:    deps.Events,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status   string           `json:"status"`
	Uptime   string           `json:"uptime"`
	Upstream *upstream.Stats  `json:"upstream,omitempty"`
	Ingest   *ingest.Snapshot `json:"ingest,omitempty"`
	Sink     *sink.Stats      `json:"sink,omitempty"`
	Viewers  *int             `json:"viewers,omitempty"`
	// Subscribers counts SSE clients on /live/events.
	Subscribers *int `json:"subscribers,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetRoot answers the hosting platform's keep-alive probe.
func (s *Server) GetRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Bot is Running"))
}

// GetHealth reports component counters. Status is "degraded" while the
// upstream connection is down.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.upstream != nil {
		st := s.upstream.Stats()
		resp.Upstream = &st
		if !st.Connected {
			resp.Status = "degraded"
		}
	}
	if s.ingest != nil {
		st := s.ingest.Stats()
		resp.Ingest = &st
	}
	if s.sink != nil {
		st := s.sink.Stats()
		resp.Sink = &st
	}
	if s.live != nil {
		n := s.live.Viewers()
		resp.Viewers = &n
	}
	if s.events != nil {
		n := s.events.Subscribers()
		resp.Subscribers = &n
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// ListReplays returns archived replay summaries, newest first.
func (s *Server) ListReplays(w http.ResponseWriter, r *http.Request) {
	if s.replays == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "replay archive is disabled"})
		return
	}

	limit := defaultReplayLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxReplayLimit {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	summaries, err := s.replays.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list replays", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list replays"})
		return
	}
	if summaries == nil {
		summaries = []archive.Summary{}
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

// GetReplay returns one archived replay in the same JSON shape the remote
// store receives.
func (s *Server) GetReplay(w http.ResponseWriter, r *http.Request) {
	if s.replays == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "replay archive is disabled"})
		return
	}

	id := chi.URLParam(r, "id")
	record, err := s.replays.Get(r.Context(), id)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, record)
	case errors.Is(err, archive.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "replay not found: " + id})
	default:
		s.logger.Error("failed to load replay", zap.String("replayID", id), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load replay"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
