// Package spool writes finalized replays as JSON files.
package spool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dgnsrekt/pucks-replay/internal/match"
	"github.com/dgnsrekt/pucks-replay/internal/sink"
)

// Spool writes one <id>.json file per replay under a directory.
type Spool struct {
	dir    string
	logger *zap.Logger
}

var _ sink.Sink = (*Spool)(nil)

func New(dir string, logger *zap.Logger) *Spool {
	return &Spool{dir: dir, logger: logger}
}

func (s *Spool) Dir() string {
	return s.dir
}

// Path returns the final file path for a replay id.
func (s *Spool) Path(replayID string) string {
	return filepath.Join(s.dir, replayID+".json")
}

// Write stores the record atomically: it is written to a temp file in the
// same directory and renamed into place.
func (s *Spool) Write(ctx context.Context, replayID string, record *match.ReplayRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if replayID == "" || strings.ContainsAny(replayID, `/\`) || replayID == "." || replayID == ".." {
		return 0, fmt.Errorf("invalid replay id: %q", replayID)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("encoding replay: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return 0, fmt.Errorf("creating directories: %w", err)
	}

	destPath := s.Path(replayID)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	_, err = f.Write(data)
	if syncErr := f.Sync(); syncErr != nil && err == nil {
		err = syncErr
	}
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}

	return int64(len(data)), nil
}

// Read loads a spooled replay.
func (s *Spool) Read(replayID string) (*match.ReplayRecord, error) {
	data, err := os.ReadFile(s.Path(replayID))
	if err != nil {
		return nil, err
	}
	var record match.ReplayRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding replay %s: %w", replayID, err)
	}
	return &record, nil
}

// CleanupTemp removes temp files left behind by an interrupted write.
func (s *Spool) CleanupTemp() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json.tmp"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return err
		}
		s.logger.Debug("removed stale spool file", zap.String("path", m))
	}
	return nil
}

func (s *Spool) PublishLiveSnapshot(context.Context, match.PositionSample) error {
	return nil
}

func (s *Spool) PublishReplay(ctx context.Context, record *match.ReplayRecord, replayID string) error {
	size, err := s.Write(ctx, replayID, record)
	if err != nil {
		return err
	}
	s.logger.Debug("replay spooled",
		zap.String("replayID", replayID),
		zap.String("path", s.Path(replayID)),
		zap.Int64("bytes", size),
	)
	return nil
}
