// Package archive keeps finalized replays in a local SQLite database.
//
// Each replay is stored as deterministic CBOR, optionally compressed, next to
// a BLAKE3 digest of the uncompressed bytes. Reads verify the digest.
package archive

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/dgnsrekt/pucks-replay/internal/match"
	"github.com/dgnsrekt/pucks-replay/internal/sink"
)

const schema = `
CREATE TABLE IF NOT EXISTS replays (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	samples     INTEGER NOT NULL,
	compression TEXT NOT NULL,
	raw_size    INTEGER NOT NULL,
	digest      BLOB NOT NULL,
	body        BLOB NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_replays_started_at ON replays (started_at DESC);
`

// Summary describes an archived replay without its samples.
type Summary struct {
	ID          string      `json:"id"`
	StartedAt   int64       `json:"startTime"`
	DurationMs  int64       `json:"duration"`
	Samples     int         `json:"samples"`
	Compression Compression `json:"compression"`
	RawSize     int         `json:"rawSize"`
	StoredSize  int         `json:"storedSize"`
	Digest      string      `json:"digest"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Store persists replays in SQLite.
type Store struct {
	db          *sql.DB
	compression Compression
	logger      *zap.Logger
}

var _ sink.Sink = (*Store)(nil)

// Open opens (creating if needed) the archive database at path.
func Open(path string, compression Compression, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("archive path is required")
	}
	if _, err := ParseCompression(string(compression)); err != nil {
		return nil, err
	}
	if compression == "" {
		compression = CompressionZstd
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, compression: compression, logger: logger}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save archives a replay under id. Saving an id twice returns ErrExists.
func (s *Store) Save(ctx context.Context, id string, record *match.ReplayRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("replay id is required")
	}
	if record == nil {
		return fmt.Errorf("replay record is required")
	}

	raw, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("encode replay %s: %w", id, err)
	}
	body, used, err := compress(raw, s.compression)
	if err != nil {
		return fmt.Errorf("compress replay %s: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO replays (id, started_at, duration_ms, samples, compression, raw_size, digest, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		record.StartedAt,
		record.DurationMs,
		len(record.Samples),
		string(used),
		len(raw),
		digest(raw),
		body,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s", ErrExists, id)
		}
		return fmt.Errorf("insert replay %s: %w", id, err)
	}

	s.logger.Debug("replay archived",
		zap.String("replayID", id),
		zap.Int("samples", len(record.Samples)),
		zap.String("compression", string(used)),
		zap.Int("rawBytes", len(raw)),
		zap.Int("storedBytes", len(body)),
	)
	return nil
}

// Get loads and verifies an archived replay.
func (s *Store) Get(ctx context.Context, id string) (*match.ReplayRecord, error) {
	var (
		compression string
		rawSize     int
		sum         []byte
		body        []byte
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT compression, raw_size, digest, body FROM replays WHERE id = ?`, id)
	if err := row.Scan(&compression, &rawSize, &sum, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("query replay %s: %w", id, err)
	}

	raw, err := decompress(body, Compression(compression), rawSize)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", id, err)
	}
	if !bytes.Equal(digest(raw), sum) {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, id)
	}

	record, err := decodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("decode replay %s: %w", id, err)
	}
	return record, nil
}

// List returns the most recent replays first. A limit of zero or less
// returns every replay.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, samples, compression, raw_size, length(body), digest, created_at
		FROM replays
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list replays: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sm        Summary
			comp      string
			sum       []byte
			createdAt int64
		)
		if err := rows.Scan(&sm.ID, &sm.StartedAt, &sm.DurationMs, &sm.Samples, &comp,
			&sm.RawSize, &sm.StoredSize, &sum, &createdAt); err != nil {
			return nil, fmt.Errorf("scan replay: %w", err)
		}
		sm.Compression = Compression(comp)
		sm.Digest = hex.EncodeToString(sum)
		sm.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replays: %w", err)
	}
	return out, nil
}

// PublishLiveSnapshot is a no-op; only finalized replays are archived.
func (s *Store) PublishLiveSnapshot(context.Context, match.PositionSample) error {
	return nil
}

// PublishReplay archives the replay.
func (s *Store) PublishReplay(ctx context.Context, record *match.ReplayRecord, replayID string) error {
	return s.Save(ctx, replayID, record)
}

func isConstraintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
