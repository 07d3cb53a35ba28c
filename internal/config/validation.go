package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/dgnsrekt/pucks-replay/internal/archive"
)

// InvalidField is a setting that failed validation.
type InvalidField struct {
	Key     string
	Problem string
}

// InvalidRosterEntry is a roster entry that failed validation.
type InvalidRosterEntry struct {
	Index   int
	ID      uint64
	Problem string
}

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	InvalidFields []InvalidField
	InvalidRoster []InvalidRosterEntry
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.InvalidFields) > 0 || len(e.InvalidRoster) > 0
}

func (e *ValidationErrors) field(key, format string, args ...any) {
	e.InvalidFields = append(e.InvalidFields, InvalidField{Key: key, Problem: fmt.Sprintf(format, args...)})
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	if len(e.InvalidFields) > 0 {
		sb.WriteString("\nInvalid settings:\n")
		for _, f := range e.InvalidFields {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", f.Key, f.Problem))
		}
	}

	if len(e.InvalidRoster) > 0 {
		sb.WriteString("\nInvalid roster entries:\n")
		for _, r := range e.InvalidRoster {
			sb.WriteString(fmt.Sprintf("  - roster[%d] (id %d): %s\n", r.Index, r.ID, r.Problem))
		}
	}

	return sb.String()
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	validateUpstream(errs, c)

	if c.Session.ReplayThreshold < 1 {
		errs.field("session.replay_threshold", "must be >= 1")
	}

	if c.Sink.LiveQueue < 1 {
		errs.field("sink.live_queue", "must be >= 1")
	}
	if c.Sink.ReplayQueue < 1 {
		errs.field("sink.replay_queue", "must be >= 1")
	}
	if c.Sink.ReplayWorkers < 1 {
		errs.field("sink.replay_workers", "must be >= 1")
	}
	if c.Sink.Timeout <= 0 {
		errs.field("sink.timeout", "must be positive")
	}

	validateRTDB(errs, c.RTDB)

	if c.Archive.Enabled {
		if strings.TrimSpace(c.Archive.Path) == "" {
			errs.field("archive.path", "is required when archive.enabled=true")
		}
		if _, err := archive.ParseCompression(c.Archive.Compression); err != nil {
			errs.field("archive.compression", "%v (valid: none, zstd, lz4)", err)
		}
	}

	if c.Spool.Enabled && strings.TrimSpace(c.Spool.Directory) == "" {
		errs.field("spool.directory", "is required when spool.enabled=true")
	}

	if err := c.Notify.Validate(); err != nil {
		errs.field("notify", "%v", err)
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		errs.field("server.port", "invalid port %q", c.Server.Port)
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs.field("logging.level", "unknown level %q", c.Logging.Level)
	}

	validateRoster(errs, c)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateUpstream(errs *ValidationErrors, c *Config) {
	u, err := url.Parse(c.Upstream.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		errs.field("upstream.url", "must be a ws:// or wss:// URL, got %q", c.Upstream.URL)
	}
	if c.Upstream.ReconnectDelay <= 0 {
		errs.field("upstream.reconnect_delay", "must be positive")
	}
	if c.Upstream.ReadTimeout > 0 && c.Upstream.PingInterval >= c.Upstream.ReadTimeout {
		errs.field("upstream.ping_interval", "must be shorter than upstream.read_timeout")
	}
}

func validateRTDB(errs *ValidationErrors, c RTDBConfig) {
	if c.ServiceAccount != "" {
		sa, err := ParseServiceAccount(c.ServiceAccount)
		switch {
		case err != nil:
			errs.field("rtdb.service_account", "%v", err)
		case c.URL == "":
			errs.field("rtdb.url", "FIREBASE_CONFIG has no project_id; set FIREBASE_DB_URL")
		case c.UsesServiceAccount() && !sa.CanSign():
			errs.field("rtdb.service_account", "needs client_email and private_key unless FIREBASE_AUTH_TOKEN is set")
		}
	}
	if !c.Enabled() {
		return
	}
	if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		errs.field("rtdb.url", "must be an http(s) URL, got %q", c.URL)
	}
	if c.RatePerSecond < 0 {
		errs.field("rtdb.rate_per_second", "must be >= 0")
	}
	if c.RetryCount < 1 {
		errs.field("rtdb.retry_count", "must be >= 1")
	}
	if c.Timeout <= 0 {
		errs.field("rtdb.timeout", "must be positive")
	}
}

func validateRoster(errs *ValidationErrors, c *Config) {
	seen := make(map[uint64]int)
	for i, e := range c.Roster {
		if strings.TrimSpace(e.Name) == "" {
			errs.InvalidRoster = append(errs.InvalidRoster, InvalidRosterEntry{Index: i, ID: e.ID, Problem: "name is required"})
		}
		if e.Team < 0 {
			errs.InvalidRoster = append(errs.InvalidRoster, InvalidRosterEntry{Index: i, ID: e.ID, Problem: "team must be >= 0"})
		}
		if prev, ok := seen[e.ID]; ok {
			errs.InvalidRoster = append(errs.InvalidRoster, InvalidRosterEntry{
				Index: i, ID: e.ID, Problem: fmt.Sprintf("duplicate of roster[%d]", prev),
			})
			continue
		}
		seen[e.ID] = i
	}
}
