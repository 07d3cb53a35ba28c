package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/pucks-replay/internal/match"
)

// FormatReplayMessage creates the notification body for a finalized replay.
func FormatReplayMessage(replayID string, record *match.ReplayRecord) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Replay: %s\n", replayID))
	sb.WriteString(fmt.Sprintf("Started: %s\n", record.StartTime().UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Duration: %s\n", (time.Duration(record.DurationMs) * time.Millisecond).Round(time.Second)))
	sb.WriteString(fmt.Sprintf("Samples: %d", len(record.Samples)))

	// Distinct players seen across the session
	seen := make(map[uint64]struct{})
	for _, sample := range record.Samples {
		for _, p := range sample.Players {
			seen[p.ID] = struct{}{}
		}
	}
	if len(seen) > 0 {
		sb.WriteString(fmt.Sprintf("\nPlayers: %d", len(seen)))
	}

	return sb.String()
}
