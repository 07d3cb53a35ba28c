package live

import (
	"encoding/json"

	"github.com/dgnsrekt/pucks-replay/internal/match"
)

// Viewer subprotocols. JSON is used when the viewer asks for neither.
const (
	SubprotocolJSON     = "json.live.v1"
	SubprotocolProtobuf = "protobuf.live.v1"
)

const (
	protocolJSON     = "json"
	protocolProtobuf = "protobuf"
)

// Event types sent to viewers.
const (
	EventConnected = "connected"
	EventSnapshot  = "snapshot"
	EventReplay    = "replay"
	EventPong      = "pong"
)

// Event is one downstream message. Data is already in its JSON-compatible
// map form so both protocols render the same content.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func (ev *Event) fields() map[string]any {
	out := map[string]any{"type": ev.Type}
	if ev.Data != nil {
		out["data"] = ev.Data
	}
	return out
}

func (ev *Event) encodeJSON() ([]byte, error) {
	return json.Marshal(ev)
}

func connectedEvent(connID, protocol string) *Event {
	return &Event{Type: EventConnected, Data: map[string]any{
		"connectionId": connID,
		"protocol":     protocol,
	}}
}

func pongEvent() *Event {
	return &Event{Type: EventPong}
}

func snapshotEvent(sample match.PositionSample) *Event {
	players := make([]any, 0, len(sample.Players))
	for _, p := range sample.Players {
		players = append(players, map[string]any{
			"id":   p.ID,
			"name": p.Name,
			"team": p.Team,
			"x":    match.NullableFloat(p.X),
			"z":    match.NullableFloat(p.Z),
		})
	}
	return &Event{Type: EventSnapshot, Data: map[string]any{
		"t":       sample.OffsetMs,
		"players": players,
		"ball": map[string]any{
			"x": match.NullableFloat(sample.Ball.X),
			"z": match.NullableFloat(sample.Ball.Z),
		},
	}}
}

// replayEvent announces a finalized replay without its samples.
func replayEvent(record *match.ReplayRecord, replayID string) *Event {
	return &Event{Type: EventReplay, Data: map[string]any{
		"id":        replayID,
		"samples":   len(record.Samples),
		"startTime": record.StartedAt,
		"duration":  record.DurationMs,
	}}
}

// protocolFor maps the subprotocol chosen during the upgrade to a wire
// protocol.
func protocolFor(subprotocol string) string {
	if subprotocol == SubprotocolProtobuf {
		return protocolProtobuf
	}
	return protocolJSON
}

// parseViewerMessage recognises the only upstream message viewers may send.
func parseViewerMessage(data []byte) (isPing bool) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return false
	}
	return msg.Type == "ping"
}
