// Package frame turns raw telemetry messages into typed events.
package frame

import (
	"github.com/dgnsrekt/pucks-replay/internal/match"
	"github.com/dgnsrekt/pucks-replay/internal/registry"
	"github.com/dgnsrekt/pucks-replay/internal/wire"
)

// minPlayerEntrySize is the smallest encoding of one player entry: 1 byte id + two floats.
const minPlayerEntrySize = 1 + 2*wire.Float32Size

// Split separates a message into its code byte and payload.
func Split(message []byte) (byte, []byte, error) {
	if len(message) == 0 {
		return 0, nil, &wire.FieldError{Field: "code", Offset: 0, Err: wire.ErrTruncated}
	}
	return message[0], message[1:], nil
}

// Decode interprets payload according to code. It never mutates payload or the registry.
func Decode(code byte, payload []byte, clockOffsetMs int64, entities registry.Lookuper) (Event, error) {
	switch code {
	case CodePositionUpdate:
		return decodePositionUpdate(payload, clockOffsetMs, entities)
	case CodeGoal, CodeReset:
		return SessionBoundary{Reason: BoundaryReason(code)}, nil
	default:
		return Unhandled{MsgCode: code, Size: len(payload)}, nil
	}
}

// DecodeMessage is Split followed by Decode.
func DecodeMessage(message []byte, clockOffsetMs int64, entities registry.Lookuper) (Event, error) {
	code, payload, err := Split(message)
	if err != nil {
		return nil, err
	}
	return Decode(code, payload, clockOffsetMs, entities)
}

func decodePositionUpdate(payload []byte, clockOffsetMs int64, entities registry.Lookuper) (Event, error) {
	r := wire.NewReader(payload)

	ballX, err := r.Float32("ball.x")
	if err != nil {
		return nil, err
	}
	ballZ, err := r.Float32("ball.z")
	if err != nil {
		return nil, err
	}
	count, err := r.VarInt("playerCount")
	if err != nil {
		return nil, err
	}

	// A malformed count cannot reserve more entries than the payload could hold.
	capacity := r.Remaining() / minPlayerEntrySize
	if count < uint64(capacity) {
		capacity = int(count)
	}

	update := PositionUpdate{
		Sample: match.PositionSample{
			OffsetMs: clockOffsetMs,
			Players:  make([]match.PlayerPosition, 0, capacity),
			Ball:     match.Ball{X: ballX, Z: ballZ},
		},
	}

	for i := uint64(0); i < count; i++ {
		id, err := r.VarInt("player.id")
		if err != nil {
			return nil, err
		}
		x, err := r.Float32("player.x")
		if err != nil {
			return nil, err
		}
		z, err := r.Float32("player.z")
		if err != nil {
			return nil, err
		}

		info, ok := entities.Lookup(id)
		if !ok {
			update.Unresolved++
			continue
		}
		update.Sample.Players = append(update.Sample.Players, match.PlayerPosition{
			ID:   id,
			Name: info.Name,
			Team: info.Team,
			X:    x,
			Z:    z,
		})
	}

	return update, nil
}
