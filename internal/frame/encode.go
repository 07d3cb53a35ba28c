package frame

import "github.com/dgnsrekt/pucks-replay/internal/wire"

// RawPlayer is a player entry as it appears on the wire, before registry resolution.
type RawPlayer struct {
	ID   uint64
	X, Z float32
}

// EncodePositionUpdate builds a complete code 6 message.
func EncodePositionUpdate(ballX, ballZ float32, players []RawPlayer) []byte {
	buf := []byte{CodePositionUpdate}
	buf = wire.AppendFloat32(buf, ballX)
	buf = wire.AppendFloat32(buf, ballZ)
	buf = wire.AppendVarInt(buf, uint64(len(players)))
	for _, p := range players {
		buf = wire.AppendVarInt(buf, p.ID)
		buf = wire.AppendFloat32(buf, p.X)
		buf = wire.AppendFloat32(buf, p.Z)
	}
	return buf
}
