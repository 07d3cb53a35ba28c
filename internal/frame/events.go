package frame

import (
	"fmt"

	"github.com/dgnsrekt/pucks-replay/internal/match"
)

// Message codes routed by the decoder.
const (
	CodePositionUpdate byte = 6
	CodeGoal           byte = 11
	CodeReset          byte = 12
)

// Join codes are reserved by the game for player lifecycle messages. Their
// payload layout is not decoded here; they surface as Unhandled.
var ReservedJoinCodes = []byte{2, 3, 8}

// Event is the typed result of decoding one message.
type Event interface {
	Code() byte
}

// PositionUpdate carries the sample produced from a code 6 message.
type PositionUpdate struct {
	Sample match.PositionSample `json:"sample"`
	// Unresolved counts player entries dropped because their id was not registered.
	Unresolved int `json:"unresolved"`
}

func (PositionUpdate) Code() byte { return CodePositionUpdate }

// BoundaryReason distinguishes goal from reset. The session lifecycle treats them the same.
type BoundaryReason byte

const (
	BoundaryGoal  = BoundaryReason(CodeGoal)
	BoundaryReset = BoundaryReason(CodeReset)
)

func (r BoundaryReason) String() string {
	switch r {
	case BoundaryGoal:
		return "goal"
	case BoundaryReset:
		return "reset"
	default:
		return fmt.Sprintf("unknown(%d)", byte(r))
	}
}

// SessionBoundary ends the current session.
type SessionBoundary struct {
	Reason BoundaryReason `json:"reason"`
}

func (b SessionBoundary) Code() byte { return byte(b.Reason) }

// Unhandled is any message code the decoder does not interpret.
type Unhandled struct {
	MsgCode byte `json:"code"`
	Size    int  `json:"size"`
}

func (u Unhandled) Code() byte { return u.MsgCode }
