package live

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encoder converts hub events to the protobuf wire format
// (google.protobuf.Struct inside google.protobuf.Any, Zstd-compressed).
type Encoder struct {
	zstdEncoder *zstd.Encoder
}

// NewEncoder creates a new Encoder with Zstd compression.
func NewEncoder() (*Encoder, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Encoder{zstdEncoder: enc}, nil
}

// EncodeProtobuf encodes an event for protobuf viewers.
func (e *Encoder) EncodeProtobuf(ev *Event) ([]byte, error) {
	st, err := structpb.NewStruct(ev.fields())
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	anyMsg, err := anypb.New(st)
	if err != nil {
		return nil, fmt.Errorf("wrap struct: %w", err)
	}
	raw, err := proto.Marshal(anyMsg)
	if err != nil {
		return nil, fmt.Errorf("marshal any: %w", err)
	}
	return e.zstdEncoder.EncodeAll(raw, nil), nil
}
