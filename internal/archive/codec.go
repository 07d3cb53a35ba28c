package archive

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/dgnsrekt/pucks-replay/internal/match"
)

// encMode uses Core Deterministic Encoding so the same replay always
// produces the same bytes, and therefore the same digest.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("archive: CBOR encoder initialization failed: " + err.Error())
	}
}

func encodeRecord(record *match.ReplayRecord) ([]byte, error) {
	return encMode.Marshal(record)
}

func decodeRecord(data []byte) (*match.ReplayRecord, error) {
	var record match.ReplayRecord
	if err := cbor.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	if record.Players == nil {
		record.Players = map[string]any{}
	}
	return &record, nil
}

func digest(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}
