package store

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/snappy"
)

// Records are CBOR with deterministic encoding, so the same run always
// produces the same bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// marshalCompressed encodes v and snappy-compresses the result.
func marshalCompressed(v any) ([]byte, error) {
	data, err := marshal(v)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, data), nil
}

func unmarshalCompressed(data []byte, v any) error {
	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("failed to decompress record: %w", err)
	}
	return unmarshal(decompressed, v)
}
