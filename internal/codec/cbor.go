package codec

import "github.com/fxamacker/cbor/v2"

// CBORCodec encodes envelopes with CBOR. Payloads inside the envelope stay
// JSON-encoded regardless of the envelope codec, so the two codecs are
// interchangeable frame for frame.
type CBORCodec struct{}

func NewCBOR() *CBORCodec { return &CBORCodec{} }

func (*CBORCodec) Marshal(v any) ([]byte, error) { return cbor.Marshal(v) }

func (*CBORCodec) Unmarshal(data []byte, dst any) error { return cbor.Unmarshal(data, dst) }
