// Package codec abstracts the envelope encoding used on the wire.
// JSON is the default; a CBOR codec is available for deployments that
// negotiate a binary subprotocol.
package codec

import "encoding/json"

type Marshaler interface {
	Marshal(v any) ([]byte, error)
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
}

// JSONCodec encodes envelopes with encoding/json.
type JSONCodec struct{}

func NewJSON() *JSONCodec { return &JSONCodec{} }

func (*JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (*JSONCodec) Unmarshal(data []byte, dst any) error { return json.Unmarshal(data, dst) }
