package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencrm/collab.go/pkg/protocol"
)

func TestCodecsRoundTripEnvelope(t *testing.T) {
	msg, err := protocol.NewMessage(protocol.PresenceUpdate, "", &protocol.PresencePayload{
		Status: "busy",
	}, "u1")
	require.NoError(t, err)

	codecs := map[string]interface {
		Marshaler
		Unmarshaler
	}{
		"json": NewJSON(),
		"cbor": NewCBOR(),
	}

	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			data, err := c.Marshal(msg)
			require.NoError(t, err)

			var decoded protocol.Message
			require.NoError(t, c.Unmarshal(data, &decoded))

			assert.Equal(t, msg.Type, decoded.Type)
			assert.Equal(t, msg.SenderID, decoded.SenderID)

			// The payload stays JSON inside the envelope for both codecs.
			payload, err := protocol.DecodePayload(&decoded)
			require.NoError(t, err)
			assert.Equal(t, &protocol.PresencePayload{Status: "busy"}, payload)
		})
	}
}
