package sctp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	p := &Packet{SourcePort: 5000, DestinationPort: 5000, VerificationTag: 0xdeadbeef}
	p.AddChunk(&ChunkData{
		Begin: true, End: true,
		TSN: 42, StreamID: 3, StreamSeq: 7,
		PPID: PPIDString, UserData: []byte("hello"),
	})

	raw, err := p.Marshal()
	require.NoError(t, err)

	decoded, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, p.SourcePort, decoded.SourcePort)
	assert.Equal(t, p.DestinationPort, decoded.DestinationPort)
	assert.Equal(t, p.VerificationTag, decoded.VerificationTag)

	require.Len(t, decoded.Chunks(), 1)
	data, ok := decoded.Chunks()[0].(*ChunkData)
	require.True(t, ok)
	assert.Equal(t, uint32(42), data.TSN)
	assert.Equal(t, uint16(3), data.StreamID)
	assert.Equal(t, uint16(7), data.StreamSeq)
	assert.Equal(t, PPIDString, data.PPID)
	assert.Equal(t, []byte("hello"), data.UserData)
	assert.True(t, data.Begin)
	assert.True(t, data.End)
}

func TestPacketChecksumMismatch(t *testing.T) {
	p := &Packet{SourcePort: 1, DestinationPort: 2}
	p.AddChunk(&ChunkCookieAck{})
	raw, err := p.Marshal()
	require.NoError(t, err)

	raw[len(raw)-1] ^= 0xFF // corrupt the last chunk byte without touching the checksum

	_, err = Unmarshal(raw)
	require.Error(t, err)
	var mismatch *ChecksumMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestPacketMultipleChunks(t *testing.T) {
	p := &Packet{SourcePort: 5000, DestinationPort: 5000, VerificationTag: 7}
	p.AddChunk(&ChunkSack{CumulativeTSNAck: 10, ARwnd: 1024})
	p.AddChunk(&ChunkHeartbeat{Info: []byte("ping")})

	raw, err := p.Marshal()
	require.NoError(t, err)

	decoded, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Len(t, decoded.Chunks(), 2)

	sack, ok := decoded.Chunks()[0].(*ChunkSack)
	require.True(t, ok)
	assert.Equal(t, uint32(10), sack.CumulativeTSNAck)

	hb, ok := decoded.Chunks()[1].(*ChunkHeartbeat)
	require.True(t, ok)
	assert.Equal(t, []byte("ping"), hb.Info)
	assert.False(t, hb.IsAck())
}

func TestUnmarshalSkipsUnrecognizedChunkButKeepsTheRest(t *testing.T) {
	p := &Packet{SourcePort: 5000, DestinationPort: 5000, VerificationTag: 7}
	p.AddChunk(&ChunkSack{CumulativeTSNAck: 10, ARwnd: 1024})
	raw, err := p.Marshal()
	require.NoError(t, err)

	// Splice in a well-formed header for an unrecognized chunk type (the
	// FORWARD-TSN value, 0xC0) with a 4-byte body, before re-signing the
	// checksum: spec.md §7 says an undecodable chunk is dropped silently
	// once the packet as a whole validates, not treated as fatal.
	unknown := make([]byte, 8)
	unknown[0] = 0xC0
	unknown[3] = 8 // chunk length including header
	raw = append(raw, unknown...)
	binary.LittleEndian.PutUint32(raw[8:12], packetChecksum(raw))

	decoded, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Len(t, decoded.Chunks(), 1)
	sack, ok := decoded.Chunks()[0].(*ChunkSack)
	require.True(t, ok)
	assert.Equal(t, uint32(10), sack.CumulativeTSNAck)
}

func TestInitAckCookieRoundTrip(t *testing.T) {
	ack := &ChunkInitAck{
		initCommon: initCommon{
			InitiateTag: 99, ARwnd: 4096,
			OutboundStreams: 10, InboundStreams: 10,
			InitialTSN: 555,
		},
		Cookie: []byte("opaque-cookie-bytes"),
	}
	raw, err := ack.marshal()
	require.NoError(t, err)

	decoded := &ChunkInitAck{}
	require.NoError(t, decoded.unmarshal(raw))
	assert.Equal(t, uint32(99), decoded.InitiateTag)
	assert.Equal(t, uint32(555), decoded.InitialTSN)
	assert.Equal(t, []byte("opaque-cookie-bytes"), decoded.Cookie)
}
