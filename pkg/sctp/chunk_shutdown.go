package sctp

import "encoding/binary"

// ChunkShutdown carries the cumulative TSN ack observed so far, RFC 4960
// §3.3.8 — part of the graceful-close sequence named in spec.md §4.4's
// state list but not detailed in the distillation (SPEC_FULL.md §5).
type ChunkShutdown struct {
	CumulativeTSNAck uint32
}

func (c *ChunkShutdown) chunkType() ChunkType { return ctShutdown }
func (c *ChunkShutdown) valueLength() int     { return 4 }

func (c *ChunkShutdown) marshal() ([]byte, error) {
	raw := make([]byte, chunkHeaderSize+4)
	encodeChunkHeader(raw, ctShutdown, 0, uint16(len(raw)))
	binary.BigEndian.PutUint32(raw[chunkHeaderSize:], c.CumulativeTSNAck)
	return raw, nil
}

func (c *ChunkShutdown) unmarshal(raw []byte) error {
	typ, _, length, err := decodeChunkHeader(raw)
	if err != nil {
		return err
	}
	if typ != ctShutdown {
		return &InvalidFormatErr{Reason: "not a SHUTDOWN chunk"}
	}
	if length < chunkHeaderSize+4 {
		return &InsufficientDataErr{Expected: chunkHeaderSize + 4, Actual: int(length)}
	}
	c.CumulativeTSNAck = binary.BigEndian.Uint32(raw[chunkHeaderSize:length])
	return nil
}

// ChunkShutdownAck has no value.
type ChunkShutdownAck struct{}

func (c *ChunkShutdownAck) chunkType() ChunkType { return ctShutdownAck }
func (c *ChunkShutdownAck) valueLength() int     { return 0 }

func (c *ChunkShutdownAck) marshal() ([]byte, error) {
	raw := make([]byte, chunkHeaderSize)
	encodeChunkHeader(raw, ctShutdownAck, 0, chunkHeaderSize)
	return raw, nil
}

func (c *ChunkShutdownAck) unmarshal(raw []byte) error {
	typ, _, _, err := decodeChunkHeader(raw)
	if err != nil {
		return err
	}
	if typ != ctShutdownAck {
		return &InvalidFormatErr{Reason: "not a SHUTDOWN-ACK chunk"}
	}
	return nil
}

// ChunkShutdownComplete has no value; it closes the four-way shutdown
// exchange (RFC 4960 §9.2).
type ChunkShutdownComplete struct{}

func (c *ChunkShutdownComplete) chunkType() ChunkType { return ctShutdownComplete }
func (c *ChunkShutdownComplete) valueLength() int     { return 0 }

func (c *ChunkShutdownComplete) marshal() ([]byte, error) {
	raw := make([]byte, chunkHeaderSize)
	encodeChunkHeader(raw, ctShutdownComplete, 0, chunkHeaderSize)
	return raw, nil
}

func (c *ChunkShutdownComplete) unmarshal(raw []byte) error {
	typ, _, _, err := decodeChunkHeader(raw)
	if err != nil {
		return err
	}
	if typ != ctShutdownComplete {
		return &InvalidFormatErr{Reason: "not a SHUTDOWN-COMPLETE chunk"}
	}
	return nil
}
