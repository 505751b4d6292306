package sctp

import "encoding/binary"

const heartbeatParamHeaderSize = 4
const heartbeatInfoParamType uint16 = 1

// ChunkHeartbeat covers both HEARTBEAT and HEARTBEAT-ACK: an opaque info
// parameter that is echoed verbatim, spec.md §4.3/§4.4.
type ChunkHeartbeat struct {
	isAck bool
	Info  []byte
}

// NewHeartbeat builds an outbound HEARTBEAT carrying info.
func NewHeartbeat(info []byte) *ChunkHeartbeat { return &ChunkHeartbeat{Info: info} }

// NewHeartbeatAck builds the echo response to a received HEARTBEAT.
func NewHeartbeatAck(info []byte) *ChunkHeartbeat {
	return &ChunkHeartbeat{isAck: true, Info: info}
}

// IsAck reports whether this is a HEARTBEAT-ACK.
func (c *ChunkHeartbeat) IsAck() bool { return c.isAck }

func (c *ChunkHeartbeat) chunkType() ChunkType {
	if c.isAck {
		return ctHeartbeatAck
	}
	return ctHeartbeat
}

func (c *ChunkHeartbeat) valueLength() int {
	paramLen := heartbeatParamHeaderSize + len(c.Info)
	return paramLen + getPadding(paramLen)
}

func (c *ChunkHeartbeat) marshal() ([]byte, error) {
	paramLen := heartbeatParamHeaderSize + len(c.Info)
	pad := getPadding(paramLen)
	total := chunkHeaderSize + paramLen + pad
	raw := make([]byte, total)
	encodeChunkHeader(raw, c.chunkType(), 0, uint16(chunkHeaderSize+paramLen))

	p := raw[chunkHeaderSize:]
	binary.BigEndian.PutUint16(p[0:2], heartbeatInfoParamType)
	binary.BigEndian.PutUint16(p[2:4], uint16(paramLen))
	copy(p[4:4+len(c.Info)], c.Info)
	return raw, nil
}

func (c *ChunkHeartbeat) unmarshal(raw []byte) error {
	typ, _, length, err := decodeChunkHeader(raw)
	if err != nil {
		return err
	}
	switch typ {
	case ctHeartbeat:
		c.isAck = false
	case ctHeartbeatAck:
		c.isAck = true
	default:
		return &InvalidFormatErr{Reason: "not a HEARTBEAT chunk"}
	}
	body := raw[chunkHeaderSize:length]
	if len(body) < heartbeatParamHeaderSize {
		return &InsufficientDataErr{Expected: heartbeatParamHeaderSize, Actual: len(body)}
	}
	pLen := int(binary.BigEndian.Uint16(body[2:4]))
	if pLen < heartbeatParamHeaderSize || pLen > len(body) {
		return &InvalidFormatErr{Reason: "malformed heartbeat info parameter"}
	}
	c.Info = append([]byte{}, body[4:pLen]...)
	return nil
}
