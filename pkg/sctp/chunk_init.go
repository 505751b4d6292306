package sctp

import "encoding/binary"

const initCommonSize = 16

// initCommon is the fixed prefix shared by INIT and INIT-ACK, spec.md
// §4.3: initiateTag, a_rwnd, outboundStreams, inboundStreams, initialTSN.
type initCommon struct {
	InitiateTag     uint32
	ARwnd           uint32
	OutboundStreams uint16
	InboundStreams  uint16
	InitialTSN      uint32
}

func (c *initCommon) marshalInto(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], c.InitiateTag)
	binary.BigEndian.PutUint32(buf[4:8], c.ARwnd)
	binary.BigEndian.PutUint16(buf[8:10], c.OutboundStreams)
	binary.BigEndian.PutUint16(buf[10:12], c.InboundStreams)
	binary.BigEndian.PutUint32(buf[12:16], c.InitialTSN)
}

func (c *initCommon) unmarshalFrom(buf []byte) error {
	if len(buf) < initCommonSize {
		return &InsufficientDataErr{Expected: initCommonSize, Actual: len(buf)}
	}
	c.InitiateTag = binary.BigEndian.Uint32(buf[0:4])
	c.ARwnd = binary.BigEndian.Uint32(buf[4:8])
	c.OutboundStreams = binary.BigEndian.Uint16(buf[8:10])
	c.InboundStreams = binary.BigEndian.Uint16(buf[10:12])
	c.InitialTSN = binary.BigEndian.Uint32(buf[12:16])
	return nil
}

// ChunkInit is the INIT chunk (RFC 4960 §3.3.2).
type ChunkInit struct {
	initCommon
}

func (c *ChunkInit) chunkType() ChunkType { return ctInit }
func (c *ChunkInit) valueLength() int     { return initCommonSize }

func (c *ChunkInit) marshal() ([]byte, error) {
	raw := make([]byte, chunkHeaderSize+initCommonSize)
	encodeChunkHeader(raw, ctInit, 0, uint16(len(raw)))
	c.marshalInto(raw[chunkHeaderSize:])
	return raw, nil
}

func (c *ChunkInit) unmarshal(raw []byte) error {
	typ, _, length, err := decodeChunkHeader(raw)
	if err != nil {
		return err
	}
	if typ != ctInit {
		return &InvalidFormatErr{Reason: "not an INIT chunk"}
	}
	if int(length) < chunkHeaderSize+initCommonSize {
		return &InsufficientDataErr{Expected: chunkHeaderSize + initCommonSize, Actual: int(length)}
	}
	return c.unmarshalFrom(raw[chunkHeaderSize:length])
}

// ChunkInitAck is the INIT-ACK chunk. It MUST carry a State-Cookie
// parameter (spec.md §4.3); Cookie holds its raw bytes.
type ChunkInitAck struct {
	initCommon
	Cookie []byte
}

const (
	paramTypeStateCookie uint16 = 7
	paramHeaderSize             = 4
)

func (c *ChunkInitAck) chunkType() ChunkType { return ctInitAck }
func (c *ChunkInitAck) valueLength() int {
	return initCommonSize + paramHeaderSize + len(c.Cookie) + getPadding(paramHeaderSize+len(c.Cookie))
}

func (c *ChunkInitAck) marshal() ([]byte, error) {
	paramLen := paramHeaderSize + len(c.Cookie)
	pad := getPadding(paramLen)
	total := chunkHeaderSize + initCommonSize + paramLen + pad

	raw := make([]byte, total)
	encodeChunkHeader(raw, ctInitAck, 0, uint16(total))
	c.marshalInto(raw[chunkHeaderSize:])

	p := raw[chunkHeaderSize+initCommonSize:]
	binary.BigEndian.PutUint16(p[0:2], paramTypeStateCookie)
	binary.BigEndian.PutUint16(p[2:4], uint16(paramLen))
	copy(p[4:4+len(c.Cookie)], c.Cookie)
	return raw, nil
}

func (c *ChunkInitAck) unmarshal(raw []byte) error {
	typ, _, length, err := decodeChunkHeader(raw)
	if err != nil {
		return err
	}
	if typ != ctInitAck {
		return &InvalidFormatErr{Reason: "not an INIT-ACK chunk"}
	}
	body := raw[chunkHeaderSize:length]
	if err := c.unmarshalFrom(body); err != nil {
		return err
	}

	offset := initCommonSize
	for offset+paramHeaderSize <= len(body) {
		pType := binary.BigEndian.Uint16(body[offset : offset+2])
		pLen := int(binary.BigEndian.Uint16(body[offset+2 : offset+4]))
		if offset+pLen > len(body) || pLen < paramHeaderSize {
			return &InvalidFormatErr{Reason: "malformed INIT-ACK parameter"}
		}
		if pType == paramTypeStateCookie {
			c.Cookie = append([]byte{}, body[offset+paramHeaderSize:offset+pLen]...)
			return nil
		}
		offset += pLen + getPadding(pLen)
	}
	return &InvalidFormatErr{Reason: "INIT-ACK missing State-Cookie parameter"}
}
