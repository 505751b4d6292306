package sctp

import "encoding/binary"

const dataHeaderSize = 12 // TSN(4) + streamID(2) + streamSeq(2) + PPID(4)

// PPID is the Payload Protocol Identifier, spec.md GLOSSARY. Values from
// spec.md §4.5: 50 DCEP, 51 string, 53 binary, 56 empty-string, 57
// empty-binary.
type PPID uint32

const (
	PPIDDCEP         PPID = 50
	PPIDString       PPID = 51
	PPIDBinary       PPID = 53
	PPIDEmptyString  PPID = 56
	PPIDEmptyBinary  PPID = 57
)

const (
	flagUnordered byte = 1 << 2
	flagBegin     byte = 1 << 1
	flagEnd       byte = 1 << 0
)

// ChunkData is the DATA chunk, spec.md §4.3.
type ChunkData struct {
	Unordered  bool
	Begin      bool
	End        bool
	TSN        uint32
	StreamID   uint16
	StreamSeq  uint16
	PPID       PPID
	UserData   []byte
}

func (c *ChunkData) chunkType() ChunkType { return ctData }
func (c *ChunkData) valueLength() int     { return dataHeaderSize + len(c.UserData) }

func (c *ChunkData) flags() byte {
	var f byte
	if c.Unordered {
		f |= flagUnordered
	}
	if c.Begin {
		f |= flagBegin
	}
	if c.End {
		f |= flagEnd
	}
	return f
}

func (c *ChunkData) marshal() ([]byte, error) {
	total := chunkHeaderSize + dataHeaderSize + len(c.UserData)
	pad := getPadding(total)
	raw := make([]byte, total+pad)
	encodeChunkHeader(raw, ctData, c.flags(), uint16(total))

	body := raw[chunkHeaderSize:]
	binary.BigEndian.PutUint32(body[0:4], c.TSN)
	binary.BigEndian.PutUint16(body[4:6], c.StreamID)
	binary.BigEndian.PutUint16(body[6:8], c.StreamSeq)
	binary.BigEndian.PutUint32(body[8:12], uint32(c.PPID))
	copy(body[12:12+len(c.UserData)], c.UserData)
	return raw, nil
}

func (c *ChunkData) unmarshal(raw []byte) error {
	typ, flags, length, err := decodeChunkHeader(raw)
	if err != nil {
		return err
	}
	if typ != ctData {
		return &InvalidFormatErr{Reason: "not a DATA chunk"}
	}
	if int(length) < chunkHeaderSize+dataHeaderSize {
		return &InsufficientDataErr{Expected: chunkHeaderSize + dataHeaderSize, Actual: int(length)}
	}
	c.Unordered = flags&flagUnordered != 0
	c.Begin = flags&flagBegin != 0
	c.End = flags&flagEnd != 0

	body := raw[chunkHeaderSize:length]
	c.TSN = binary.BigEndian.Uint32(body[0:4])
	c.StreamID = binary.BigEndian.Uint16(body[4:6])
	c.StreamSeq = binary.BigEndian.Uint16(body[6:8])
	c.PPID = PPID(binary.BigEndian.Uint32(body[8:12]))
	c.UserData = append([]byte{}, body[12:]...)
	return nil
}
