package sctp

import "encoding/binary"

const sackFixedSize = 12 // cumulativeTSNAck(4) + a_rwnd(4) + numGap(2) + numDup(2)

// GapBlock is a (start, end) offset pair from cumulativeTSNAck, spec.md
// §4.3.
type GapBlock struct {
	Start, End uint16
}

// ChunkSack is the SACK chunk, spec.md §4.3.
type ChunkSack struct {
	CumulativeTSNAck uint32
	ARwnd            uint32
	GapBlocks        []GapBlock
	DuplicateTSNs    []uint32
}

func (c *ChunkSack) chunkType() ChunkType { return ctSack }
func (c *ChunkSack) valueLength() int {
	return sackFixedSize + 4*len(c.GapBlocks) + 4*len(c.DuplicateTSNs)
}

func (c *ChunkSack) marshal() ([]byte, error) {
	total := chunkHeaderSize + c.valueLength()
	pad := getPadding(total)
	raw := make([]byte, total+pad)
	encodeChunkHeader(raw, ctSack, 0, uint16(total))

	body := raw[chunkHeaderSize:]
	binary.BigEndian.PutUint32(body[0:4], c.CumulativeTSNAck)
	binary.BigEndian.PutUint32(body[4:8], c.ARwnd)
	binary.BigEndian.PutUint16(body[8:10], uint16(len(c.GapBlocks)))
	binary.BigEndian.PutUint16(body[10:12], uint16(len(c.DuplicateTSNs)))

	off := sackFixedSize
	for _, g := range c.GapBlocks {
		binary.BigEndian.PutUint16(body[off:off+2], g.Start)
		binary.BigEndian.PutUint16(body[off+2:off+4], g.End)
		off += 4
	}
	for _, d := range c.DuplicateTSNs {
		binary.BigEndian.PutUint32(body[off:off+4], d)
		off += 4
	}
	return raw, nil
}

func (c *ChunkSack) unmarshal(raw []byte) error {
	typ, _, length, err := decodeChunkHeader(raw)
	if err != nil {
		return err
	}
	if typ != ctSack {
		return &InvalidFormatErr{Reason: "not a SACK chunk"}
	}
	body := raw[chunkHeaderSize:length]
	if len(body) < sackFixedSize {
		return &InsufficientDataErr{Expected: sackFixedSize, Actual: len(body)}
	}
	c.CumulativeTSNAck = binary.BigEndian.Uint32(body[0:4])
	c.ARwnd = binary.BigEndian.Uint32(body[4:8])
	numGap := int(binary.BigEndian.Uint16(body[8:10]))
	numDup := int(binary.BigEndian.Uint16(body[10:12]))

	off := sackFixedSize
	need := off + 4*numGap + 4*numDup
	if need > len(body) {
		return &InsufficientDataErr{Expected: need, Actual: len(body)}
	}
	c.GapBlocks = make([]GapBlock, numGap)
	for i := 0; i < numGap; i++ {
		c.GapBlocks[i] = GapBlock{
			Start: binary.BigEndian.Uint16(body[off : off+2]),
			End:   binary.BigEndian.Uint16(body[off+2 : off+4]),
		}
		off += 4
	}
	c.DuplicateTSNs = make([]uint32, numDup)
	for i := 0; i < numDup; i++ {
		c.DuplicateTSNs[i] = binary.BigEndian.Uint32(body[off : off+4])
		off += 4
	}
	return nil
}
