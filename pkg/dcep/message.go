package dcep

import "encoding/binary"

// MessageType is the DCEP message type octet, RFC 8832 §5.1.
type MessageType byte

const (
	messageTypeAck  MessageType = 0x02
	messageTypeOpen MessageType = 0x03
)

// ChannelType is the RFC 8832 §5.1 channelType octet: the low three bits
// select reliability semantics, the 0x80 bit marks unordered delivery.
type ChannelType byte

const (
	ChannelReliable                        ChannelType = 0x00
	ChannelReliableUnordered                ChannelType = 0x80
	ChannelPartialReliableRexmit             ChannelType = 0x01
	ChannelPartialReliableRexmitUnordered    ChannelType = 0x81
	ChannelPartialReliableTimed              ChannelType = 0x02
	ChannelPartialReliableTimedUnordered     ChannelType = 0x82
)

const channelUnorderedBit ChannelType = 0x80

// Ordered reports whether this channel type keeps in-order delivery.
func (c ChannelType) Ordered() bool { return c&channelUnorderedBit == 0 }

const openFixedSize = 12 // type(1)+channelType(1)+priority(2)+reliability(4)+labelLen(2)+protocolLen(2)

// OpenMessage is DATA_CHANNEL_OPEN, spec.md §4.5.
type OpenMessage struct {
	ChannelType          ChannelType
	Priority             uint16
	ReliabilityParameter uint32
	Label                string
	Protocol             string
}

// Encode serializes the OPEN message for transmission as an SCTP DATA
// chunk payload with PPID 50.
func (m *OpenMessage) Encode() []byte {
	buf := make([]byte, openFixedSize+len(m.Label)+len(m.Protocol))
	buf[0] = byte(messageTypeOpen)
	buf[1] = byte(m.ChannelType)
	binary.BigEndian.PutUint16(buf[2:4], m.Priority)
	binary.BigEndian.PutUint32(buf[4:8], m.ReliabilityParameter)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(m.Label)))
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(m.Protocol)))
	copy(buf[openFixedSize:], m.Label)
	copy(buf[openFixedSize+len(m.Label):], m.Protocol)
	return buf
}

// DecodeOpen parses a DATA_CHANNEL_OPEN payload.
func DecodeOpen(raw []byte) (*OpenMessage, error) {
	if len(raw) < openFixedSize {
		return nil, ErrInvalidFormat
	}
	if MessageType(raw[0]) != messageTypeOpen {
		return nil, ErrInvalidFormat
	}
	labelLen := int(binary.BigEndian.Uint16(raw[8:10]))
	protocolLen := int(binary.BigEndian.Uint16(raw[10:12]))
	if openFixedSize+labelLen+protocolLen > len(raw) {
		return nil, ErrInvalidFormat
	}
	return &OpenMessage{
		ChannelType:          ChannelType(raw[1]),
		Priority:             binary.BigEndian.Uint16(raw[2:4]),
		ReliabilityParameter: binary.BigEndian.Uint32(raw[4:8]),
		Label:                string(raw[openFixedSize : openFixedSize+labelLen]),
		Protocol:             string(raw[openFixedSize+labelLen : openFixedSize+labelLen+protocolLen]),
	}, nil
}

// EncodeAck returns the single-byte DATA_CHANNEL_ACK payload.
func EncodeAck() []byte { return []byte{byte(messageTypeAck)} }

// IsAck reports whether raw is a DATA_CHANNEL_ACK message.
func IsAck(raw []byte) bool {
	return len(raw) == 1 && MessageType(raw[0]) == messageTypeAck
}

// IsOpen reports whether raw is a DATA_CHANNEL_OPEN message.
func IsOpen(raw []byte) bool {
	return len(raw) >= 1 && MessageType(raw[0]) == messageTypeOpen
}
