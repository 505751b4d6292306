// Package stun implements the wire codec for RFC 5389 STUN messages plus
// the RFC 8445 ICE attributes, MESSAGE-INTEGRITY (RFC 5389 §15.4), and
// FINGERPRINT (RFC 5389 §15.5) needed to drive ICE-Lite connectivity
// checks. It is grounded on the vendored github.com/pion/stun package
// (message.go, attributes.go, xor.go, integrity.go, fingerprint.go),
// reimplemented per spec.md §4.1 rather than imported, since STUN framing
// is named as core protocol-plane work in spec.md §1.
package stun

import (
	"encoding/binary"
)

const (
	headerSize  = 20
	magicCookie = uint32(0x2112A442)
)

// Class is the 2-bit STUN message class (RFC 5389 §6).
type Class byte

const (
	ClassRequest         Class = 0x00
	ClassIndication      Class = 0x01
	ClassSuccessResponse Class = 0x02
	ClassErrorResponse   Class = 0x03
)

// Method is the 12-bit STUN method.
type Method uint16

const (
	MethodBinding Method = 0x001
)

// MessageType is the 14-bit (class, method) pair as it appears on the wire.
type MessageType struct {
	Class  Class
	Method Method
}

var (
	BindingRequest         = MessageType{ClassRequest, MethodBinding}
	BindingIndication      = MessageType{ClassIndication, MethodBinding}
	BindingSuccessResponse = MessageType{ClassSuccessResponse, MethodBinding}
	BindingErrorResponse   = MessageType{ClassErrorResponse, MethodBinding}
)

// encode packs (class, method) into the 14-bit wire value per RFC 5389 §6:
// the class bits C1 C0 are interleaved around the method bits, C0 sitting
// at bit offset 4 and C1 at bit offset 8.
func (t MessageType) encode() uint16 {
	m := uint16(t.Method)
	c := uint16(t.Class)

	c0 := (c & 0x1) << 4
	c1 := ((c >> 1) & 0x1) << 8

	m0_3 := m & 0xF
	m4_6 := (m >> 4) & 0x7
	m7_11 := (m >> 7) & 0x1F

	return (m7_11 << 9) | c1 | (m4_6 << 5) | c0 | m0_3
}

func decodeMessageType(v uint16) MessageType {
	m0_3 := v & 0xF
	c0 := (v >> 4) & 0x1
	m4_6 := (v >> 5) & 0x7
	c1 := (v >> 8) & 0x1
	m7_11 := (v >> 9) & 0x1F

	method := Method((m7_11 << 7) | (m4_6 << 4) | m0_3)
	class := Class((c1 << 1) | c0)
	return MessageType{Class: class, Method: method}
}

// Attribute is a single decoded TLV attribute (value stripped of padding).
type Attribute struct {
	Type  AttrType
	Value []byte
}

// Message is a single STUN message: header fields plus an ordered
// attribute list.
type Message struct {
	Type          MessageType
	TransactionID [12]byte
	Attributes    []Attribute
}

// New returns an empty message of the given type with a fresh random
// transaction ID.
func New(t MessageType) (*Message, error) {
	txID, err := newTransactionID()
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, TransactionID: txID}, nil
}

// Add appends an attribute, in wire order.
func (m *Message) Add(t AttrType, value []byte) {
	m.Attributes = append(m.Attributes, Attribute{Type: t, Value: value})
}

// Get returns the first attribute of the given type.
func (m *Message) Get(t AttrType) ([]byte, error) {
	for _, a := range m.Attributes {
		if a.Type == t {
			return a.Value, nil
		}
	}
	return nil, ErrAttributeNotFound
}

func padLen(n int) int {
	if r := n % 4; r != 0 {
		return 4 - r
	}
	return 0
}

// Encode serializes the message, including all attributes added so far, in
// order. MESSAGE-INTEGRITY and FINGERPRINT (if present) must already have
// been appended by AddMessageIntegrity/AddFingerprint, which recompute the
// header length field themselves; plain Encode never touches length beyond
// summing the attributes currently in m.Attributes.
func (m *Message) Encode() []byte {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint16(buf[0:2], m.Type.encode())
	binary.BigEndian.PutUint32(buf[4:8], magicCookie)
	copy(buf[8:20], m.TransactionID[:])

	for _, a := range m.Attributes {
		buf = appendAttribute(buf, a.Type, a.Value)
	}

	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf)-headerSize))
	return buf
}

func appendAttribute(buf []byte, t AttrType, value []byte) []byte {
	head := make([]byte, 4)
	binary.BigEndian.PutUint16(head[0:2], uint16(t))
	binary.BigEndian.PutUint16(head[2:4], uint16(len(value)))
	buf = append(buf, head...)
	buf = append(buf, value...)
	if p := padLen(len(value)); p > 0 {
		buf = append(buf, make([]byte, p)...)
	}
	return buf
}

// Decode parses a STUN message from raw bytes.
func Decode(raw []byte) (*Message, error) {
	if len(raw) < headerSize {
		return nil, &InsufficientDataError{Expected: headerSize, Actual: len(raw)}
	}

	typeVal := binary.BigEndian.Uint16(raw[0:2])
	if typeVal&0xC000 != 0 {
		return nil, &InvalidFormatError{Reason: "type high bits not zero"}
	}
	length := binary.BigEndian.Uint16(raw[2:4])
	cookie := binary.BigEndian.Uint32(raw[4:8])
	if cookie != magicCookie {
		return nil, &InvalidMagicCookieError{Value: cookie}
	}

	if int(headerSize)+int(length) > len(raw) {
		return nil, &InsufficientDataError{Expected: headerSize + int(length), Actual: len(raw)}
	}

	m := &Message{Type: decodeMessageType(typeVal)}
	copy(m.TransactionID[:], raw[8:20])

	body := raw[headerSize : headerSize+int(length)]
	offset := 0
	for offset < len(body) {
		if offset+4 > len(body) {
			return nil, &InsufficientDataError{Expected: offset + 4, Actual: len(body)}
		}
		at := AttrType(binary.BigEndian.Uint16(body[offset : offset+2]))
		alen := int(binary.BigEndian.Uint16(body[offset+2 : offset+4]))
		offset += 4
		if offset+alen > len(body) {
			return nil, &InsufficientDataError{Expected: offset + alen, Actual: len(body)}
		}
		val := body[offset : offset+alen]
		offset += alen + padLen(alen)
		m.Attributes = append(m.Attributes, Attribute{Type: at, Value: val})
	}

	return m, nil
}

// IsSTUN is the demultiplexing predicate from spec.md §4.1: length at
// least a header, and the top two bits of the first byte zero. This is
// necessarily loose; the orchestrator (pkg/rtcconn) refines it by checking
// the DTLS range first (spec.md §4.6).
func IsSTUN(b []byte) bool {
	return len(b) >= headerSize && b[0]&0xC0 == 0
}

func newTransactionID() ([12]byte, error) {
	return transactionIDSource()
}
