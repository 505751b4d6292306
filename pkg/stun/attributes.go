package stun

import (
	"encoding/binary"
	"net"
)

// AttrType is a STUN attribute type, RFC 5389 §18.2 plus RFC 8445 ICE
// attributes (spec.md §6).
type AttrType uint16

const (
	AttrMappedAddress     AttrType = 0x0001
	AttrUsername          AttrType = 0x0006
	AttrMessageIntegrity  AttrType = 0x0008
	AttrErrorCode         AttrType = 0x0009
	AttrXORMappedAddress  AttrType = 0x0020
	AttrPriority          AttrType = 0x0024
	AttrUseCandidate      AttrType = 0x0025
	AttrFingerprint       AttrType = 0x8028
	AttrICEControlled     AttrType = 0x8029
	AttrICEControlling    AttrType = 0x802A
)

const (
	familyIPv4 byte = 0x01
	familyIPv6 byte = 0x02
)

// AddXORMappedAddress appends XOR-MAPPED-ADDRESS per RFC 5389 §15.2: the
// port is XORed with the top 16 bits of the magic cookie; an IPv4 address
// is XORed with the magic cookie; an IPv6 address is XORed with
// magic-cookie || transaction-id.
func (m *Message) AddXORMappedAddress(ip net.IP, port int) {
	m.Add(AttrXORMappedAddress, encodeXORAddress(ip, port, m.TransactionID))
}

func encodeXORAddress(ip net.IP, port int, txID [12]byte) []byte {
	var cookie [4]byte
	binary.BigEndian.PutUint32(cookie[:], magicCookie)

	xport := uint16(port) ^ binary.BigEndian.Uint16(cookie[:2])

	if ip4 := ip.To4(); ip4 != nil {
		out := make([]byte, 8)
		out[1] = familyIPv4
		binary.BigEndian.PutUint16(out[2:4], xport)
		for i := 0; i < 4; i++ {
			out[4+i] = ip4[i] ^ cookie[i]
		}
		return out
	}

	ip6 := ip.To16()
	out := make([]byte, 20)
	out[1] = familyIPv6
	binary.BigEndian.PutUint16(out[2:4], xport)
	pad := append(append([]byte{}, cookie[:]...), txID[:]...)
	for i := 0; i < 16; i++ {
		out[4+i] = ip6[i] ^ pad[i]
	}
	return out
}

// GetXORMappedAddress decodes the XOR-MAPPED-ADDRESS attribute.
func (m *Message) GetXORMappedAddress() (net.IP, int, error) {
	v, err := m.Get(AttrXORMappedAddress)
	if err != nil {
		return nil, 0, err
	}
	return decodeXORAddress(v, m.TransactionID)
}

func decodeXORAddress(v []byte, txID [12]byte) (net.IP, int, error) {
	if len(v) < 4 {
		return nil, 0, &InsufficientDataError{Expected: 4, Actual: len(v)}
	}
	var cookie [4]byte
	binary.BigEndian.PutUint32(cookie[:], magicCookie)

	family := v[1]
	xport := binary.BigEndian.Uint16(v[2:4])
	port := int(xport ^ binary.BigEndian.Uint16(cookie[:2]))

	switch family {
	case familyIPv4:
		if len(v) != 8 {
			return nil, 0, &InvalidFormatError{Reason: "xor-mapped-address: bad ipv4 length"}
		}
		addr := make(net.IP, 4)
		for i := 0; i < 4; i++ {
			addr[i] = v[4+i] ^ cookie[i]
		}
		return addr, port, nil
	case familyIPv6:
		if len(v) != 20 {
			return nil, 0, &InvalidFormatError{Reason: "xor-mapped-address: bad ipv6 length"}
		}
		pad := append(append([]byte{}, cookie[:]...), txID[:]...)
		addr := make(net.IP, 16)
		for i := 0; i < 16; i++ {
			addr[i] = v[4+i] ^ pad[i]
		}
		return addr, port, nil
	default:
		return nil, 0, &InvalidFormatError{Reason: "xor-mapped-address: unknown family"}
	}
}

// AddUsername appends the USERNAME attribute.
func (m *Message) AddUsername(username string) {
	m.Add(AttrUsername, []byte(username))
}

// Username returns the USERNAME attribute value as a string.
func (m *Message) Username() (string, error) {
	v, err := m.Get(AttrUsername)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// ErrorCode is the decoded ERROR-CODE attribute (RFC 5389 §15.6).
type ErrorCode struct {
	Code   int // e.g. 400, 401, 487
	Reason string
}

// AddErrorCode appends ERROR-CODE.
func (m *Message) AddErrorCode(code int, reason string) {
	v := make([]byte, 4+len(reason))
	v[2] = byte(code / 100)
	v[3] = byte(code % 100)
	copy(v[4:], reason)
	m.Add(AttrErrorCode, v)
}

// GetErrorCode decodes ERROR-CODE.
func (m *Message) GetErrorCode() (ErrorCode, error) {
	v, err := m.Get(AttrErrorCode)
	if err != nil {
		return ErrorCode{}, err
	}
	if len(v) < 4 {
		return ErrorCode{}, &InsufficientDataError{Expected: 4, Actual: len(v)}
	}
	code := int(v[2])*100 + int(v[3])
	return ErrorCode{Code: code, Reason: string(v[4:])}, nil
}

// AddPriority appends the ICE PRIORITY attribute (RFC 8445 §7.1.1).
func (m *Message) AddPriority(priority uint32) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, priority)
	m.Add(AttrPriority, v)
}

// AddUseCandidate appends the zero-length USE-CANDIDATE attribute.
func (m *Message) AddUseCandidate() {
	m.Add(AttrUseCandidate, nil)
}

// AddICEControlled appends ICE-CONTROLLED with the given tiebreaker.
func (m *Message) AddICEControlled(tiebreaker uint64) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, tiebreaker)
	m.Add(AttrICEControlled, v)
}

// AddICEControlling appends ICE-CONTROLLING with the given tiebreaker.
func (m *Message) AddICEControlling(tiebreaker uint64) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, tiebreaker)
	m.Add(AttrICEControlling, v)
}

// HasICEControlled reports whether the ICE-CONTROLLED attribute is
// present.
func (m *Message) HasICEControlled() bool {
	_, err := m.Get(AttrICEControlled)
	return err == nil
}
