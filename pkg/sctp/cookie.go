package sctp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

const (
	cookieSecretSize = 32
	cookieHMACSize   = 32 // SHA-256
	// cookieFixedSize is the 60-byte fixed encoding spec.md §3 requires:
	// timestamp(8) + peerTag(4) + localTag(4) + peerInitialTSN(4) +
	// peerARwnd(4) + outStreams(2) + inStreams(2) + HMAC(32) = 60.
	cookieFixedSize  = 8 + 4 + 4 + 4 + 4 + 2 + 2 + cookieHMACSize
	cookieMaxAgeMS   = 60_000
)

// stateCookie is the opaque, HMAC-protected bytes carried in INIT-ACK and
// echoed by COOKIE-ECHO, spec.md §3 "SCTPCookie".
type stateCookie struct {
	TimestampMS    int64
	PeerTag        uint32
	LocalTag       uint32
	PeerInitialTSN uint32
	PeerARwnd      uint32
	OutStreams     uint16
	InStreams      uint16
}

// encode serializes the cookie and appends an HMAC-SHA256 keyed by secret.
func (c *stateCookie) encode(secret []byte) []byte {
	raw := make([]byte, cookieFixedSize)
	binary.BigEndian.PutUint64(raw[0:8], uint64(c.TimestampMS))
	binary.BigEndian.PutUint32(raw[8:12], c.PeerTag)
	binary.BigEndian.PutUint32(raw[12:16], c.LocalTag)
	binary.BigEndian.PutUint32(raw[16:20], c.PeerInitialTSN)
	binary.BigEndian.PutUint32(raw[20:24], c.PeerARwnd)
	binary.BigEndian.PutUint16(raw[24:26], c.OutStreams)
	binary.BigEndian.PutUint16(raw[26:28], c.InStreams)

	mac := hmac.New(sha256.New, secret)
	mac.Write(raw[:28])
	copy(raw[28:28+cookieHMACSize], mac.Sum(nil))
	return raw
}

// decodeStateCookie validates the HMAC and age (spec.md §4.4: "reject if
// HMAC mismatch or if age_ms not in [0, 60_000]") and returns the restored
// association parameters.
func decodeStateCookie(raw []byte, secret []byte, nowMS int64) (*stateCookie, error) {
	if len(raw) != cookieFixedSize {
		return nil, ErrCookieValidationFailed
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(raw[:28])
	expected := mac.Sum(nil)
	if !hmac.Equal(expected, raw[28:28+cookieHMACSize]) {
		return nil, ErrCookieValidationFailed
	}

	c := &stateCookie{
		TimestampMS:    int64(binary.BigEndian.Uint64(raw[0:8])),
		PeerTag:        binary.BigEndian.Uint32(raw[8:12]),
		LocalTag:       binary.BigEndian.Uint32(raw[12:16]),
		PeerInitialTSN: binary.BigEndian.Uint32(raw[16:20]),
		PeerARwnd:      binary.BigEndian.Uint32(raw[20:24]),
		OutStreams:     binary.BigEndian.Uint16(raw[24:26]),
		InStreams:      binary.BigEndian.Uint16(raw[26:28]),
	}

	age := nowMS - c.TimestampMS
	if age < 0 || age > cookieMaxAgeMS {
		return nil, ErrCookieExpired
	}
	return c, nil
}
