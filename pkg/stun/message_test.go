package stun

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageTypeEncodeDecodeRoundTrip(t *testing.T) {
	for _, mt := range []MessageType{BindingRequest, BindingIndication, BindingSuccessResponse, BindingErrorResponse} {
		got := decodeMessageType(mt.encode())
		assert.Equal(t, mt, got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m, err := New(BindingRequest)
	require.NoError(t, err)
	m.AddUsername("alice:bob")
	m.AddPriority(12345)
	m.AddUseCandidate()

	raw := m.Encode()
	decoded, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, m.Type, decoded.Type)
	assert.Equal(t, m.TransactionID, decoded.TransactionID)

	u, err := decoded.Username()
	require.NoError(t, err)
	assert.Equal(t, "alice:bob", u)

	v, err := decoded.Get(AttrPriority)
	require.NoError(t, err)
	assert.Len(t, v, 4)

	_, err = decoded.Get(AttrUseCandidate)
	assert.NoError(t, err)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0})
	assert.Error(t, err)
}

func TestDecodeRejectsBadMagicCookie(t *testing.T) {
	m, err := New(BindingRequest)
	require.NoError(t, err)
	raw := m.Encode()
	raw[4] = 0
	_, err = Decode(raw)
	var cookieErr *InvalidMagicCookieError
	assert.ErrorAs(t, err, &cookieErr)
}

func TestDecodeRejectsHighTypeBits(t *testing.T) {
	raw := make([]byte, headerSize)
	raw[0] = 0xC0
	_, err := Decode(raw)
	var fmtErr *InvalidFormatError
	assert.ErrorAs(t, err, &fmtErr)
}

func TestXORMappedAddressRoundTripIPv4(t *testing.T) {
	m, err := New(BindingSuccessResponse)
	require.NoError(t, err)
	ip := net.ParseIP("203.0.113.7")
	m.AddXORMappedAddress(ip, 54321)

	decoded, err := Decode(m.Encode())
	require.NoError(t, err)
	gotIP, gotPort, err := decoded.GetXORMappedAddress()
	require.NoError(t, err)
	assert.True(t, gotIP.Equal(ip))
	assert.Equal(t, 54321, gotPort)
}

func TestXORMappedAddressRoundTripIPv6(t *testing.T) {
	m, err := New(BindingSuccessResponse)
	require.NoError(t, err)
	ip := net.ParseIP("2001:db8::1")
	m.AddXORMappedAddress(ip, 443)

	decoded, err := Decode(m.Encode())
	require.NoError(t, err)
	gotIP, gotPort, err := decoded.GetXORMappedAddress()
	require.NoError(t, err)
	assert.True(t, gotIP.Equal(ip))
	assert.Equal(t, 443, gotPort)
}

func TestErrorCodeRoundTrip(t *testing.T) {
	m, err := New(BindingErrorResponse)
	require.NoError(t, err)
	m.AddErrorCode(487, "Role Conflict")

	decoded, err := Decode(m.Encode())
	require.NoError(t, err)
	ec, err := decoded.GetErrorCode()
	require.NoError(t, err)
	assert.Equal(t, 487, ec.Code)
	assert.Equal(t, "Role Conflict", ec.Reason)
}

func TestICEControlledControllingAttributes(t *testing.T) {
	m, err := New(BindingRequest)
	require.NoError(t, err)
	assert.False(t, m.HasICEControlled())
	m.AddICEControlled(0xdeadbeef)
	assert.True(t, m.HasICEControlled())
}

func TestMessageIntegrityValidAndInvalid(t *testing.T) {
	m, err := New(BindingRequest)
	require.NoError(t, err)
	m.AddUsername("alice")
	m.AddMessageIntegrity("pass")
	raw := m.Encode()

	result, err := VerifyMessageIntegrity(raw, "pass")
	require.NoError(t, err)
	assert.Equal(t, IntegrityValid, result)

	result, err = VerifyMessageIntegrity(raw, "wrong-pass")
	require.NoError(t, err)
	assert.Equal(t, IntegrityInvalid, result)
}

func TestMessageIntegrityMissing(t *testing.T) {
	m, err := New(BindingRequest)
	require.NoError(t, err)
	raw := m.Encode()

	result, err := VerifyMessageIntegrity(raw, "pass")
	require.NoError(t, err)
	assert.Equal(t, IntegrityMissing, result)
}

func TestFingerprintValidAndInvalid(t *testing.T) {
	m, err := New(BindingRequest)
	require.NoError(t, err)
	m.AddFingerprint()
	raw := m.Encode()

	ok, err := VerifyFingerprint(raw)
	require.NoError(t, err)
	assert.True(t, ok)

	raw[len(raw)-1] ^= 0xFF
	ok, err = VerifyFingerprint(raw)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIntegrityThenFingerprintOrdering(t *testing.T) {
	m, err := New(BindingRequest)
	require.NoError(t, err)
	m.AddUsername("alice")
	m.AddMessageIntegrity("pass")
	m.AddFingerprint()
	raw := m.Encode()

	integrity, err := VerifyMessageIntegrity(raw, "pass")
	require.NoError(t, err)
	assert.Equal(t, IntegrityValid, integrity)

	ok, err := VerifyFingerprint(raw)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsSTUN(t *testing.T) {
	m, err := New(BindingRequest)
	require.NoError(t, err)
	assert.True(t, IsSTUN(m.Encode()))
	assert.False(t, IsSTUN([]byte{0xC0, 0, 0, 0}))
	assert.False(t, IsSTUN([]byte{1, 2, 3}))
}
