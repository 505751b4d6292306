package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateCookieRoundTrip(t *testing.T) {
	secret := []byte("super-secret-key")
	c := &stateCookie{
		TimestampMS: 1000, PeerTag: 1, LocalTag: 2,
		PeerInitialTSN: 3, PeerARwnd: 4, OutStreams: 5, InStreams: 6,
	}
	raw := c.encode(secret)
	assert.Len(t, raw, cookieFixedSize)

	decoded, err := decodeStateCookie(raw, secret, 1000+30_000)
	require.NoError(t, err)
	assert.Equal(t, c.PeerTag, decoded.PeerTag)
	assert.Equal(t, c.LocalTag, decoded.LocalTag)
	assert.Equal(t, c.PeerInitialTSN, decoded.PeerInitialTSN)
}

func TestStateCookieRejectsTamperedHMAC(t *testing.T) {
	secret := []byte("super-secret-key")
	c := &stateCookie{TimestampMS: 1000}
	raw := c.encode(secret)
	raw[0] ^= 0xFF

	_, err := decodeStateCookie(raw, secret, 1000)
	assert.ErrorIs(t, err, ErrCookieValidationFailed)
}

func TestStateCookieRejectsExpired(t *testing.T) {
	secret := []byte("super-secret-key")
	c := &stateCookie{TimestampMS: 0}
	raw := c.encode(secret)

	_, err := decodeStateCookie(raw, secret, 60_001)
	assert.ErrorIs(t, err, ErrCookieExpired)
}

func TestStateCookieRejectsWrongSecret(t *testing.T) {
	c := &stateCookie{TimestampMS: 0}
	raw := c.encode([]byte("secret-a"))

	_, err := decodeStateCookie(raw, []byte("secret-b"), 0)
	assert.ErrorIs(t, err, ErrCookieValidationFailed)
}
