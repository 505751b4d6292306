package rtcep

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webrtcstack/core/pkg/rtcconn"
)

// generateTestCertificate produces a throwaway self-signed certificate, the
// same shape dtlsadapter.New and dtlsadapter.LocalFingerprint expect. Real
// callers bring their own long-lived identity certificate; tests need a
// fresh one per endpoint.
func generateTestCertificate(t *testing.T) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "rtcep-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

// wirePair connects a client Endpoint to a Listener's AcceptConnection
// through two mutually recursive send callbacks, mimicking an application's
// signaling-established datagram transport.
func wirePair(t *testing.T) (client *rtcconn.Connection, server *rtcconn.Connection, listener *Listener) {
	t.Helper()

	clientCert := generateTestCertificate(t)
	serverCert := generateTestCertificate(t)

	clientEp := NewEndpoint(clientCert, EndpointConfig{})
	serverEp := NewEndpoint(serverCert, EndpointConfig{})

	listener = serverEp.Listen()

	var clientConn, serverConn *rtcconn.Connection
	sendToServer := func(b []byte) error { return serverConn.Receive(b, nil) }
	sendToClient := func(b []byte) error { return clientConn.Receive(b, nil) }

	var err error
	serverConn, err = listener.AcceptConnection("peer-1", sendToClient)
	require.NoError(t, err)

	clientConn, err = clientEp.Connect(serverEp.LocalFingerprint(), sendToServer)
	require.NoError(t, err)

	return clientConn, serverConn, listener
}

func TestEndpointConnectAndListenerAcceptEstablish(t *testing.T) {
	client, server, _ := wirePair(t)

	require.Eventually(t, func() bool {
		return client.State() == rtcconn.StateConnected && server.State() == rtcconn.StateConnected
	}, 5*time.Second, 10*time.Millisecond)
}

func TestListenerAcceptConnectionReturnsExistingForKnownPeer(t *testing.T) {
	_, server, listener := wirePair(t)

	again, err := listener.AcceptConnection("peer-1", func([]byte) error { return nil })
	require.NoError(t, err)
	assert.Same(t, server, again)
}

func TestListenerConnectionLookupAndRemove(t *testing.T) {
	_, server, listener := wirePair(t)

	found, ok := listener.Connection("peer-1")
	require.True(t, ok)
	assert.Same(t, server, found)

	listener.RemoveConnection("peer-1")
	_, ok = listener.Connection("peer-1")
	assert.False(t, ok)
}

func TestEndpointCloseClosesListenersAndConnections(t *testing.T) {
	clientCert := generateTestCertificate(t)
	serverCert := generateTestCertificate(t)
	clientEp := NewEndpoint(clientCert, EndpointConfig{})
	serverEp := NewEndpoint(serverCert, EndpointConfig{})

	listener := serverEp.Listen()

	var clientConn, serverConn *rtcconn.Connection
	sendToServer := func(b []byte) error { return serverConn.Receive(b, nil) }
	sendToClient := func(b []byte) error { return clientConn.Receive(b, nil) }

	var err error
	serverConn, err = listener.AcceptConnection("peer-1", sendToClient)
	require.NoError(t, err)
	clientConn, err = clientEp.Connect(serverEp.LocalFingerprint(), sendToServer)
	require.NoError(t, err)

	require.NoError(t, serverEp.Close())
	assert.Equal(t, rtcconn.StateClosed, serverConn.State())
	_ = clientConn
}

func TestEndpointConnectAfterCloseFails(t *testing.T) {
	ep := NewEndpoint(generateTestCertificate(t), EndpointConfig{})
	require.NoError(t, ep.Close())

	_, err := ep.Connect("some-fp", func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
