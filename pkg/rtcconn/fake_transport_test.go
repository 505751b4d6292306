package rtcconn

import (
	"github.com/webrtcstack/core/pkg/transport"
)

// fakeDTLSTransport is a minimal transport.DTLSTransport that does no real
// cryptography, for exercising Connection's orchestration logic without
// dragging in the real pion/dtls-backed dtlsadapter.Adapter. It mimics just
// enough of a real DTLS record layer to survive the IsDTLSRecord demux in
// Connection.Receive: every datagram it emits is prefixed with a byte in
// [20, 63], a handshake marker for the one-token handshake and an
// application-data marker for everything after.
type fakeDTLSTransport struct {
	peerFingerprint string
	handshakeSent   bool
	handshakeRecv   bool
}

const (
	fakeHandshakeMarker byte = 22
	fakeAppDataMarker   byte = 23
)

func newFakeDTLSTransport(peerFingerprint string) *fakeDTLSTransport {
	return &fakeDTLSTransport{peerFingerprint: peerFingerprint}
}

func (f *fakeDTLSTransport) StartHandshake(isClient bool) ([][]byte, error) {
	if !isClient {
		return nil, nil
	}
	f.handshakeSent = true
	return [][]byte{{fakeHandshakeMarker}}, nil
}

func (f *fakeDTLSTransport) ProcessReceivedDatagram(raw []byte) (transport.HandshakeResult, error) {
	if len(raw) == 0 {
		return transport.HandshakeResult{}, nil
	}

	if raw[0] == fakeHandshakeMarker {
		f.handshakeRecv = true
		var toSend [][]byte
		if !f.handshakeSent {
			f.handshakeSent = true
			toSend = [][]byte{{fakeHandshakeMarker}}
		}
		return transport.HandshakeResult{
			DatagramsToSend:   toSend,
			HandshakeComplete: f.handshakeSent && f.handshakeRecv,
		}, nil
	}

	return transport.HandshakeResult{ApplicationData: append([]byte(nil), raw[1:]...)}, nil
}

func (f *fakeDTLSTransport) WriteApplicationData(plaintext []byte) ([]byte, error) {
	return append([]byte{fakeAppDataMarker}, plaintext...), nil
}

func (f *fakeDTLSTransport) RemoteFingerprint() string {
	if !f.handshakeSent || !f.handshakeRecv {
		return ""
	}
	return f.peerFingerprint
}

func (f *fakeDTLSTransport) Close() error { return nil }
