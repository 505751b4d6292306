// Package dtlsadapter implements transport.DTLSTransport, spec.md §9's
// external DTLS collaborator boundary, on top of the real
// github.com/pion/dtls/v2 handshake and record layer. The core association
// and connection orchestrator never parse a TLS record themselves; this is
// the one package that does, and its only job is to adapt pion/dtls's
// blocking net.Conn-shaped API to the synchronous
// feed-one-datagram/get-one-result shape the rest of the stack expects.
package dtlsadapter

import (
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"sync"
	"time"

	"github.com/pion/dtls/v2"
	"github.com/pion/dtls/v2/pkg/crypto/fingerprint"
	"github.com/pion/logging"
	"github.com/pkg/errors"

	"github.com/webrtcstack/core/pkg/transport"
)

// handshakeTimeout bounds the whole handshake, not a single round trip.
// pion/dtls's own default (30s, config.go's defaultConnectContextMaker) is
// sized for a direct socket; ours is driven one datagram at a time by an
// outer orchestrator, so it gets more slack.
const handshakeTimeout = 2 * time.Minute

// appDataPollWait bounds how long a ProcessReceivedDatagram call waits for
// decrypted application data after the pipe has gone idle. Idle means the
// persistent read loop has already placed any decrypted record on its
// buffered output channel, so this is a formality, not a real wait.
const appDataPollWait = 20 * time.Millisecond

// Adapter is a transport.DTLSTransport backed by github.com/pion/dtls/v2.
type Adapter struct {
	pipe *pipeConn
	cfg  *dtls.Config

	mu           sync.Mutex
	started      bool
	conn         *dtls.Conn
	handshakeErr error
	done         chan struct{}
}

var _ transport.DTLSTransport = (*Adapter)(nil)

// New builds an Adapter presenting cert during the handshake. Peer
// certificate verification is left to the caller (spec.md §9: fingerprint
// comparison happens after the handshake completes, not during it), so the
// underlying dtls.Config always skips pion's own chain verification.
func New(cert tls.Certificate, loggerFactory logging.LoggerFactory) *Adapter {
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Adapter{
		pipe: newPipeConn(),
		cfg: &dtls.Config{
			Certificates:       []tls.Certificate{cert},
			InsecureSkipVerify: true,
			LoggerFactory:      loggerFactory,
			ConnectContextMaker: func() (context.Context, func()) {
				return context.WithTimeout(context.Background(), handshakeTimeout)
			},
		},
		done: make(chan struct{}),
	}
}

// StartHandshake launches the pion/dtls handshake goroutine and returns the
// first flight to send (empty for the server side, which waits for the
// peer's ClientHello).
func (a *Adapter) StartHandshake(isClient bool) ([][]byte, error) {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	a.started = true
	a.mu.Unlock()

	go func() {
		var (
			conn *dtls.Conn
			err  error
		)
		if isClient {
			conn, err = dtls.Client(a.pipe, a.cfg)
		} else {
			conn, err = dtls.Server(a.pipe, a.cfg)
		}
		a.mu.Lock()
		a.conn, a.handshakeErr = conn, err
		a.mu.Unlock()
		close(a.done)
	}()

	a.awaitQuiescence()
	return a.drainOutbound(), nil
}

// ProcessReceivedDatagram feeds one inbound datagram to the handshake FSM
// (or, post-handshake, to the record layer) and reports what came back.
func (a *Adapter) ProcessReceivedDatagram(raw []byte) (transport.HandshakeResult, error) {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if !started {
		return transport.HandshakeResult{}, ErrNotStarted
	}

	cp := append([]byte(nil), raw...)
	select {
	case a.pipe.inbound <- cp:
	case <-a.done:
	}

	a.awaitQuiescence()
	out := a.drainOutbound()

	select {
	case <-a.done:
		a.mu.Lock()
		conn, err := a.conn, a.handshakeErr
		a.mu.Unlock()
		if err != nil {
			return transport.HandshakeResult{}, errors.Wrap(err, "dtlsadapter: handshake failed")
		}
		return transport.HandshakeResult{
			DatagramsToSend:   out,
			HandshakeComplete: true,
			ApplicationData:   a.pollApplicationData(conn),
		}, nil
	default:
		return transport.HandshakeResult{DatagramsToSend: out}, nil
	}
}

// WriteApplicationData encrypts plaintext once the handshake has completed.
func (a *Adapter) WriteApplicationData(plaintext []byte) ([]byte, error) {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return nil, ErrHandshakeIncomplete
	}

	if _, err := conn.Write(plaintext); err != nil {
		return nil, errors.Wrap(err, "dtlsadapter: write application data")
	}

	out := a.drainOutbound()
	if len(out) != 1 {
		return nil, errors.Errorf("dtlsadapter: expected one ciphertext record, got %d", len(out))
	}
	return out[0], nil
}

// RemoteFingerprint returns the peer certificate's SHA-256 fingerprint,
// formatted like spec.md §1's colon-separated hex convention.
func (a *Adapter) RemoteFingerprint() string {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return ""
	}

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return ""
	}
	cert, err := x509.ParseCertificate(state.PeerCertificates[0])
	if err != nil {
		return ""
	}
	fp, err := fingerprint.Fingerprint(cert, crypto.SHA256)
	if err != nil {
		return ""
	}
	return fp
}

// LocalFingerprint computes the SHA-256 fingerprint of a certificate this
// stack presents, in the same colon-separated hex form as RemoteFingerprint,
// for an endpoint to advertise to a peer out of band.
func LocalFingerprint(cert tls.Certificate) (string, error) {
	if len(cert.Certificate) == 0 {
		return "", errors.New("dtlsadapter: certificate has no leaf")
	}
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return "", errors.Wrap(err, "dtlsadapter: parse leaf certificate")
	}
	return fingerprint.Fingerprint(parsed, crypto.SHA256)
}

// Close tears down the DTLS session and the underlying pipe.
func (a *Adapter) Close() error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return a.pipe.Close()
}

// awaitQuiescence blocks until the FSM goroutine has gone back to sleep
// waiting on the next datagram, or the handshake has finished.
func (a *Adapter) awaitQuiescence() {
	select {
	case <-a.pipe.idle:
	case <-a.done:
	}
}

func (a *Adapter) drainOutbound() [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-a.pipe.outbound:
			out = append(out, b)
		default:
			return out
		}
	}
}

// pollApplicationData makes a bounded attempt to read decrypted data that
// the persistent record-layer loop may have just buffered. awaitQuiescence
// having already returned means that loop is idle, so data is either there
// already or this call was plain handshake traffic with nothing to read.
func (a *Adapter) pollApplicationData(conn *dtls.Conn) []byte {
	type result struct {
		n   int
		err error
	}
	buf := make([]byte, 64*1024)
	resCh := make(chan result, 1)
	go func() {
		n, err := conn.Read(buf)
		resCh <- result{n, err}
	}()

	select {
	case r := <-resCh:
		if r.err != nil || r.n == 0 {
			return nil
		}
		return append([]byte(nil), buf[:r.n]...)
	case <-time.After(appDataPollWait):
		return nil
	}
}
