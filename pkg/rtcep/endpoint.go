// Package rtcep implements spec.md §4.7's entry points: Endpoint owns the
// certificate and vends outbound connections and listeners; Listener owns
// the per-peer registry of inbound connections. Grounded on the vendored
// srs-bench pion stack's webrtc.API/PeerConnection construction pattern,
// adapted down to this project's caller-supplied-socket model (spec.md §1).
package rtcep

import (
	"crypto/tls"
	"sync"

	"github.com/pion/logging"
	"github.com/pkg/errors"

	"github.com/webrtcstack/core/pkg/dtlsadapter"
	"github.com/webrtcstack/core/pkg/rtcconn"
)

// Endpoint holds a certificate and mints client connections and listeners
// that all share it, per spec.md §4.7: "the certificate is shared among all
// connections a single endpoint creates."
type Endpoint struct {
	cert             tls.Certificate
	localFingerprint string
	cfg              EndpointConfig
	log              logging.LeveledLogger

	mu          sync.Mutex
	closed      bool
	listeners   []*Listener
	connections []*rtcconn.Connection
}

// NewEndpoint creates an Endpoint bound to cert. If cert's fingerprint
// cannot be computed (a malformed leaf certificate), the endpoint still
// comes up but LocalFingerprint on every connection it creates is empty and
// a warning is logged; callers are expected to supply a valid certificate.
func NewEndpoint(cert tls.Certificate, cfg EndpointConfig) *Endpoint {
	cfg = cfg.withDefaults()
	log := cfg.LoggerFactory.NewLogger("rtcep")

	fp, err := dtlsadapter.LocalFingerprint(cert)
	if err != nil {
		log.Warnf("rtcep: compute local fingerprint: %v", err)
	}

	return &Endpoint{
		cert:             cert,
		localFingerprint: fp,
		cfg:              cfg,
		log:              log,
	}
}

// LocalFingerprint returns this endpoint's certificate fingerprint.
func (e *Endpoint) LocalFingerprint() string { return e.localFingerprint }

// Connect creates a client-role connection to a peer whose certificate
// fingerprint is remoteFingerprint, and starts its DTLS handshake.
func (e *Endpoint) Connect(remoteFingerprint string, send rtcconn.SendFunc) (*rtcconn.Connection, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	conn, err := rtcconn.New(rtcconn.Config{
		IsClient:                  true,
		ExpectedRemoteFingerprint: remoteFingerprint,
		LocalFingerprint:          e.localFingerprint,
		ICEConfig:                 e.cfg.ICEConfig,
		SCTPConfig:                e.cfg.SCTPConfig,
		LoggerFactory:             e.cfg.LoggerFactory,
	}, dtlsadapter.New(e.cert, e.cfg.LoggerFactory), send)
	if err != nil {
		return nil, errors.Wrap(err, "rtcep: create connection")
	}

	// Start's own error return is not the reliable failure signal: a
	// caller-supplied send can recurse synchronously into the peer and
	// back, so a failure discovered deep in that recursion (e.g. a
	// fingerprint mismatch) can surface as Start's return value even
	// though conn itself is a live object already sitting in
	// StateFailed. Record it for diagnostics but still hand back conn,
	// as rtcconn.Connection.State()/FailReason() is the durable signal.
	if err := conn.Start(); err != nil {
		e.log.Debugf("rtcep: connect: %v", err)
	}

	e.mu.Lock()
	e.connections = append(e.connections, conn)
	e.mu.Unlock()

	return conn, nil
}

// Listen creates a new Listener sharing this endpoint's certificate.
func (e *Endpoint) Listen() *Listener {
	l := newListener(e.cert, e.localFingerprint, e.cfg)

	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()

	return l
}

// Close closes every Listener and every Connect-created Connection this
// endpoint owns (spec.md §4.7: "close propagates to all").
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	listeners := e.listeners
	conns := e.connections
	e.listeners = nil
	e.connections = nil
	e.mu.Unlock()

	var firstErr error
	for _, l := range listeners {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, c := range conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
