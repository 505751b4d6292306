package rtcep

import (
	"crypto/tls"
	"sync"

	"github.com/pion/logging"

	"github.com/webrtcstack/core/internal/asyncseq"
	"github.com/webrtcstack/core/pkg/dtlsadapter"
	"github.com/webrtcstack/core/pkg/rtcconn"
)

// incomingConnectionsCapacity matches rtcconn's unbounded-producer choice:
// a slow consumer never stalls AcceptConnection.
const incomingConnectionsCapacity = 0

// Listener accepts server-role connections keyed by an application-supplied
// peer identifier, per spec.md §4.7. It owns the peerId→Connection map; the
// Endpoint owns the set of Listeners.
type Listener struct {
	cert             tls.Certificate
	localFingerprint string
	cfg              EndpointConfig
	log              logging.LeveledLogger

	mu          sync.Mutex
	closed      bool
	connections map[string]*rtcconn.Connection
	incoming    *asyncseq.Sequence[*rtcconn.Connection]
}

func newListener(cert tls.Certificate, localFingerprint string, cfg EndpointConfig) *Listener {
	return &Listener{
		cert:             cert,
		localFingerprint: localFingerprint,
		cfg:              cfg,
		log:              cfg.LoggerFactory.NewLogger("rtcep"),
		connections:      make(map[string]*rtcconn.Connection),
		incoming:         asyncseq.New[*rtcconn.Connection](incomingConnectionsCapacity),
	}
}

// LocalFingerprint returns this listener's certificate fingerprint.
func (l *Listener) LocalFingerprint() string { return l.localFingerprint }

// Connections is the async sequence of newly accepted connections.
func (l *Listener) Connections() *asyncseq.Sequence[*rtcconn.Connection] {
	return l.incoming
}

// AcceptConnection returns the existing connection for peerID if one is
// already registered; otherwise it constructs a server-role connection,
// registers it, starts its DTLS handshake, and publishes it on Connections.
func (l *Listener) AcceptConnection(peerID string, send rtcconn.SendFunc) (*rtcconn.Connection, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	if conn, ok := l.connections[peerID]; ok {
		l.mu.Unlock()
		return conn, nil
	}
	l.mu.Unlock()

	conn, err := rtcconn.New(rtcconn.Config{
		IsClient:         false,
		LocalFingerprint: l.localFingerprint,
		ICEConfig:        l.cfg.ICEConfig,
		SCTPConfig:       l.cfg.SCTPConfig,
		LoggerFactory:    l.cfg.LoggerFactory,
	}, dtlsadapter.New(l.cert, l.cfg.LoggerFactory), send)
	if err != nil {
		return nil, err
	}
	// Start's own error return is not the reliable failure signal here
	// either (see Endpoint.Connect); record it but still register conn.
	if err := conn.Start(); err != nil {
		l.log.Debugf("rtcep: accept %s: %v", peerID, err)
	}

	// Two concurrent AcceptConnection(peerID) calls can both race past the
	// check above and each build and start a Connection; only the first to
	// reach here wins the registration and the loser is closed. A
	// server-role Start sends no handshake flight, so the loser has put
	// nothing on the wire.
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	if existing, ok := l.connections[peerID]; ok {
		l.mu.Unlock()
		conn.Close()
		return existing, nil
	}
	l.connections[peerID] = conn
	l.mu.Unlock()

	l.incoming.Push(conn)
	return conn, nil
}

// Connection returns the registered connection for peerID, if any.
func (l *Listener) Connection(peerID string) (*rtcconn.Connection, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.connections[peerID]
	return c, ok
}

// RemoveConnection closes and unregisters the connection for peerID.
func (l *Listener) RemoveConnection(peerID string) {
	l.mu.Lock()
	conn, ok := l.connections[peerID]
	delete(l.connections, peerID)
	l.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// Close closes every registered connection and the incoming sequence.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	conns := l.connections
	l.connections = nil
	l.mu.Unlock()

	l.incoming.Close()
	for _, c := range conns {
		c.Close()
	}
	return nil
}
