package rtcconn

import (
	"github.com/pion/logging"

	"github.com/webrtcstack/core/pkg/ice"
	"github.com/webrtcstack/core/pkg/sctp"
)

// SendFunc transmits one raw datagram to the connection's peer. Endpoint
// and Listener supply this; the orchestrator never owns a socket itself,
// per spec.md §1's "UDP socket is a caller-supplied callback" Non-goal.
type SendFunc func(b []byte) error

// Config configures a new Connection.
type Config struct {
	// IsClient selects the DTLS handshake role (true sends ClientHello
	// first) and is also the role whose negotiated remote fingerprint is
	// checked against ExpectedRemoteFingerprint (spec.md §4.6: "clients
	// only").
	IsClient bool

	// ExpectedRemoteFingerprint is the peer certificate fingerprint
	// learned out of band (e.g. from SDP). Ignored on the server side.
	ExpectedRemoteFingerprint string

	// LocalFingerprint is this side's own certificate fingerprint, for the
	// LocalFingerprint accessor to hand back to callers without reaching
	// into the DTLS transport.
	LocalFingerprint string

	ICEConfig  ice.AgentConfig
	SCTPConfig sctp.Config

	LoggerFactory logging.LoggerFactory
}

func (c Config) withDefaults() Config {
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	c.ICEConfig.LoggerFactory = c.LoggerFactory
	c.SCTPConfig.LoggerFactory = c.LoggerFactory
	c.SCTPConfig.IsClient = c.IsClient
	return c
}
