package sctp

import "github.com/pion/logging"

// Config configures a new Association, spec.md §4.4.
type Config struct {
	// LocalPort/RemotePort populate the SCTP common header. WebRTC data
	// channels conventionally fix both at 5000.
	LocalPort  uint16
	RemotePort uint16

	// IsClient selects which side of the four-way handshake this
	// association drives: true sends INIT first, false waits for one.
	IsClient bool

	// OutboundStreams/InboundStreams are offered in INIT/INIT-ACK.
	OutboundStreams uint16
	InboundStreams  uint16

	// MaxFragmentGroups bounds reassembler memory (default
	// DefaultMaxFragmentGroups).
	MaxFragmentGroups int

	// MaxRetransmits bounds how many times one DATA chunk is retransmitted
	// before HandleTimerTick reports ErrMaxRetransmitsExceeded (default
	// defaultMaxRTX).
	MaxRetransmits int

	// CookieSecret keys the server's State-Cookie HMAC. A nil/empty
	// secret is generated randomly by NewAssociation.
	CookieSecret []byte

	LoggerFactory logging.LoggerFactory
}

func (c Config) withDefaults() Config {
	if c.OutboundStreams == 0 {
		c.OutboundStreams = 65535
	}
	if c.InboundStreams == 0 {
		c.InboundStreams = 65535
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return c
}
