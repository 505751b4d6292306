package rtcep

import (
	"github.com/pion/logging"

	"github.com/webrtcstack/core/pkg/ice"
	"github.com/webrtcstack/core/pkg/rtcconn"
	"github.com/webrtcstack/core/pkg/sctp"
)

// SendFunc transmits one raw datagram to a Connection's peer.
type SendFunc = rtcconn.SendFunc

// EndpointConfig configures a new Endpoint and is shared by every
// Connection it creates, directly or through a Listener.
type EndpointConfig struct {
	ICEConfig     ice.AgentConfig
	SCTPConfig    sctp.Config
	LoggerFactory logging.LoggerFactory
}

func (c EndpointConfig) withDefaults() EndpointConfig {
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return c
}
