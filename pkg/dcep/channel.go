package dcep

import "sync"

// ChannelState mirrors spec.md §3 DataChannel.state.
type ChannelState int

const (
	StateConnecting ChannelState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is one DCEP-negotiated data channel, spec.md §3/§4.5.
type Channel struct {
	ID       uint16
	Label    string
	Protocol string
	Ordered  bool

	mu    sync.Mutex
	state ChannelState
}

// State returns the channel's current lifecycle state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) markOpen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnecting {
		c.state = StateOpen
	}
}

func (c *Channel) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateClosed
}
