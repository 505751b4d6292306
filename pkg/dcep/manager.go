package dcep

import (
	"sync"

	"github.com/pion/logging"
)

// defaultPriority matches RFC 8832's recommended default priority value.
const defaultPriority = 256

// Manager allocates channel ids and drives the DCEP open/ack handshake for
// one association, spec.md §4.5.
type Manager struct {
	log logging.LeveledLogger

	mu       sync.Mutex
	isClient bool
	nextID   uint16
	channels map[uint16]*Channel
}

// NewManager creates a Manager. isClient selects the channel-id parity:
// even ids starting at 0 for the initiator, odd ids starting at 1 for the
// responder (spec.md §4.5).
func NewManager(isClient bool, loggerFactory logging.LoggerFactory) *Manager {
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	nextID := uint16(1)
	if isClient {
		nextID = 0
	}
	return &Manager{
		log:      loggerFactory.NewLogger("dcep"),
		isClient: isClient,
		nextID:   nextID,
		channels: make(map[uint16]*Channel),
	}
}

// OpenChannel allocates the next id for this side, registers a Channel in
// state connecting, and returns the DATA_CHANNEL_OPEN payload to send with
// PPID 50 on that stream.
func (m *Manager) OpenChannel(label string, ordered bool) (*Channel, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID += 2

	chType := ChannelReliable
	if !ordered {
		chType = ChannelReliableUnordered
	}

	ch := &Channel{ID: id, Label: label, Ordered: ordered, state: StateConnecting}
	m.channels[id] = ch

	payload := (&OpenMessage{
		ChannelType: chType,
		Priority:    defaultPriority,
		Label:       label,
	}).Encode()

	return ch, payload, nil
}

// HandleOpen processes an inbound DATA_CHANNEL_OPEN on streamID: it
// creates the remote-initiated Channel directly in state open (spec.md
// §4.5) and returns the DATA_CHANNEL_ACK payload to send back.
func (m *Manager) HandleOpen(streamID uint16, payload []byte) (*Channel, []byte, error) {
	open, err := DecodeOpen(payload)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ch := &Channel{
		ID:       streamID,
		Label:    open.Label,
		Protocol: open.Protocol,
		Ordered:  open.ChannelType.Ordered(),
		state:    StateOpen,
	}
	m.channels[streamID] = ch

	return ch, EncodeAck(), nil
}

// HandleAck transitions the local channel on streamID from connecting to
// open.
func (m *Manager) HandleAck(streamID uint16) (*Channel, error) {
	m.mu.Lock()
	ch, ok := m.channels[streamID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrUnknownChannel
	}
	ch.markOpen()
	return ch, nil
}

// Channel looks up a previously created channel by id.
func (m *Manager) Channel(id uint16) (*Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	return ch, ok
}

// CloseChannel transitions a channel to closed and forgets it.
func (m *Manager) CloseChannel(id uint16) {
	m.mu.Lock()
	ch, ok := m.channels[id]
	delete(m.channels, id)
	m.mu.Unlock()
	if ok {
		ch.markClosed()
	}
}
