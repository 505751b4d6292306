// Package rtcconn implements the connection orchestrator, spec.md §4.6: a
// unified state machine spanning ICE/DTLS/SCTP, the ingress demultiplexer,
// fingerprint verification, and the two-way bridge between DTLS application
// data and SCTP data-channel messages. Grounded on the vendored
// github.com/pion/webrtc PeerConnection's role as the thing that ties
// ICE/DTLS/SCTP together, though hand-rolled: pion/webrtc pulls in a full
// SDP/media stack this project deliberately excludes (spec.md §1 Non-goals).
package rtcconn

import (
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pkg/errors"

	"github.com/webrtcstack/core/internal/asyncseq"
	"github.com/webrtcstack/core/pkg/dcep"
	"github.com/webrtcstack/core/pkg/ice"
	"github.com/webrtcstack/core/pkg/sctp"
	"github.com/webrtcstack/core/pkg/stun"
	"github.com/webrtcstack/core/pkg/transport"
)

// incomingChannelsCapacity is passed to asyncseq.New, which does not
// enforce a capacity: newly opened channels accumulate until consumed, so
// callers draining slowly never stall the SCTP ingress path.
const incomingChannelsCapacity = 0

// Connection is one peer connection: an ICE-Lite agent for reachability, a
// DTLS transport for encryption, and an SCTP association carrying DCEP data
// channels, all driven from a single ingress/egress pipeline.
type Connection struct {
	cfg  Config
	log  logging.LeveledLogger
	send SendFunc

	iceAgent *ice.Agent
	dtls     transport.DTLSTransport
	assoc    *sctp.Association
	dcepMgr  *dcep.Manager

	incomingChannels *asyncseq.Sequence[*dcep.Channel]

	mu            sync.Mutex
	state         State
	failReason    string
	handshakeDone bool
	dataHandler   func(streamID uint16, payload []byte)
}

// New creates a Connection. dtlsTransport is injected so tests can drive
// the orchestrator against a fake transport.DTLSTransport instead of the
// real pion/dtls-backed dtlsadapter.Adapter.
func New(cfg Config, dtlsTransport transport.DTLSTransport, send SendFunc) (*Connection, error) {
	cfg = cfg.withDefaults()

	iceAgent, err := ice.NewAgent(cfg.ICEConfig)
	if err != nil {
		return nil, errors.Wrap(err, "rtcconn: create ice agent")
	}
	assoc, err := sctp.NewAssociation(cfg.SCTPConfig)
	if err != nil {
		return nil, errors.Wrap(err, "rtcconn: create sctp association")
	}

	return &Connection{
		cfg:              cfg,
		log:              cfg.LoggerFactory.NewLogger("rtcconn"),
		send:             send,
		iceAgent:         iceAgent,
		dtls:             dtlsTransport,
		assoc:            assoc,
		dcepMgr:          dcep.NewManager(cfg.IsClient, cfg.LoggerFactory),
		incomingChannels: asyncseq.New[*dcep.Channel](incomingChannelsCapacity),
		state:            StateNew,
	}, nil
}

// State returns the current unified connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FailReason returns the reason string recorded when State is failed.
func (c *Connection) FailReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failReason
}

// LocalFingerprint returns this side's certificate fingerprint.
func (c *Connection) LocalFingerprint() string {
	return c.cfg.LocalFingerprint
}

// RemoteFingerprint returns the peer's negotiated DTLS fingerprint, valid
// once the handshake has completed.
func (c *Connection) RemoteFingerprint() string {
	return c.dtls.RemoteFingerprint()
}

// ICECredentials returns the local/remote ICE credential pair.
func (c *Connection) ICECredentials() ice.Credentials {
	return c.iceAgent.LocalCredentials()
}

// IncomingChannels is the async sequence of channels the peer opened.
func (c *Connection) IncomingChannels() *asyncseq.Sequence[*dcep.Channel] {
	return c.incomingChannels
}

// SetRemoteICECredentials records the remote ufrag/password learned via
// signaling.
func (c *Connection) SetRemoteICECredentials(ufrag, password string) {
	c.iceAgent.SetRemoteCredentials(ufrag, password)
}

// SetDataHandler installs the callback invoked for every delivered
// non-DCEP SCTP message.
func (c *Connection) SetDataHandler(fn func(streamID uint16, payload []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataHandler = fn
}

// Start begins the DTLS handshake: client role produces and sends the
// initial flight, server role waits for one.
func (c *Connection) Start() error {
	c.mu.Lock()
	if c.state.isTerminal() {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateNew {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDTLSHandshaking
	c.mu.Unlock()

	flight, err := c.dtls.StartHandshake(c.cfg.IsClient)
	if err != nil {
		c.fail(err.Error())
		return err
	}
	return c.sendAll(flight)
}

// Receive demultiplexes one inbound datagram per spec.md §4.6: DTLS records
// are checked before STUN, since a DTLS record's first byte also satisfies
// STUN's high-bits-zero test.
func (c *Connection) Receive(b []byte, remoteAddr *net.UDPAddr) error {
	c.mu.Lock()
	closed := c.state.isTerminal()
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	switch {
	case transport.IsDTLSRecord(b):
		return c.receiveDTLS(b)
	case stun.IsSTUN(b):
		return c.receiveSTUN(b, remoteAddr)
	default:
		c.log.Debugf("rtcconn: dropping unrecognized datagram, first byte 0x%02x", firstByte(b))
		return nil
	}
}

func firstByte(b []byte) byte {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

func (c *Connection) receiveSTUN(b []byte, remoteAddr *net.UDPAddr) error {
	if remoteAddr == nil {
		return nil
	}
	resp := c.iceAgent.ProcessSTUN(b, remoteAddr.IP, remoteAddr.Port)
	if resp == nil {
		return nil
	}
	return c.send(resp)
}

func (c *Connection) receiveDTLS(raw []byte) error {
	result, err := c.dtls.ProcessReceivedDatagram(raw)
	if err != nil {
		c.fail(err.Error())
		return err
	}

	if err := c.sendAll(result.DatagramsToSend); err != nil {
		return err
	}

	if result.HandshakeComplete {
		if err := c.onHandshakeComplete(); err != nil {
			return err
		}
	}

	if len(result.ApplicationData) > 0 {
		return c.handleSCTPData(result.ApplicationData)
	}
	return nil
}

// onHandshakeComplete implements spec.md §4.6's post-handshake sequence:
// verify the remote fingerprint (clients only), move to sctpConnecting, and
// have the client side originate SCTP INIT over the now-encrypted channel.
func (c *Connection) onHandshakeComplete() error {
	c.mu.Lock()
	if c.handshakeDone {
		c.mu.Unlock()
		return nil
	}
	c.handshakeDone = true
	c.mu.Unlock()

	if c.cfg.IsClient && c.cfg.ExpectedRemoteFingerprint != "" {
		if c.dtls.RemoteFingerprint() != c.cfg.ExpectedRemoteFingerprint {
			c.fail(ReasonFingerprintMismatch)
			return errors.New("rtcconn: " + ReasonFingerprintMismatch)
		}
	}

	c.advanceState(StateSCTPConnecting)

	if !c.cfg.IsClient {
		return nil
	}

	raw, err := c.assoc.Start()
	if err != nil {
		c.fail(err.Error())
		return err
	}
	return c.sendEncrypted(raw)
}

func (c *Connection) handleSCTPData(data []byte) error {
	outbound, delivered, err := c.assoc.HandleIngress(data, time.Now())
	if err != nil {
		c.fail(err.Error())
		return err
	}

	c.checkEstablished()

	for _, raw := range outbound {
		if err := c.sendEncrypted(raw); err != nil {
			return err
		}
	}

	for _, msg := range delivered {
		c.routeMessage(msg)
	}
	return nil
}

func (c *Connection) checkEstablished() {
	if c.assoc.State() != sctp.StateEstablished {
		return
	}
	c.advanceState(StateConnected)
}

// routeMessage dispatches one reassembled SCTP message: DCEP control
// traffic is consumed by the channel manager, everything else reaches the
// user-supplied data handler.
func (c *Connection) routeMessage(msg sctp.AssembledMessage) {
	if msg.PPID == sctp.PPIDDCEP {
		c.routeDCEP(msg)
		return
	}

	c.mu.Lock()
	handler := c.dataHandler
	c.mu.Unlock()
	if handler != nil {
		handler(msg.StreamID, msg.Data)
	}
}

func (c *Connection) routeDCEP(msg sctp.AssembledMessage) {
	switch {
	case dcep.IsOpen(msg.Data):
		ch, ack, err := c.dcepMgr.HandleOpen(msg.StreamID, msg.Data)
		if err != nil {
			c.log.Debugf("rtcconn: bad DATA_CHANNEL_OPEN on stream %d: %v", msg.StreamID, err)
			return
		}
		c.incomingChannels.Push(ch)
		if err := c.sendSCTP(msg.StreamID, sctp.PPIDDCEP, ack, false); err != nil {
			c.log.Debugf("rtcconn: send DATA_CHANNEL_ACK: %v", err)
		}
	case dcep.IsAck(msg.Data):
		if _, err := c.dcepMgr.HandleAck(msg.StreamID); err != nil {
			c.log.Debugf("rtcconn: ack for unknown channel %d: %v", msg.StreamID, err)
		}
	}
}

// OpenDataChannel negotiates a new data channel: it allocates a stream id,
// sends DATA_CHANNEL_OPEN, and returns the channel in state connecting.
func (c *Connection) OpenDataChannel(label string, ordered bool) (*dcep.Channel, error) {
	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}

	ch, payload, err := c.dcepMgr.OpenChannel(label, ordered)
	if err != nil {
		return nil, err
	}
	if err := c.sendSCTP(ch.ID, sctp.PPIDDCEP, payload, false); err != nil {
		return nil, err
	}
	return ch, nil
}

// Send transmits payload on an established data channel's stream, ordered
// or unordered as that channel was opened.
func (c *Connection) Send(payload []byte, streamID uint16, binary bool) error {
	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	unordered := false
	if ch, ok := c.dcepMgr.Channel(streamID); ok {
		unordered = !ch.Ordered
	}

	ppid := choosePPID(payload, binary)
	return c.sendSCTP(streamID, ppid, payload, unordered)
}

func choosePPID(payload []byte, binary bool) sctp.PPID {
	switch {
	case binary && len(payload) == 0:
		return sctp.PPIDEmptyBinary
	case binary:
		return sctp.PPIDBinary
	case len(payload) == 0:
		return sctp.PPIDEmptyString
	default:
		return sctp.PPIDString
	}
}

func (c *Connection) sendSCTP(streamID uint16, ppid sctp.PPID, data []byte, unordered bool) error {
	fragments, err := c.assoc.Send(streamID, ppid, data, unordered, time.Now())
	if err != nil {
		return err
	}
	for _, raw := range fragments {
		if err := c.sendEncrypted(raw); err != nil {
			return err
		}
	}
	return nil
}

// Tick drives time-based work: SCTP retransmission timeout checks. It is
// not part of the ingress/egress data path and has no STUN/DTLS analogue,
// since ICE-Lite never originates checks and the DTLS collaborator owns its
// own retransmit timing internally.
func (c *Connection) Tick() error {
	outbound, err := c.assoc.HandleTimerTick(time.Now())
	if err != nil {
		c.fail(err.Error())
		if errors.Is(err, sctp.ErrMaxRetransmitsExceeded) {
			if raw, aerr := c.assoc.Abort(err.Error()); aerr == nil {
				_ = c.sendEncrypted(raw)
			}
		}
		return err
	}
	for _, raw := range outbound {
		if err := c.sendEncrypted(raw); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) sendEncrypted(plaintext []byte) error {
	if len(plaintext) == 0 {
		return nil
	}
	cipher, err := c.dtls.WriteApplicationData(plaintext)
	if err != nil {
		return errors.Wrap(err, "rtcconn: encrypt outbound sctp packet")
	}
	return c.send(cipher)
}

func (c *Connection) sendAll(datagrams [][]byte) error {
	for _, d := range datagrams {
		if err := c.send(d); err != nil {
			return err
		}
	}
	return nil
}

// advanceState moves the state machine forward only, never regressing it.
// Recursive synchronous send callbacks mean a handshake-complete callback
// can still be unwinding the stack after nested SCTP processing already
// pushed the state past sctpConnecting straight to connected; without this
// guard that unwind would clobber connected back down.
func (c *Connection) advanceState(target State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.isTerminal() {
		return
	}
	if target > c.state {
		c.state = target
	}
}

func (c *Connection) fail(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.isTerminal() {
		return
	}
	c.state = StateFailed
	c.failReason = reason
}

// Close tears the connection down: DTLS, the SCTP association, the ICE
// agent, and the incoming-channels sequence all stop accepting work.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.mu.Unlock()

	c.iceAgent.Close()
	c.assoc.Close()
	c.incomingChannels.Close()
	return c.dtls.Close()
}
