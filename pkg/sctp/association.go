package sctp

import (
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pkg/errors"

	"github.com/webrtcstack/core/internal/randgen"
)

// defaultRecvWindow is the a_rwnd this stack advertises; data channels over
// a single DTLS connection never need SCTP-level flow control to bite, so a
// generous fixed window avoids needing a receive-buffer accounting pass.
const defaultRecvWindow = 128 * 1024

const fragmentPayloadSize = mtu - chunkHeaderSize - dataHeaderSize

// Association is the SCTP association engine, spec.md §4.4: drives the
// cookie handshake for either role, tracks inbound TSNs and reassembles
// fragments, generates SACKs, and retransmits unacknowledged DATA under
// RFC 4960 §6.3's RTO/congestion rules. Grounded on the vendored
// github.com/pion/sctp Association type, reimplemented directly against
// spec.md §4.4 rather than copied.
type Association struct {
	cfg Config
	log logging.LeveledLogger

	mu    sync.Mutex
	state AssocState

	localVerificationTag  uint32
	remoteVerificationTag uint32
	localInitialTSN       uint32
	nextTSN               uint32
	peerInitialTSN        uint32
	peerARwnd             uint32

	cookieSecret []byte

	tracker     *tsnTracker
	reasm       *reassembler
	retransmitQ *retransmitQueue

	outStreamSeq map[uint16]uint16

	lastError error
}

// NewAssociation creates an Association ready to Start (client) or accept
// an incoming INIT (server).
func NewAssociation(cfg Config) (*Association, error) {
	cfg = cfg.withDefaults()

	localTag, err := randgen.Uint32()
	if err != nil {
		return nil, errors.Wrap(err, "sctp: generate verification tag")
	}
	initialTSN, err := randgen.Uint32()
	if err != nil {
		return nil, errors.Wrap(err, "sctp: generate initial TSN")
	}

	secret := cfg.CookieSecret
	if len(secret) == 0 {
		secret = make([]byte, cookieSecretSize)
		if err := randgen.Bytes(secret); err != nil {
			return nil, errors.Wrap(err, "sctp: generate cookie secret")
		}
	}

	return &Association{
		cfg:                  cfg,
		log:                  cfg.LoggerFactory.NewLogger("sctp"),
		state:                StateClosed,
		localVerificationTag: localTag,
		localInitialTSN:      initialTSN,
		nextTSN:              initialTSN,
		cookieSecret:         secret,
		reasm:                newReassembler(cfg.MaxFragmentGroups),
		retransmitQ:          newRetransmitQueue(cfg.MaxRetransmits),
		outStreamSeq:         make(map[uint16]uint16),
	}, nil
}

// State returns the current association state.
func (a *Association) State() AssocState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// LastError returns the error that drove the association closed, if any.
func (a *Association) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastError
}

// Start begins the client-side handshake by emitting INIT. Server-role
// associations wait for an incoming INIT via HandleIngress and return
// (nil, nil) here.
func (a *Association) Start() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.cfg.IsClient {
		return nil, nil
	}
	if a.state != StateClosed {
		return nil, ErrInvalidState
	}

	init := &ChunkInit{initCommon{
		InitiateTag:     a.localVerificationTag,
		ARwnd:           defaultRecvWindow,
		OutboundStreams: a.cfg.OutboundStreams,
		InboundStreams:  a.cfg.InboundStreams,
		InitialTSN:      a.localInitialTSN,
	}}

	raw, err := a.newPacket(init).Marshal()
	if err != nil {
		return nil, err
	}
	a.state = StateCookieWait
	return raw, nil
}

// HandleIngress decodes one inbound datagram, advances the state machine,
// and returns any packets it must send in reply along with newly
// reassembled application messages.
func (a *Association) HandleIngress(raw []byte, now time.Time) (outbound [][]byte, delivered []AssembledMessage, err error) {
	p, uerr := Unmarshal(raw)
	if uerr != nil {
		// A packet that fails checksum validation or carries a corrupted
		// chunk header was never validated as a whole (spec.md §7); drop
		// it the same way an unexpected verification tag is dropped,
		// rather than failing the association.
		a.log.Debugf("sctp: dropping unparseable packet: %v", uerr)
		return nil, nil, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.tagAcceptable(p) {
		a.log.Debugf("sctp: dropping packet with unexpected verification tag")
		return nil, nil, nil
	}

	var sawData bool
	for _, c := range p.Chunks() {
		switch v := c.(type) {
		case *ChunkInit:
			raw, herr := a.handleInit(v, now)
			if herr != nil {
				return outbound, delivered, herr
			}
			if raw != nil {
				outbound = append(outbound, raw)
			}
		case *ChunkInitAck:
			raw, herr := a.handleInitAck(v)
			if herr != nil {
				return outbound, delivered, herr
			}
			if raw != nil {
				outbound = append(outbound, raw)
			}
		case *ChunkCookieEcho:
			raw, herr := a.handleCookieEcho(v, now)
			if herr != nil {
				return outbound, delivered, herr
			}
			if raw != nil {
				outbound = append(outbound, raw)
			}
		case *ChunkCookieAck:
			a.handleCookieAck()
		case *ChunkData:
			sawData = true
			delivered = append(delivered, a.handleData(v)...)
		case *ChunkSack:
			a.handleSack(v, now)
		case *ChunkHeartbeat:
			if !v.IsAck() {
				raw, herr := a.newPacket(NewHeartbeatAck(v.Info)).Marshal()
				if herr == nil {
					outbound = append(outbound, raw)
				}
			}
		case *ChunkShutdown:
			raw := a.handleShutdown(v, now)
			if raw != nil {
				outbound = append(outbound, raw)
			}
		case *ChunkShutdownAck:
			raw := a.handleShutdownAck()
			if raw != nil {
				outbound = append(outbound, raw)
			}
		case *ChunkShutdownComplete:
			a.state = StateClosed
		case *ChunkAbort:
			a.state = StateClosed
			a.lastError = errors.Wrap(ErrAssociationFailed, v.Reason)
		case *ChunkError:
			a.log.Warnf("sctp: peer reported error: %s", v.Reason)
		}
	}

	if sawData && a.state == StateEstablished {
		raw, serr := a.newPacket(a.buildSack()).Marshal()
		if serr == nil {
			outbound = append(outbound, raw)
		}
	}

	return outbound, delivered, nil
}

// tagAcceptable implements the verification-tag check of spec.md §4.3: an
// INIT-only packet carries VT=0 before either side knows the other's tag,
// so it is exempt; every other packet must echo this association's local
// tag.
func (a *Association) tagAcceptable(p *Packet) bool {
	chunks := p.Chunks()
	if len(chunks) == 1 {
		if _, ok := chunks[0].(*ChunkInit); ok {
			return true
		}
	}
	return p.VerificationTag == a.localVerificationTag
}

func (a *Association) handleInit(c *ChunkInit, now time.Time) ([]byte, error) {
	a.remoteVerificationTag = c.InitiateTag
	a.peerInitialTSN = c.InitialTSN
	a.peerARwnd = c.ARwnd

	cookie := &stateCookie{
		TimestampMS:    now.UnixMilli(),
		PeerTag:        c.InitiateTag,
		LocalTag:       a.localVerificationTag,
		PeerInitialTSN: c.InitialTSN,
		PeerARwnd:      c.ARwnd,
		OutStreams:     a.cfg.OutboundStreams,
		InStreams:      a.cfg.InboundStreams,
	}

	ack := &ChunkInitAck{
		initCommon: initCommon{
			InitiateTag:     a.localVerificationTag,
			ARwnd:           defaultRecvWindow,
			OutboundStreams: a.cfg.OutboundStreams,
			InboundStreams:  a.cfg.InboundStreams,
			InitialTSN:      a.localInitialTSN,
		},
		Cookie: cookie.encode(a.cookieSecret),
	}

	p := &Packet{SourcePort: a.cfg.LocalPort, DestinationPort: a.cfg.RemotePort, VerificationTag: c.InitiateTag}
	p.AddChunk(ack)
	return p.Marshal()
}

func (a *Association) handleInitAck(c *ChunkInitAck) ([]byte, error) {
	if a.state != StateCookieWait {
		return nil, nil
	}
	a.remoteVerificationTag = c.InitiateTag
	a.peerInitialTSN = c.InitialTSN
	a.peerARwnd = c.ARwnd
	a.tracker = newTSNTracker(c.InitialTSN)

	echo := &ChunkCookieEcho{Cookie: c.Cookie}
	a.state = StateCookieEchoed
	return a.newPacket(echo).Marshal()
}

func (a *Association) handleCookieEcho(c *ChunkCookieEcho, now time.Time) ([]byte, error) {
	cookie, err := decodeStateCookie(c.Cookie, a.cookieSecret, now.UnixMilli())
	if err != nil {
		abort := &ChunkAbort{Reason: err.Error()}
		a.state = StateClosed
		a.lastError = err
		p := &Packet{SourcePort: a.cfg.LocalPort, DestinationPort: a.cfg.RemotePort, VerificationTag: a.remoteVerificationTag}
		p.AddChunk(abort)
		raw, _ := p.Marshal()
		return raw, nil
	}
	if cookie.LocalTag != a.localVerificationTag {
		return nil, ErrCookieValidationFailed
	}

	a.remoteVerificationTag = cookie.PeerTag
	a.peerInitialTSN = cookie.PeerInitialTSN
	a.peerARwnd = cookie.PeerARwnd
	a.tracker = newTSNTracker(cookie.PeerInitialTSN)
	a.state = StateEstablished

	return a.newPacket(&ChunkCookieAck{}).Marshal()
}

func (a *Association) handleCookieAck() {
	if a.state == StateCookieEchoed {
		a.state = StateEstablished
	}
}

func (a *Association) handleData(c *ChunkData) []AssembledMessage {
	if a.state != StateEstablished || a.tracker == nil {
		return nil
	}
	if !a.tracker.receive(c.TSN) {
		return nil
	}
	a.reasm.evictStale(a.tracker.cumulative(), defaultMaxFragmentTSNDistance)
	return a.reasm.push(c)
}

func (a *Association) buildSack() *ChunkSack {
	return &ChunkSack{
		CumulativeTSNAck: a.tracker.cumulative(),
		ARwnd:            defaultRecvWindow,
		GapBlocks:        a.tracker.gapBlocks(),
		DuplicateTSNs:    a.tracker.takeDuplicates(),
	}
}

func (a *Association) handleSack(c *ChunkSack, now time.Time) {
	a.peerARwnd = c.ARwnd
	a.retransmitQ.acknowledge(c.CumulativeTSNAck, c.GapBlocks, now)
}

// handleShutdown replies with SHUTDOWN-ACK immediately: this stack has no
// partial-reliability or bundling window where inbound DATA can still be
// pending once SHUTDOWN arrives in the established state, so there is
// nothing to drain first (SPEC_FULL.md §5).
func (a *Association) handleShutdown(c *ChunkShutdown, now time.Time) []byte {
	if a.state != StateEstablished && a.state != StateShutdownSent {
		return nil
	}
	a.retransmitQ.acknowledge(c.CumulativeTSNAck, nil, now)
	a.state = StateShutdownAckSent
	raw, err := a.newPacket(&ChunkShutdownAck{}).Marshal()
	if err != nil {
		return nil
	}
	return raw
}

func (a *Association) handleShutdownAck() []byte {
	a.state = StateClosed
	raw, err := a.newPacket(&ChunkShutdownComplete{}).Marshal()
	if err != nil {
		return nil
	}
	return raw
}

// Shutdown initiates the graceful close sequence (RFC 4960 §9.2,
// SPEC_FULL.md §5).
func (a *Association) Shutdown() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateEstablished {
		return nil, ErrInvalidState
	}
	a.state = StateShutdownSent
	var cumulative uint32
	if a.tracker != nil {
		cumulative = a.tracker.cumulative()
	}
	return a.newPacket(&ChunkShutdown{CumulativeTSNAck: cumulative}).Marshal()
}

// Abort unilaterally tears down the association and builds an ABORT
// chunk to notify the peer.
func (a *Association) Abort(reason string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateClosed
	a.lastError = errors.Wrap(ErrAssociationFailed, reason)
	return a.newPacket(&ChunkAbort{Reason: reason}).Marshal()
}

// Close tears down local state without notifying the peer.
func (a *Association) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateClosed
}

// Send fragments data per fragmentPayloadSize, assigns TSNs and (for
// ordered streams) a monotonic per-stream sequence number, enqueues each
// fragment on the retransmission queue, and returns the wire packets to
// send now.
func (a *Association) Send(streamID uint16, ppid PPID, data []byte, unordered bool, now time.Time) ([][]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateEstablished {
		return nil, ErrInvalidState
	}

	var seq uint16
	if !unordered {
		seq = a.outStreamSeq[streamID]
		a.outStreamSeq[streamID] = seq + 1
	}

	if len(data) == 0 {
		data = []byte{}
	}

	var packets [][]byte
	for off := 0; off == 0 || off < len(data); off += fragmentPayloadSize {
		end := off + fragmentPayloadSize
		if end > len(data) {
			end = len(data)
		}
		chunkData := &ChunkData{
			Unordered: unordered,
			Begin:     off == 0,
			End:       end == len(data),
			TSN:       a.nextTSN,
			StreamID:  streamID,
			StreamSeq: seq,
			PPID:      ppid,
			UserData:  append([]byte{}, data[off:end]...),
		}
		a.nextTSN++

		raw, err := a.newPacket(chunkData).Marshal()
		if err != nil {
			return nil, err
		}
		a.retransmitQ.enqueue(chunkData, raw, now)
		packets = append(packets, raw)

		if len(data) == 0 {
			break
		}
	}
	return packets, nil
}

// HandleTimerTick drives retransmission timeouts (RFC 4960 §6.3.3). It
// returns any packets that must be resent, or ErrMaxRetransmitsExceeded
// once a chunk has exhausted its retry budget — the caller should then
// Abort. There is no internal timer thread (spec.md §5): callers invoke
// this periodically.
func (a *Association) HandleTimerTick(now time.Time) ([][]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateEstablished {
		return nil, nil
	}

	due, err := a.retransmitQ.pendingRetransmissions(now)
	if err != nil {
		return nil, err
	}

	var packets [][]byte
	for _, c := range due {
		raw, merr := a.newPacket(c).Marshal()
		if merr != nil {
			return packets, merr
		}
		packets = append(packets, raw)
	}
	return packets, nil
}

// Heartbeat builds a HEARTBEAT chunk carrying info, to be sent on an
// idle-timeout timer owned by the caller.
func (a *Association) Heartbeat(info []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateEstablished {
		return nil, ErrInvalidState
	}
	return a.newPacket(NewHeartbeat(info)).Marshal()
}

func (a *Association) newPacket(chunks ...chunk) *Packet {
	p := &Packet{
		SourcePort:      a.cfg.LocalPort,
		DestinationPort: a.cfg.RemotePort,
		VerificationTag: a.remoteVerificationTag,
	}
	for _, c := range chunks {
		p.AddChunk(c)
	}
	return p
}
