// Package ice implements the ICE-Lite agent from spec.md §4.2: always
// controlled, never initiates checks, validates incoming STUN binding
// requests and echoes XOR-MAPPED-ADDRESS in success responses. Grounded on
// the vendored github.com/pion/ice package's connectivity-check validation
// shape, but hand-rolled per spec.md §1 (ICE full mode is a Non-goal; the
// teacher's full-mode agent is not a fit for a Lite-only responder).
package ice

import (
	"net"
	"sync"

	"github.com/pion/logging"
	"github.com/webrtcstack/core/pkg/stun"
)

// PeerAddr identifies a validated remote peer by socket address.
type PeerAddr struct {
	IP   string
	Port int
}

func peerAddrOf(ip net.IP, port int) PeerAddr {
	return PeerAddr{IP: ip.String(), Port: port}
}

// AgentConfig configures a new Agent. Zero value uses spec.md §4.2
// defaults.
type AgentConfig struct {
	UfragLength     int
	PasswordLength  int
	LoggerFactory   logging.LoggerFactory
}

// Agent is the ICE-Lite responder for one connection.
type Agent struct {
	log logging.LeveledLogger

	mu             sync.Mutex
	state          State
	creds          Credentials
	validatedPeers map[PeerAddr]struct{}
}

// NewAgent creates an Agent with freshly generated local credentials.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	ufragLen := cfg.UfragLength
	if ufragLen == 0 {
		ufragLen = DefaultUfragLength
	}
	passwordLen := cfg.PasswordLength
	if passwordLen == 0 {
		passwordLen = DefaultPasswordLength
	}
	creds, err := generateCredentials(ufragLen, passwordLen)
	if err != nil {
		return nil, err
	}

	loggerFactory := cfg.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	return &Agent{
		log:            loggerFactory.NewLogger("ice"),
		state:          StateNew,
		creds:          creds,
		validatedPeers: make(map[PeerAddr]struct{}),
	}, nil
}

// LocalCredentials returns the agent's local ufrag/password pair.
func (a *Agent) LocalCredentials() Credentials {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.creds
}

// SetRemoteCredentials records the remote ufrag/password pair learned via
// signaling. Any prior state of new transitions to checking, per spec.md
// §4.2.
func (a *Agent) SetRemoteCredentials(ufrag, password string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds.RemoteUfrag = ufrag
	a.creds.RemotePassword = password
	if a.state == StateNew {
		a.state = StateChecking
	}
}

// State returns the current agent state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Complete is the explicit post-DTLS signal from the orchestrator
// (spec.md §4.2).
func (a *Agent) Complete() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.state.isTerminal() {
		a.state = StateCompleted
	}
}

// Fail transitions the agent to failed from any non-terminal state.
func (a *Agent) Fail() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.state.isTerminal() {
		a.state = StateFailed
	}
}

// Close transitions the agent to closed.
func (a *Agent) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateClosed
	a.validatedPeers = nil
}

// IsPeerValidated reports whether (ip, port) previously passed a binding
// check.
func (a *Agent) IsPeerValidated(ip net.IP, port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.validatedPeers[peerAddrOf(ip, port)]
	return ok
}

// ProcessSTUN implements spec.md §4.2's numbered validation sequence. It
// returns the encoded response to send back, or nil if there is nothing to
// send (not STUN, not a binding request, or a decode failure).
func (a *Agent) ProcessSTUN(raw []byte, srcIP net.IP, srcPort int) []byte {
	if !stun.IsSTUN(raw) {
		return nil
	}
	m, err := stun.Decode(raw)
	if err != nil {
		a.log.Debugf("ice: decode failed: %v", err)
		return nil
	}
	if m.Type != stun.BindingRequest {
		return nil
	}

	a.mu.Lock()
	localUfrag := a.creds.LocalUfrag
	localPassword := a.creds.LocalPassword
	a.mu.Unlock()

	username, err := m.Username()
	if err != nil {
		return a.errorResponse(m, 400, "Bad Request", localPassword)
	}
	remoteUfrag, theirLocalUfrag, ok := splitUsername(username)
	if !ok {
		return a.errorResponse(m, 400, "Bad Request", localPassword)
	}
	_ = remoteUfrag
	if theirLocalUfrag != localUfrag {
		return a.errorResponse(m, 401, "Unauthorized", localPassword)
	}

	if _, err := m.Get(stun.AttrFingerprint); err == nil {
		ok, ferr := stun.VerifyFingerprint(raw)
		if ferr != nil || !ok {
			return a.errorResponse(m, 400, "Bad Request", localPassword)
		}
	}

	switch result, ierr := stun.VerifyMessageIntegrity(raw, localPassword); {
	case ierr != nil:
		return a.errorResponse(m, 401, "Unauthorized", localPassword)
	case result == stun.IntegrityMissing:
		return a.errorResponse(m, 401, "Unauthorized", localPassword)
	case result == stun.IntegrityInvalid:
		return a.errorResponse(m, 401, "Unauthorized", localPassword)
	}

	if m.HasICEControlled() {
		return a.errorResponse(m, 487, "Role Conflict", localPassword)
	}

	a.mu.Lock()
	a.validatedPeers[peerAddrOf(srcIP, srcPort)] = struct{}{}
	if a.state == StateNew || a.state == StateChecking {
		a.state = StateConnected
	}
	a.mu.Unlock()

	return a.successResponse(m, srcIP, srcPort, localPassword)
}

// splitUsername parses "remoteUfrag:localUfrag" and returns both halves.
func splitUsername(username string) (remote, local string, ok bool) {
	for i := 0; i < len(username); i++ {
		if username[i] == ':' {
			return username[:i], username[i+1:], true
		}
	}
	return "", "", false
}

func (a *Agent) successResponse(req *stun.Message, ip net.IP, port int, password string) []byte {
	resp, err := stun.New(stun.BindingSuccessResponse)
	if err != nil {
		return nil
	}
	resp.TransactionID = req.TransactionID
	resp.AddXORMappedAddress(ip, port)
	resp.AddMessageIntegrity(password)
	resp.AddFingerprint()
	return resp.Encode()
}

func (a *Agent) errorResponse(req *stun.Message, code int, reason, password string) []byte {
	resp, err := stun.New(stun.BindingErrorResponse)
	if err != nil {
		return nil
	}
	resp.TransactionID = req.TransactionID
	resp.AddErrorCode(code, reason)
	resp.AddMessageIntegrity(password)
	resp.AddFingerprint()
	return resp.Encode()
}
