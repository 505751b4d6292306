package ice

import "github.com/pkg/errors"

// Error kinds from spec.md §7 "ICE validation".
var (
	ErrMissingUsername          = errors.New("ice: missing username")
	ErrInvalidUsernameFormat    = errors.New("ice: invalid username format")
	ErrLocalUfragMismatch       = errors.New("ice: local ufrag mismatch")
	ErrMissingMessageIntegrity  = errors.New("ice: missing message integrity")
	ErrInvalidMessageIntegrity  = errors.New("ice: invalid message integrity")
	ErrFingerprintVerification  = errors.New("ice: fingerprint verification failed")
	ErrRoleConflict             = errors.New("ice: role conflict")
)
