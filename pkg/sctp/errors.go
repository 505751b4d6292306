// Package sctp implements the RFC 4960 packet/chunk codec and association
// engine from spec.md §4.3/§4.4: TSN tracking, selective acknowledgment,
// fragment reassembly, retransmission with RTT-driven timeouts and
// congestion control, and the cookie-based four-way handshake. Grounded on
// the vendored github.com/pion/sctp package (packet.go, chunk_*.go,
// association.go, reassembly_queue.go, pending_queue.go), reimplemented
// per spec.md §1 rather than imported, since this is the core protocol
// plane the specification exists to describe.
package sctp

import "github.com/pkg/errors"

// Error kinds from spec.md §7 "SCTP".
var (
	ErrInsufficientData        = errors.New("sctp: insufficient data")
	ErrInvalidFormat           = errors.New("sctp: invalid format")
	ErrChecksumMismatch        = errors.New("sctp: checksum mismatch")
	ErrCookieValidationFailed  = errors.New("sctp: cookie validation failed")
	ErrCookieExpired           = errors.New("sctp: cookie expired")
	ErrMaxRetransmitsExceeded  = errors.New("sctp: max retransmits exceeded")
	ErrAssociationFailed       = errors.New("sctp: association failed")
	ErrStreamReset             = errors.New("sctp: stream reset")
	ErrTimeout                 = errors.New("sctp: timeout")
	ErrClosed                  = errors.New("sctp: association closed")
	ErrInvalidState            = errors.New("sctp: invalid state for operation")
)

// ChecksumMismatchError carries the expected/actual CRC-32C values.
type ChecksumMismatchError struct {
	Expected, Actual uint32
}

func (e *ChecksumMismatchError) Error() string {
	return errors.Errorf("sctp: checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual).Error()
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }
