package stun

import "github.com/pkg/errors"

// Error kinds from spec.md §4.1/§7.
var (
	// ErrInsufficientData is returned when a buffer is shorter than a
	// complete header or attribute requires.
	ErrInsufficientData = errors.New("stun: insufficient data")
	// ErrInvalidFormat covers any structural decode failure beyond length.
	ErrInvalidFormat = errors.New("stun: invalid format")
	// ErrInvalidMagicCookie is returned when the fixed magic cookie does
	// not match 0x2112A442.
	ErrInvalidMagicCookie = errors.New("stun: invalid magic cookie")
	// ErrAttributeNotFound is returned by Message.Get when an attribute is
	// absent.
	ErrAttributeNotFound = errors.New("stun: attribute not found")
	// ErrIntegrityCheckFailed names a failed MESSAGE-INTEGRITY check. No
	// function in this package returns it: VerifyMessageIntegrity reports an
	// HMAC mismatch as IntegrityInvalid with a nil error.
	ErrIntegrityCheckFailed = errors.New("stun: message integrity check failed")
	// ErrFingerprintCheckFailed names a failed FINGERPRINT check. No function
	// in this package returns it: VerifyFingerprint reports a CRC-32 mismatch
	// as false with a nil error.
	ErrFingerprintCheckFailed = errors.New("stun: fingerprint check failed")
)

// InsufficientDataError carries the expected/actual byte counts for
// diagnostics (spec.md §4.1 error kinds).
type InsufficientDataError struct {
	Expected, Actual int
}

func (e *InsufficientDataError) Error() string {
	return errors.Errorf("stun: insufficient data: expected >= %d, got %d", e.Expected, e.Actual).Error()
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// InvalidFormatError carries a human-readable reason.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return "stun: invalid format: " + e.Reason
}

func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// InvalidMagicCookieError carries the cookie value actually seen on the
// wire.
type InvalidMagicCookieError struct {
	Value uint32
}

func (e *InvalidMagicCookieError) Error() string {
	return errors.Errorf("stun: invalid magic cookie: 0x%08x", e.Value).Error()
}

func (e *InvalidMagicCookieError) Unwrap() error { return ErrInvalidMagicCookie }
