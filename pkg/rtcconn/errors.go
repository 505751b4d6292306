package rtcconn

import "github.com/pkg/errors"

// ErrClosed is returned by any method called after Close.
var ErrClosed = errors.New("rtcconn: connection closed")

// ErrNotConnected is returned by OpenDataChannel/Send before the SCTP
// association has reached established.
var ErrNotConnected = errors.New("rtcconn: not connected")

// ReasonFingerprintMismatch is the State/FailReason value recorded when a
// client connection's negotiated DTLS fingerprint does not match the one
// learned out of band.
const ReasonFingerprintMismatch = "remote fingerprint mismatch"
