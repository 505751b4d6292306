package dtlsadapter

import "github.com/pkg/errors"

// ErrAlreadyStarted is returned by StartHandshake if called more than once.
var ErrAlreadyStarted = errors.New("dtlsadapter: handshake already started")

// ErrNotStarted is returned by ProcessReceivedDatagram before StartHandshake.
var ErrNotStarted = errors.New("dtlsadapter: handshake not started")

// ErrHandshakeIncomplete is returned by WriteApplicationData before the
// handshake has completed. RemoteFingerprint returns an empty string in
// that case instead.
var ErrHandshakeIncomplete = errors.New("dtlsadapter: handshake not complete")
