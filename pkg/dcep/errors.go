// Package dcep implements the Data Channel Establishment Protocol, spec.md
// §4.5: the DATA_CHANNEL_OPEN/ACK codec, channel id allocation, and the
// per-channel state machine. Grounded on the vendored
// github.com/pion/datachannel package's message.go/channel.go shape,
// reimplemented per spec.md §1 since DCEP is named as core.
package dcep

import "github.com/pkg/errors"

// Error kinds from spec.md §7 "DataChannel".
var (
	ErrInvalidFormat  = errors.New("dcep: invalid format")
	ErrChannelClosed  = errors.New("dcep: channel closed")
	ErrNotReady       = errors.New("dcep: not ready")
	ErrUnknownChannel = errors.New("dcep: unknown channel")
)
