package rtcep

import "github.com/pkg/errors"

// ErrClosed is returned by Listener/Endpoint methods called after Close.
var ErrClosed = errors.New("rtcep: closed")
