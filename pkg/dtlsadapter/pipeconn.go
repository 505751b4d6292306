package dtlsadapter

import (
	"io"
	"net"
	"sync"
	"time"
)

type pipeAddr struct{ s string }

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return a.s }

// pipeConn is a net.Conn shim that bridges github.com/pion/dtls/v2's
// blocking, goroutine-driven handshake API to Adapter's synchronous
// feed-one-datagram interface. It carries no real socket: inbound datagrams
// are pushed in by Adapter, outbound ones are drained back out by it.
//
// pion/dtls keeps exactly one goroutine alive for the whole life of a
// *dtls.Conn (the readAndBuffer loop started in conn.go's handshake
// method), and that goroutine only ever blocks inside Read while waiting
// for the next datagram. Read signals idle immediately before it blocks,
// which tells Adapter the FSM has fully reacted to whatever was last fed
// or written and gone back to sleep, so it's safe to drain outbound.
type pipeConn struct {
	inbound  chan []byte
	outbound chan []byte
	idle     chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		inbound:  make(chan []byte, 4),
		outbound: make(chan []byte, 32),
		idle:     make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

func (p *pipeConn) Read(b []byte) (int, error) {
	select {
	case p.idle <- struct{}{}:
	default:
	}
	select {
	case raw := <-p.inbound:
		return copy(b, raw), nil
	case <-p.closed:
		return 0, io.EOF
	}
}

func (p *pipeConn) Write(b []byte) (int, error) {
	cp := append([]byte(nil), b...)
	select {
	case p.outbound <- cp:
		return len(b), nil
	case <-p.closed:
		return 0, net.ErrClosed
	}
}

func (p *pipeConn) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) LocalAddr() net.Addr  { return pipeAddr{"local"} }
func (p *pipeConn) RemoteAddr() net.Addr { return pipeAddr{"remote"} }

func (p *pipeConn) SetDeadline(time.Time) error      { return nil }
func (p *pipeConn) SetReadDeadline(time.Time) error  { return nil }
func (p *pipeConn) SetWriteDeadline(time.Time) error { return nil }
