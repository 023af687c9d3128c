package stcp

import (
	"context"
	"net"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-stcp/stcp/lib/cipher"
)

// Listener accepts secure connections. Every accepted Socket gets its own
// clones of the listener's cipher.
type Listener struct {
	ln     net.Listener
	cipher cipher.Cipher
	opts   []Option
}

// Listen binds addr over TCP. opts apply to every accepted socket.
func Listen(ctx context.Context, addr string, c cipher.Cipher, opts ...Option) (*Listener, error) {
	if c == nil {
		c = cipher.NewNoCipher()
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, oops.Wrapf(err, "listening on %s", addr)
	}
	log.WithFields(logger.Fields{
		"at":      "stcp.Listen",
		"address": ln.Addr().String(),
		"cipher":  c.Name(),
	}).Debug("listening")
	return &Listener{ln: ln, cipher: c.Clone(), opts: opts}, nil
}

// Accept waits for the next connection and starts its receive loop.
func (l *Listener) Accept() (*Socket, net.Addr, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, nil, oops.Wrapf(err, "accepting on %s", l.ln.Addr())
	}
	s, err := FromConn(conn, l.cipher, l.opts...)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	log.WithFields(logger.Fields{
		"at":     "stcp.Listener.Accept",
		"remote": conn.RemoteAddr().String(),
	}).Debug("accepted")
	return s, conn.RemoteAddr(), nil
}

// Addr is the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting. Accepted sockets stay open.
func (l *Listener) Close() error {
	return l.ln.Close()
}
