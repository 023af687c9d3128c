// Package stcp is a secure length-framed transport over TCP.
//
// Every payload is encrypted under fresh cipher parameters and framed as one
// packet. A background goroutine per connection reads raw bytes into a
// packet buffer; Recv hands out decrypted payloads one at a time.
package stcp

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/go-stcp/stcp/lib/cipher"
	"github.com/go-stcp/stcp/lib/metrics"
	"github.com/go-stcp/stcp/lib/packet"
	"github.com/go-stcp/stcp/lib/packetbuffer"
	"github.com/go-stcp/stcp/lib/securepacket"
)

var log = logger.GetGoI2PLogger()

// Socket is one secure connection. Send and Recv may run concurrently with
// each other; concurrent Sends are serialized, as are concurrent Recvs.
type Socket struct {
	cfg    Config
	logger *logrus.Entry

	// Send and receive use separate clones of the configured cipher so
	// outbound parameter resets never race inbound parameter updates.
	sendMu     sync.Mutex
	sendCipher cipher.Cipher
	encoder    *securepacket.Encoder

	recvMu     sync.Mutex
	recvCipher cipher.Cipher
	buffer     *packetbuffer.Buffer

	mu           sync.Mutex
	conn         net.Conn
	recvTimeout  *time.Duration
	pollInterval time.Duration
	fatal        error

	wake      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	connOnce  sync.Once
	connErr   error
	wg        sync.WaitGroup

	drops       atomic.Uint64
	dropLimiter *rate.Limiter
}

// New returns an unconnected socket. c is a template: the socket works on
// clones of it. A nil c sends in the clear.
func New(c cipher.Cipher, opts ...Option) *Socket {
	if c == nil {
		c = cipher.NewNoCipher()
	}
	cfg := buildConfig(opts)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Socket{
		cfg:          cfg,
		sendCipher:   c.Clone(),
		recvCipher:   c.Clone(),
		recvTimeout:  cfg.RecvTimeout,
		pollInterval: cfg.PollInterval,
		wake:         make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		dropLimiter:  rate.NewLimiter(rate.Every(cfg.WarnInterval), 1),
	}
	s.encoder = securepacket.NewEncoder(s.sendCipher)
	s.buffer = packetbuffer.New(securepacket.NewDecoder(s.recvCipher))
	s.logger = logrus.WithFields(logrus.Fields{
		"component": "stcp",
		"socket":    cfg.Name,
		"cipher":    c.Name(),
	})
	return s
}

// Dial connects to addr and starts receiving.
func Dial(ctx context.Context, addr string, c cipher.Cipher, opts ...Option) (*Socket, error) {
	s := New(c, opts...)
	if err := s.Connect(ctx, addr); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// FromConn wraps an already connected conn and starts receiving.
func FromConn(conn net.Conn, c cipher.Cipher, opts ...Option) (*Socket, error) {
	s := New(c, opts...)
	if err := s.attach(conn); err != nil {
		return nil, err
	}
	return s, nil
}

// Connect dials addr over TCP and starts the receive loop.
func (s *Socket) Connect(ctx context.Context, addr string) error {
	if s.IsClosed() {
		return ErrSocketClosed
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"at":      "stcp.Socket.Connect",
			"address": addr,
		}).Debug("dial_failed")
		return oops.Wrapf(err, "dialing %s", addr)
	}
	if err := s.attach(conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

func (s *Socket) attach(conn net.Conn) error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return ErrSocketClosed
	}
	if s.conn != nil {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.conn = conn
	s.logger = s.logger.WithFields(logrus.Fields{
		"local":  conn.LocalAddr().String(),
		"remote": conn.RemoteAddr().String(),
	})
	// wg.Add stays under mu: Close cancels, then takes mu, then waits.
	s.wg.Add(1)
	s.mu.Unlock()

	s.cfg.Metrics.SocketOpened()
	go s.receiveLoop(conn)
	s.logger.Debug("Socket connected")
	return nil
}

func (s *Socket) connection() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Name is the name the socket was configured with.
func (s *Socket) Name() string { return s.cfg.Name }

// LocalAddr returns the local address, or nil when not connected.
func (s *Socket) LocalAddr() net.Addr {
	if conn := s.connection(); conn != nil {
		return conn.LocalAddr()
	}
	return nil
}

// RemoteAddr returns the peer address, or nil when not connected.
func (s *Socket) RemoteAddr() net.Addr {
	if conn := s.connection(); conn != nil {
		return conn.RemoteAddr()
	}
	return nil
}

// IsClosed reports whether Close was called or the connection went away.
func (s *Socket) IsClosed() bool {
	return s.ctx.Err() != nil
}

// Done is closed when the socket closes.
func (s *Socket) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Dropped is the number of inbound packets dropped so far.
func (s *Socket) Dropped() uint64 {
	return s.drops.Load()
}

// SetTimeout sets the Recv timeout. Nil blocks forever, zero never blocks.
func (s *Socket) SetTimeout(d *time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == nil {
		s.recvTimeout = nil
		return
	}
	v := *d
	s.recvTimeout = &v
}

// SetPollInterval sets how often a blocked Recv re-checks the packet buffer.
func (s *Socket) SetPollInterval(d time.Duration) error {
	if d <= 0 {
		return oops.Wrapf(ErrInvalidPollPeriod, "got %s", d)
	}
	s.mu.Lock()
	s.pollInterval = d
	s.mu.Unlock()
	return nil
}

func (s *Socket) timing() (*time.Duration, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvTimeout, s.pollInterval
}

func (s *Socket) closedErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closedError(s.fatal)
}

// Send encrypts data under fresh parameters and writes it as one packet
// with a single Write. It returns the number of wire bytes written, which
// is short only together with an error.
func (s *Socket) Send(data []byte) (int, error) {
	return s.send(data, func(conn net.Conn, wire []byte) (int, error) {
		return conn.Write(wire)
	})
}

// SendAll is Send for writers that may accept a packet in part: it keeps
// writing until the whole packet is out or a write fails.
func (s *Socket) SendAll(data []byte) (int, error) {
	return s.send(data, writeAll)
}

func writeAll(conn net.Conn, wire []byte) (int, error) {
	written := 0
	for written < len(wire) {
		n, err := conn.Write(wire[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

func (s *Socket) send(data []byte, write func(net.Conn, []byte) (int, error)) (int, error) {
	if s.IsClosed() {
		return 0, s.closedErr()
	}
	conn := s.connection()
	if conn == nil {
		return 0, ErrNotConnected
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	start := time.Now()
	if err := s.sendCipher.ResetParams(); err != nil {
		return 0, oops.Wrapf(err, "resetting cipher parameters")
	}
	wire, err := s.encoder.Encode(data)
	if err != nil {
		return 0, err
	}

	written, err := write(conn, wire)
	if err != nil {
		if s.IsClosed() || isPeerClosed(err) {
			return written, s.closedErr()
		}
		return written, oops.Wrapf(err, "writing %d byte packet", len(wire))
	}
	s.cfg.Metrics.Sent(written, time.Since(start).Seconds())
	return written, nil
}

// Recv blocks until a payload arrives, the timeout elapses or the socket
// closes.
//
// A packet that can not be decoded (wrong cipher, failed authentication,
// corrupt framing) is dropped and Recv returns nil, nil; the caller may call
// Recv again. Once the socket is closed and every buffered packet has been
// returned, Recv fails with ErrSocketClosed.
func (s *Socket) Recv() ([]byte, error) {
	return s.RecvContext(context.Background())
}

// RecvContext is Recv that also gives up when ctx is done.
func (s *Socket) RecvContext(ctx context.Context) ([]byte, error) {
	if s.connection() == nil && !s.IsClosed() {
		return nil, ErrNotConnected
	}
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	timeout, poll := s.timing()
	var deadline <-chan time.Time
	if timeout != nil && *timeout > 0 {
		timer := time.NewTimer(*timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		payload, err := s.buffer.Pop()
		switch {
		case err == nil && payload != nil:
			s.cfg.Metrics.Received()
			return payload, nil
		case err == nil, errors.Is(err, packet.ErrCannotExtractPacket):
		default:
			s.dropPacket(err)
			return nil, nil
		}

		if s.buffer.Len() > 0 {
			continue
		}
		if s.IsClosed() {
			return nil, s.closedErr()
		}
		if timeout != nil && *timeout == 0 {
			return nil, ErrSocketTimeout
		}

		select {
		case <-s.wake:
		case <-ticker.C:
		case <-s.ctx.Done():
		case <-deadline:
			return nil, oops.Wrapf(ErrSocketTimeout, "no payload within %s", *timeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Socket) dropPacket(err error) {
	reason := metrics.ReasonFraming
	switch {
	case errors.Is(err, securepacket.ErrCipherTypeMismatch):
		reason = metrics.ReasonCipherMismatch
	case errors.Is(err, cipher.ErrDecryptFailed):
		reason = metrics.ReasonDecryptFailed
	}
	total := s.drops.Add(1)
	s.cfg.Metrics.Dropped(reason)

	entry := s.logger.WithError(err).WithFields(logrus.Fields{
		"reason":        reason,
		"dropped_total": total,
	})
	if s.dropLimiter.Allow() {
		entry.Warn("Dropping inbound packet")
		return
	}
	entry.Debug("Dropping inbound packet")
}

// signal wakes a waiting Recv. The channel holds one token so a wake sent
// while nobody waits is not lost.
func (s *Socket) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close stops the receive loop and closes the connection. It is safe to
// call more than once and from any goroutine.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeConn()
		s.wg.Wait()
		s.logger.Debug("Socket closed")
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connErr != nil && !errors.Is(s.connErr, net.ErrClosed) {
		return s.connErr
	}
	return nil
}

// closeConn closes the raw connection exactly once.
func (s *Socket) closeConn() {
	conn := s.connection()
	if conn == nil {
		return
	}
	s.connOnce.Do(func() {
		err := conn.Close()
		s.mu.Lock()
		s.connErr = err
		s.mu.Unlock()
	})
}
