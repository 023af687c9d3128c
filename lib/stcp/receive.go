package stcp

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// receiveLoop pumps raw bytes from conn into the packet buffer until the
// socket closes. Read deadlines keep it responsive to Close.
func (s *Socket) receiveLoop(conn net.Conn) {
	defer s.wg.Done()
	defer s.cfg.Metrics.SocketClosed()

	buf := make([]byte, s.cfg.BufferSize)
	for {
		if s.ctx.Err() != nil {
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			s.stop(err)
			return
		}
		n, err := conn.Read(buf)
		if n > 0 {
			s.cfg.Metrics.Read(n)
			s.buffer.Push(buf[:n])
			s.signal()
		}
		switch {
		case err == nil, isTimeout(err):
			continue
		case s.ctx.Err() != nil:
			return
		case isPeerClosed(err):
			s.logger.WithError(err).Debug("Peer closed connection")
			s.stop(nil)
			return
		default:
			s.stop(err)
			return
		}
	}
}

// stop closes the socket from inside the receive loop. A non-nil err is
// recorded and reported by the next Recv or Send.
func (s *Socket) stop(err error) {
	if err != nil {
		s.mu.Lock()
		if s.fatal == nil {
			s.fatal = err
		}
		s.mu.Unlock()
		s.logger.WithError(err).Error("Receive loop failed")
	}
	s.cancel()
	s.closeConn()
	s.signal()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isPeerClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}
