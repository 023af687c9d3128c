package stcp

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-stcp/stcp/lib/cipher"
	"github.com/go-stcp/stcp/lib/metrics"
	"github.com/go-stcp/stcp/lib/securepacket"
)

func aesCTR(t *testing.T) cipher.Cipher {
	t.Helper()
	key := make([]byte, 16)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := cipher.NewAESCTR(key)
	require.NoError(t, err)
	return c
}

// pair returns a connected client and server socket over loopback.
func pair(t *testing.T, c cipher.Cipher, opts ...Option) (client, server *Socket) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln, err := Listen(ctx, "127.0.0.1:0", c, opts...)
	require.NoError(t, err)
	defer ln.Close()

	type accepted struct {
		s   *Socket
		err error
	}
	ch := make(chan accepted, 1)
	go func() {
		s, _, err := ln.Accept()
		ch <- accepted{s, err}
	}()

	client, err = Dial(ctx, ln.Addr().String(), c, opts...)
	require.NoError(t, err)
	a := <-ch
	require.NoError(t, a.err)
	t.Cleanup(func() {
		client.Close()
		a.s.Close()
	})
	return client, a.s
}

func TestHelloWorld(t *testing.T) {
	client, server := pair(t, aesCTR(t))

	_, err := client.Send([]byte("hello"))
	require.NoError(t, err)
	got, err := server.Recv()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	_, err = server.SendAll([]byte("world"))
	require.NoError(t, err)
	got, err = client.Recv()
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), got)

	require.NoError(t, client.Close())
	require.NoError(t, server.Close())
	_, err = client.Recv()
	assert.ErrorIs(t, err, ErrSocketClosed)
	_, err = server.Recv()
	assert.ErrorIs(t, err, ErrSocketClosed)
}

func TestEveryRegisteredCipher(t *testing.T) {
	for _, spec := range cipher.Registered() {
		spec := spec
		t.Run(spec.Name, func(t *testing.T) {
			var key []byte
			switch spec.ParamBlockSize() {
			case 0:
			case 1:
				key = []byte{0x42}
			default:
				key = make([]byte, 32)
				_, err := rand.Read(key)
				require.NoError(t, err)
			}
			c, err := spec.New(key)
			require.NoError(t, err)
			client, server := pair(t, c)

			for i := 0; i < 3; i++ {
				msg := []byte(fmt.Sprintf("message %d over %s", i, spec.Name))
				_, err := client.Send(msg)
				require.NoError(t, err)
				got, err := server.Recv()
				require.NoError(t, err)
				assert.Equal(t, msg, got)
			}
		})
	}
}

func TestLargePayloadSpansManyReads(t *testing.T) {
	client, server := pair(t, aesCTR(t), WithBufferSize(512))
	payload := make([]byte, 200*1024)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	go func() { _, _ = client.SendAll(payload) }()
	got, err := server.Recv()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestRecvTimeout(t *testing.T) {
	_, server := pair(t, aesCTR(t), WithRecvTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := server.Recv()
	assert.ErrorIs(t, err, ErrSocketTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	zero := time.Duration(0)
	server.SetTimeout(&zero)
	start = time.Now()
	_, err = server.Recv()
	assert.ErrorIs(t, err, ErrSocketTimeout)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRecvContext(t *testing.T) {
	_, server := pair(t, aesCTR(t))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := server.RecvContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPeerCloseWakesRecv(t *testing.T) {
	client, server := pair(t, aesCTR(t))

	errc := make(chan error, 1)
	go func() {
		_, err := server.Recv()
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, client.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSocketClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not observe the peer closing")
	}
	assert.True(t, server.IsClosed())
}

func TestLocalCloseWakesRecv(t *testing.T) {
	_, server := pair(t, aesCTR(t))

	errc := make(chan error, 1)
	go func() {
		_, err := server.Recv()
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, server.Close())
	require.NoError(t, server.Close(), "close is idempotent")

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSocketClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not observe Close")
	}
}

func TestBufferedPacketsOutliveClose(t *testing.T) {
	client, server := pair(t, aesCTR(t))
	for i := 0; i < 3; i++ {
		_, err := client.Send([]byte{byte(i)})
		require.NoError(t, err)
	}
	require.NoError(t, client.Close())

	for i := 0; i < 3; i++ {
		got, err := server.Recv()
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i)}, got)
	}
	_, err := server.Recv()
	assert.ErrorIs(t, err, ErrSocketClosed)
}

func TestSendAfterClose(t *testing.T) {
	client, _ := pair(t, aesCTR(t))
	require.NoError(t, client.Close())
	_, err := client.Send([]byte("late"))
	assert.ErrorIs(t, err, ErrSocketClosed)
}

func TestUnconnectedSocket(t *testing.T) {
	s := New(aesCTR(t))
	_, err := s.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.Recv()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Nil(t, s.RemoteAddr())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Connect(context.Background(), "127.0.0.1:1"), ErrSocketClosed)
}

func TestSetPollInterval(t *testing.T) {
	s := New(nil)
	assert.ErrorIs(t, s.SetPollInterval(0), ErrInvalidPollPeriod)
	assert.NoError(t, s.SetPollInterval(5*time.Millisecond))
	_, poll := s.timing()
	assert.Equal(t, 5*time.Millisecond, poll)
}

func TestMismatchedPacketIsDroppedNotFatal(t *testing.T) {
	local := aesCTR(t)
	a, b := net.Pipe()
	m, err := metrics.New(nil)
	require.NoError(t, err)
	server, err := FromConn(a, local, WithMetrics(m))
	require.NoError(t, err)
	defer server.Close()
	defer b.Close()

	foreign, err := cipher.NewAESCBC(make([]byte, 16))
	require.NoError(t, err)
	require.NoError(t, foreign.ResetParams())
	bad, err := securepacket.NewEncoder(foreign).Encode([]byte("intruder"))
	require.NoError(t, err)

	sender := local.Clone()
	require.NoError(t, sender.ResetParams())
	good, err := securepacket.NewEncoder(sender).Encode([]byte("legit"))
	require.NoError(t, err)

	go func() {
		_, _ = b.Write(bad)
		_, _ = b.Write(good)
	}()

	got, err := server.Recv()
	require.NoError(t, err)
	assert.Nil(t, got, "dropped packet yields an empty result")
	assert.Equal(t, uint64(1), server.Dropped())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedPackets.WithLabelValues(metrics.ReasonCipherMismatch)))

	got, err = server.Recv()
	require.NoError(t, err)
	assert.Equal(t, []byte("legit"), got)
	assert.False(t, server.IsClosed())
}

var errBoom = errors.New("boom")

type failingConn struct {
	net.Conn
}

func (c failingConn) Read([]byte) (int, error) { return 0, errBoom }

func TestReceiveLoopFailureSurfacesOnRecv(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	s, err := FromConn(failingConn{a}, nil)
	require.NoError(t, err)

	_, err = s.Recv()
	assert.ErrorIs(t, err, ErrSocketClosed)
	assert.ErrorIs(t, err, errBoom)
	_, err = s.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrSocketClosed)
}

func TestConcurrentSendAndRecv(t *testing.T) {
	client, server := pair(t, aesCTR(t))
	const n = 50

	var wg sync.WaitGroup
	send := func(from *Socket, tag string) {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_, err := from.Send([]byte(fmt.Sprintf("%s-%d", tag, i)))
			assert.NoError(t, err)
		}
	}
	collect := func(s *Socket, tag string) {
		defer wg.Done()
		for i := 0; i < n; i++ {
			got, err := s.Recv()
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, fmt.Sprintf("%s-%d", tag, i), string(got))
		}
	}
	wg.Add(4)
	go send(client, "up")
	go send(server, "down")
	go collect(server, "up")
	go collect(client, "down")
	wg.Wait()
}

func TestMetricsCountTraffic(t *testing.T) {
	m, err := metrics.New(nil)
	require.NoError(t, err)
	client, server := pair(t, aesCTR(t), WithMetrics(m))

	n, err := client.Send([]byte("hello"))
	require.NoError(t, err)
	_, err = server.Recv()
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsReceived))
	assert.Equal(t, float64(n), testutil.ToFloat64(m.BytesSent))
	assert.Equal(t, float64(n), testutil.ToFloat64(m.BytesReceived))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OpenSockets))
}

// shortWriteConn accepts at most limit bytes per Write.
type shortWriteConn struct {
	net.Conn
	limit int
}

func (c shortWriteConn) Write(p []byte) (int, error) {
	if len(p) > c.limit {
		p = p[:c.limit]
	}
	return c.Conn.Write(p)
}

func TestSendAllFinishesShortWrites(t *testing.T) {
	c := aesCTR(t)
	a, b := net.Pipe()
	sender, err := FromConn(shortWriteConn{Conn: a, limit: 7}, c)
	require.NoError(t, err)
	defer sender.Close()
	receiver, err := FromConn(b, c)
	require.NoError(t, err)
	defer receiver.Close()

	payload := []byte("a payload longer than one short write")
	n, err := sender.SendAll(payload)
	require.NoError(t, err)
	assert.Greater(t, n, len(payload))

	got, err := receiver.Recv()
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	n, err = sender.Send(payload)
	require.NoError(t, err)
	assert.Equal(t, 7, n, "Send issues exactly one Write")
}

func TestOptions(t *testing.T) {
	m, err := metrics.New(nil)
	require.NoError(t, err)
	cfg := buildConfig([]Option{
		WithBufferSize(4096),
		WithPollInterval(3 * time.Millisecond),
		WithReadTimeout(time.Second),
		WithWarnInterval(time.Minute),
		WithName("edge"),
		WithMetrics(m),
		WithRecvTimeout(0),
		nil,
	})
	assert.Equal(t, 4096, cfg.BufferSize)
	assert.Equal(t, 3*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.ReadTimeout)
	assert.Equal(t, time.Minute, cfg.WarnInterval)
	assert.Equal(t, "edge", cfg.Name)
	assert.Same(t, m, cfg.Metrics)
	require.NotNil(t, cfg.RecvTimeout)
	assert.Equal(t, time.Duration(0), *cfg.RecvTimeout)

	// Non-positive sizes and intervals keep the defaults.
	cfg = buildConfig([]Option{WithBufferSize(0), WithPollInterval(-1), WithReadTimeout(0), WithWarnInterval(0)})
	assert.Equal(t, DefaultConfig(), cfg)
}
