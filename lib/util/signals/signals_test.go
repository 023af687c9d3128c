//go:build !windows

package signals

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset() {
	mu.Lock()
	handlers = map[Kind][]registeredHandler{}
	mu.Unlock()
}

func TestDispatchRunsHandlersInOrder(t *testing.T) {
	reset()
	var order []int
	RegisterInterruptHandler(func() { order = append(order, 1) })
	RegisterInterruptHandler(func() { panic("boom") })
	RegisterInterruptHandler(func() { order = append(order, 3) })
	RegisterReloadHandler(func() { order = append(order, 99) })
	assert.Equal(t, HandlerID(-1), RegisterInterruptHandler(nil))

	Dispatch(Interrupt)
	assert.Equal(t, []int{1, 3}, order, "panic does not stop later handlers")
}

func TestDeregister(t *testing.T) {
	reset()
	calls := 0
	id := RegisterReloadHandler(func() { calls++ })
	RegisterReloadHandler(func() { calls += 10 })
	Deregister(id)
	Dispatch(Reload)
	assert.Equal(t, 10, calls)
}

func TestHandleReturnsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Handle(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle did not return")
	}
}

func TestHandleDispatchesReloadThenInterrupt(t *testing.T) {
	reset()
	reloaded := make(chan struct{}, 1)
	interrupted := make(chan struct{}, 1)
	RegisterReloadHandler(func() { reloaded <- struct{}{} })
	RegisterInterruptHandler(func() { interrupted <- struct{}{} })

	done := make(chan struct{})
	go func() {
		Handle(context.Background())
		close(done)
	}()
	// Let Handle install its notifier before signalling ourselves.
	time.Sleep(50 * time.Millisecond)

	p, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, p.Signal(syscall.SIGHUP))
	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("reload handler did not run")
	}

	require.NoError(t, p.Signal(syscall.SIGTERM))
	select {
	case <-interrupted:
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt handler did not run")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after interrupt")
	}
}
