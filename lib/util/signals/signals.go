// Package signals dispatches process signals to registered handlers:
// SIGHUP reloads configuration, SIGINT and SIGTERM shut the process down.
package signals

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Handler is a function called when a signal is received.
type Handler func()

// HandlerID identifies a registered handler for deregistration.
type HandlerID int

// Kind selects which signals a handler runs for.
type Kind int

const (
	// Reload runs on SIGHUP.
	Reload Kind = iota
	// Interrupt runs on SIGINT and SIGTERM.
	Interrupt
)

func (k Kind) String() string {
	if k == Reload {
		return "reload"
	}
	return "interrupt"
}

type registeredHandler struct {
	id HandlerID
	fn Handler
}

var (
	mu       sync.RWMutex
	handlers = map[Kind][]registeredHandler{}
	nextID   HandlerID
)

// Register adds f to the handlers of kind k. Handlers run in registration
// order. A nil f is ignored and returns -1.
func Register(k Kind, f Handler) HandlerID {
	if f == nil {
		return -1
	}
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	handlers[k] = append(handlers[k], registeredHandler{id: id, fn: f})
	return id
}

// RegisterReloadHandler registers f for SIGHUP.
func RegisterReloadHandler(f Handler) HandlerID { return Register(Reload, f) }

// RegisterInterruptHandler registers f for SIGINT and SIGTERM.
func RegisterInterruptHandler(f Handler) HandlerID { return Register(Interrupt, f) }

// Deregister removes the handler with the given id, whatever its kind.
func Deregister(id HandlerID) {
	mu.Lock()
	defer mu.Unlock()
	for k, hs := range handlers {
		for i, h := range hs {
			if h.id == id {
				handlers[k] = append(hs[:i:i], hs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch runs every handler of kind k. A panicking handler is logged and
// does not stop the others.
func Dispatch(k Kind) {
	mu.RLock()
	snapshot := append([]registeredHandler(nil), handlers[k]...)
	mu.RUnlock()

	log.WithFields(logger.Fields{
		"at":       "signals.Dispatch",
		"kind":     k.String(),
		"handlers": len(snapshot),
	}).Debug("dispatching_signal")
	for _, h := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(logger.Fields{
						"at":    "signals.Dispatch",
						"kind":  k.String(),
						"panic": r,
					}).Error("handler_panicked")
				}
			}()
			h.fn()
		}()
	}
}

// Handle waits for signals and dispatches them until ctx is done. An
// interrupt dispatches the Interrupt handlers and then returns, so the
// caller can finish shutting down.
func Handle(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, watched...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			k, ok := kindOf(sig)
			if !ok {
				continue
			}
			log.WithFields(logger.Fields{
				"at":     "signals.Handle",
				"signal": sig.String(),
			}).Info("signal_received")
			Dispatch(k)
			if k == Interrupt {
				return
			}
		}
	}
}
