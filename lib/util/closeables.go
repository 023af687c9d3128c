package util

import (
	"io"
	"sync"

	"github.com/go-i2p/logger"
	"go.uber.org/multierr"
)

var log = logger.GetGoI2PLogger()

var (
	closeOnExit []io.Closer
	closeMutex  sync.Mutex
)

// RegisterCloser registers an io.Closer to be closed during shutdown.
// This function is thread-safe.
func RegisterCloser(c io.Closer) {
	if c == nil {
		return
	}
	closeMutex.Lock()
	defer closeMutex.Unlock()
	closeOnExit = append(closeOnExit, c)
	log.WithField("count", len(closeOnExit)).Debug("Registered closer")
}

// CloseAll closes every registered closer, newest first, and clears the
// list. Sockets registered after their listener close before it. The
// returned error combines every close failure.
func CloseAll() error {
	closeMutex.Lock()
	closers := closeOnExit
	closeOnExit = nil
	closeMutex.Unlock()

	log.WithField("count", len(closers)).Debug("Closing all registered closers")

	var err error
	for i := len(closers) - 1; i >= 0; i-- {
		if cerr := closers[i].Close(); cerr != nil {
			log.WithError(cerr).Warn("Error closing resource")
			err = multierr.Append(err, cerr)
		}
	}
	log.Debug("All closers closed")
	return err
}
