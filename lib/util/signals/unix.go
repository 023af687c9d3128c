//go:build !windows

package signals

import (
	"os"
	"syscall"
)

var watched = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

func kindOf(sig os.Signal) (Kind, bool) {
	switch sig {
	case syscall.SIGHUP:
		return Reload, true
	case syscall.SIGINT, syscall.SIGTERM:
		return Interrupt, true
	}
	return 0, false
}
