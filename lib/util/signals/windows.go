//go:build windows

package signals

import (
	"os"
)

var watched = []os.Signal{os.Interrupt}

func kindOf(sig os.Signal) (Kind, bool) {
	if sig == os.Interrupt {
		return Interrupt, true
	}
	return 0, false
}
