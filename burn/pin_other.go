//go:build !linux

package burn

import (
	"errors"
	"runtime"
)

func pinThread(cpu int) (threadLock, error) {
	runtime.LockOSThread()
	return threadLock{}, errors.New("cpu pinning not supported on this platform")
}
