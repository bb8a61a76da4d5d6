package burn

import (
	"runtime"
)

// threadLock undoes the OS-thread lock taken while pinning.
type threadLock struct{}

func (threadLock) release() {
	runtime.UnlockOSThread()
}
