//go:build linux

package burn

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinThread locks the calling goroutine to its OS thread and binds
// that thread to a single CPU. The returned lock must be released when
// the worker exits so the thread can be reused by the runtime.
func pinThread(cpu int) (threadLock, error) {
	runtime.LockOSThread()

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpu)
	// pid 0 scopes the call to the calling thread.
	return threadLock{}, unix.SchedSetaffinity(0, &mask)
}
