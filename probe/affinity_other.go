//go:build !linux

package probe

import (
	"errors"
)

func schedAffinity() (CPUSet, error) {
	return nil, errors.New("sched_getaffinity not supported on this platform")
}
