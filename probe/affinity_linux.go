//go:build linux

package probe

import (
	"golang.org/x/sys/unix"
)

// schedAffinity reads the scheduler affinity mask of the calling
// thread, which the kernel keeps identical across threads unless
// someone has pinned them individually.
func schedAffinity() (CPUSet, error) {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err != nil {
		return nil, err
	}

	// The kernel cpu_set_t covers 1024 CPUs; IsSet is a no-op past
	// the end of the mask.
	const maxCPUs = 1024

	set := make(CPUSet, 0, mask.Count())
	for cpu := 0; cpu < maxCPUs; cpu++ {
		if mask.IsSet(cpu) {
			set = append(set, cpu)
		}
	}
	return set, nil
}
