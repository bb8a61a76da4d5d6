package probe

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CPUSet is an ordered list of logical CPU ids, as found in kernel
// cpuset list files ("0-3,7,9-11").
type CPUSet []int

// ParseList parses the kernel list format used by cpuset.cpus,
// Cpus_allowed_list and Mems_allowed_list.
func ParseList(s string) (CPUSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	seen := map[int]struct{}{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty element in cpu list %q", s)
		}

		lo, hi, ok := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || first < 0 {
			return nil, fmt.Errorf("invalid cpu %q in list %q", part, s)
		}
		last := first
		if ok {
			last, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || last < first {
				return nil, fmt.Errorf("invalid range %q in list %q", part, s)
			}
		}
		for cpu := first; cpu <= last; cpu++ {
			seen[cpu] = struct{}{}
		}
	}

	set := make(CPUSet, 0, len(seen))
	for cpu := range seen {
		set = append(set, cpu)
	}
	sort.Ints(set)
	return set, nil
}

// Range returns the set {0..n-1}, the "all cores visible to the
// runtime" fallback when the affinity mask cannot be read.
func Range(n int) CPUSet {
	if n <= 0 {
		return nil
	}
	set := make(CPUSet, n)
	for i := range set {
		set[i] = i
	}
	return set
}

func (s CPUSet) Count() int {
	return len(s)
}

func (s CPUSet) Contains(cpu int) bool {
	for _, c := range s {
		if c == cpu {
			return true
		}
	}
	return false
}

// String renders the set back in kernel list format, collapsing
// consecutive ids into ranges.
func (s CPUSet) String() string {
	if len(s) == 0 {
		return ""
	}

	sorted := make([]int, len(s))
	copy(sorted, s)
	sort.Ints(sorted)

	var b strings.Builder
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if j == i {
			fmt.Fprintf(&b, "%d", sorted[i])
		} else {
			fmt.Fprintf(&b, "%d-%d", sorted[i], sorted[j])
		}
		i = j + 1
	}
	return b.String()
}
