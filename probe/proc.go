package probe

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// parseStatusField scans a /proc/<pid>/status stream for a field such
// as "Cpus_allowed_list" and returns its trimmed value.
func parseStatusField(r io.Reader, key string) string {
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		if rest, ok := strings.CutPrefix(line, key+":"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// parseCgroupPath extracts this process's cgroup path from a
// /proc/<pid>/cgroup stream. Unified (v2) hierarchies expose a single
// "0::<path>" line; on hybrid hosts the cpuset controller line is used
// instead.
func parseCgroupPath(r io.Reader) string {
	var cpusetPath string
	s := bufio.NewScanner(r)
	for s.Scan() {
		parts := strings.SplitN(s.Text(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		if parts[0] == "0" && parts[1] == "" {
			return parts[2]
		}
		if strings.Contains(parts[1], "cpuset") {
			cpusetPath = parts[2]
		}
	}
	return cpusetPath
}

// parseStatCPU returns the processor the task last ran on, field 39 of
// /proc/<pid>/stat. The comm field may contain spaces, so fields are
// counted from the closing paren.
func parseStatCPU(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	i := strings.LastIndexByte(string(data), ')')
	if i < 0 {
		return 0, errors.New("malformed stat line")
	}
	fields := strings.Fields(string(data[i+1:]))
	// fields[0] is state, the 3rd field overall; processor is the 39th.
	const processorIdx = 39 - 3
	if len(fields) <= processorIdx {
		return 0, errors.New("stat line too short")
	}
	return strconv.Atoi(fields[processorIdx])
}
