// Package probe inspects the resource bindings the orchestration layer
// has applied to this process: scheduler CPU affinity, cgroup cpuset,
// allowed NUMA nodes and accelerator visibility. Every fact is a
// one-shot, best-effort snapshot; a fact that cannot be read is absent
// from the report, never an error.
package probe

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/nodeburn/nodeburn/envconfig"
)

// Overridable for tests.
var (
	procRoot   = "/proc"
	cgroupRoot = "/sys/fs/cgroup"
)

// Report is a snapshot of the partition this process landed in.
// Optional fields are left at their zero value when the underlying
// kernel interface is unavailable.
type Report struct {
	PID      int
	Hostname string

	// CPUs is never empty. CPUsApprox marks the fallback case where
	// the affinity mask could not be read and the full core range
	// visible to the runtime is reported instead.
	CPUs       CPUSet
	CPUsApprox bool

	// From /proc/<pid>/status, kernel list format.
	CpusAllowed string
	MemsAllowed string

	// Cgroup placement and its cpuset attributes.
	CgroupPath      string
	CpusetCpus      string
	CpusetEffective string

	// CurrentCPU is the processor the main task last ran on, or -1.
	CurrentCPU int

	// Accelerator visibility as exported by the launcher.
	VisibleDevices string
	MIGDevices     []string
}

// Probe takes a fresh snapshot. It never fails: each fact degrades
// independently to its absent form.
func Probe(ctx context.Context) *Report {
	r := &Report{
		PID:        os.Getpid(),
		CurrentCPU: -1,
	}

	if hostname, err := os.Hostname(); err == nil {
		r.Hostname = hostname
	}

	r.CPUs, r.CPUsApprox = AllowedCPUs()

	r.CpusAllowed = statusField("Cpus_allowed_list")
	r.MemsAllowed = statusField("Mems_allowed_list")

	if f, err := os.Open(filepath.Join(procRoot, "self", "cgroup")); err == nil {
		r.CgroupPath = parseCgroupPath(f)
		f.Close()
	}
	if r.CgroupPath != "" {
		r.CpusetCpus = readTrimmed(filepath.Join(cgroupRoot, r.CgroupPath, "cpuset.cpus"))
		r.CpusetEffective = readTrimmed(filepath.Join(cgroupRoot, r.CgroupPath, "cpuset.cpus.effective"))
	}

	if f, err := os.Open(filepath.Join(procRoot, "self", "stat")); err == nil {
		if cpu, err := parseStatCPU(f); err == nil {
			r.CurrentCPU = cpu
		}
		f.Close()
	}

	r.VisibleDevices = envconfig.VisibleDevices()
	r.MIGDevices = migDevices(ctx)

	return r
}

// AllowedCPUs returns the scheduler affinity set, or the full core
// range visible to the runtime when the mask cannot be read. The bool
// marks the fallback case.
func AllowedCPUs() (CPUSet, bool) {
	set, err := schedAffinity()
	if err != nil || len(set) == 0 {
		slog.Debug("affinity mask unavailable, falling back to runtime core count", "error", err)
		return Range(runtime.NumCPU()), true
	}
	return set, false
}

func statusField(key string) string {
	f, err := os.Open(filepath.Join(procRoot, "self", "status"))
	if err != nil {
		return ""
	}
	defer f.Close()
	return parseStatusField(f, key)
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
