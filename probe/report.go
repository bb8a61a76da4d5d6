package probe

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

const unavailable = "<unavailable>"

// Render writes the human-oriented partition report. The wording is
// for operators, not for machines; no stability contract.
func (r *Report) Render(out io.Writer) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "CPU / Memory / GPU Partitioning Report")
	fmt.Fprintln(out, rule)

	cpus := r.CPUs.String()
	if r.CPUsApprox {
		cpus += " (approximate: affinity mask unavailable)"
	}

	mig := unavailable
	if len(r.MIGDevices) > 0 {
		mig = strings.Join(r.MIGDevices, "\n")
	}

	table := tablewriter.NewWriter(out)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding(" ")
	table.AppendBulk([][]string{
		{"Host:", r.Hostname},
		{"PID:", fmt.Sprintf("%d", r.PID)},
		{"Allowed CPUs:", cpus},
		{"Cpus_allowed_list:", orUnavailable(r.CpusAllowed)},
		{"Mems_allowed_list:", orUnavailable(r.MemsAllowed)},
		{"Cgroup:", orUnavailable(r.CgroupPath)},
		{"cpuset.cpus:", orUnavailable(r.CpusetCpus)},
		{"cpuset.cpus.effective:", orUnavailable(r.CpusetEffective)},
		{"Current CPU:", currentCPU(r.CurrentCPU)},
		{"CUDA_VISIBLE_DEVICES:", orUnavailable(r.VisibleDevices)},
		{"MIG instances:", mig},
	})
	table.Render()

	fmt.Fprintln(out, rule)
	for _, line := range r.checks() {
		fmt.Fprintln(out, line)
	}
}

// checks summarizes what the operator should confirm, in the manner of
// a post-run checklist.
func (r *Report) checks() []string {
	var lines []string

	if r.CPUsApprox {
		lines = append(lines, "  ? CPU affinity could not be read; showing all runtime-visible cores")
	} else {
		lines = append(lines, fmt.Sprintf("  + process restricted to %d CPU(s): %s", r.CPUs.Count(), r.CPUs))
	}

	switch {
	case r.CgroupPath == "":
		lines = append(lines, "  ? no cgroup placement visible (non-Linux host or masked /proc)")
	case r.CpusetCpus != "" || r.CpusetEffective != "":
		lines = append(lines, fmt.Sprintf("  + cgroup %s carries a cpuset restriction", r.CgroupPath))
	default:
		lines = append(lines, fmt.Sprintf("  ? cgroup %s has no readable cpuset attribute", r.CgroupPath))
	}

	switch {
	case strings.HasPrefix(r.VisibleDevices, "MIG-"):
		lines = append(lines, "  + CUDA_VISIBLE_DEVICES is a MIG instance")
	case r.VisibleDevices != "":
		lines = append(lines, "  + CUDA_VISIBLE_DEVICES set (not a MIG UUID)")
	default:
		lines = append(lines, "  ? CUDA_VISIBLE_DEVICES not set; run through the MIG launcher to bind a slice")
	}

	return lines
}

func orUnavailable(s string) string {
	if s == "" {
		return unavailable
	}
	return s
}

func currentCPU(cpu int) string {
	if cpu < 0 {
		return unavailable
	}
	return fmt.Sprintf("%d", cpu)
}
