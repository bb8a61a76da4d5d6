package probe

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

var migUUIDRegex = regexp.MustCompile(`MIG-[0-9a-fA-F-]+`)

const nvidiaSMITimeout = 5 * time.Second

// migDevices lists the MIG instances nvidia-smi reports on this host.
// Best effort: a missing binary or a driver error yields an empty list.
func migDevices(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, nvidiaSMITimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "nvidia-smi", "-L").Output()
	if err != nil {
		slog.Debug("nvidia-smi not available", "error", err)
		return nil
	}
	return parseMIGDevices(strings.NewReader(string(out)))
}

// parseMIGDevices extracts MIG instance UUIDs from `nvidia-smi -L`
// output. Lines for full GPUs (no MIG UUID) are ignored.
func parseMIGDevices(r io.Reader) []string {
	var devices []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		if !strings.Contains(line, "MIG") {
			continue
		}
		if uuid := migUUIDRegex.FindString(line); uuid != "" {
			devices = append(devices, uuid)
		}
	}
	return devices
}
