package probe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// WatchConfig drives a periodic re-probe of the affinity mask and the
// processor currently hosting the main task. Useful for catching an
// external controller rewriting the cgroup mid-run.
type WatchConfig struct {
	Interval time.Duration
	Count    int
	// Logfile, when set, duplicates each observation into a file so
	// per-rank logs survive interleaved stdout.
	Logfile string
}

// Watch emits one observation per tick until Count ticks have elapsed
// or the context is cancelled. The first observation is immediate.
func Watch(ctx context.Context, out io.Writer, cfg WatchConfig) error {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}

	if cfg.Logfile != "" {
		f, err := os.OpenFile(cfg.Logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open logfile: %w", err)
		}
		defer f.Close()
		out = io.MultiWriter(out, f)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for i := 0; i < cfg.Count; i++ {
		if _, err := fmt.Fprintln(out, snapshotLine(i)); err != nil {
			return err
		}
		if i == cfg.Count-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func snapshotLine(tick int) string {
	cpus, approx := AllowedCPUs()
	mark := ""
	if approx {
		mark = " (approx)"
	}

	cpu := unavailable
	if f, err := os.Open(filepath.Join(procRoot, "self", "stat")); err == nil {
		if c, err := parseStatCPU(f); err == nil {
			cpu = fmt.Sprintf("%d", c)
		}
		f.Close()
	}

	return fmt.Sprintf("tick %02d: pid %d affinity %s%s running on cpu %s",
		tick, os.Getpid(), cpus, mark, cpu)
}
