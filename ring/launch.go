package ring

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// LaunchConfig drives the parent side of a ring run: re-exec this
// binary once per rank, in the manner of a single-host mpirun.
type LaunchConfig struct {
	Ranks      int
	BasePort   int
	PayloadLen int
	// Binary defaults to the current executable.
	Binary string
}

// Launch spawns one child process per rank and waits for all of them.
// Each child's output is streamed to out with a per-rank prefix. A
// fresh session ID ties the ranks of this run together on the wire and
// in the logs.
func Launch(ctx context.Context, cfg LaunchConfig, out io.Writer) error {
	if cfg.Ranks < 2 {
		return fmt.Errorf("ring needs at least 2 ranks, got %d", cfg.Ranks)
	}
	bin := cfg.Binary
	if bin == "" {
		var err error
		bin, err = os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
	}

	session := uuid.NewString()
	sink := &lineWriter{out: out}

	g, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < cfg.Ranks; rank++ {
		rank := rank
		g.Go(func() error {
			cmd := exec.CommandContext(ctx, bin, "ring",
				"--rank", strconv.Itoa(rank),
				"--ranks", strconv.Itoa(cfg.Ranks),
				"--port", strconv.Itoa(cfg.BasePort),
				"--payload", strconv.Itoa(cfg.PayloadLen),
				"--session", session,
			)
			// Ranks inherit the launcher's partition bindings and
			// CUDA_VISIBLE_DEVICES untouched.
			cmd.Env = os.Environ()
			prefix := fmt.Sprintf("[rank %d] ", rank)
			cmd.Stdout = sink.prefixed(prefix)
			cmd.Stderr = sink.prefixed(prefix)

			if err := cmd.Run(); err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// lineWriter serializes whole lines from concurrently writing ranks so
// their output does not interleave mid-line.
type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (l *lineWriter) prefixed(prefix string) io.Writer {
	return &prefixWriter{sink: l, prefix: prefix}
}

func (l *lineWriter) writeLine(prefix string, line []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s%s\n", prefix, line)
}

type prefixWriter struct {
	sink   *lineWriter
	prefix string
	buf    bytes.Buffer
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Partial line; keep it buffered for the next write.
			w.buf.Write(line)
			break
		}
		w.sink.writeLine(w.prefix, bytes.TrimRight(line, "\n"))
	}
	return len(p), nil
}
