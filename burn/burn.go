// Package burn generates sustained CPU load inside whatever partition
// the orchestration layer granted this process: one busy worker per
// allowed CPU, each pinned to its core, all polling a shared wall-clock
// deadline. An optional GPU GEMM loop runs alongside the CPU workers.
package burn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nodeburn/nodeburn/envconfig"
	"github.com/nodeburn/nodeburn/gpu"
	"github.com/nodeburn/nodeburn/probe"
)

// GPUConfig controls the optional accelerator loop.
type GPUConfig struct {
	Enabled bool
	// Required turns a missing accelerator runtime into a fatal
	// setup error instead of a skipped loop.
	Required  bool
	MatrixDim int
}

type Config struct {
	Duration time.Duration
	// Workers overrides the one-per-allowed-CPU default when > 0.
	Workers int
	// CPUs defaults to the current affinity set.
	CPUs probe.CPUSet
	// Grace bounds the post-deadline join; 0 uses envconfig.Grace.
	Grace time.Duration
	GPU   GPUConfig
}

// WorkerResult is one worker's view of the run.
type WorkerResult struct {
	ID     int
	CPU    int
	Pinned bool
	Units  uint64
}

type Result struct {
	Session uuid.UUID
	Workers []WorkerResult
	Elapsed time.Duration
	// Incomplete marks a join that gave up after the grace timeout.
	Incomplete bool

	GPU    *gpu.StressResult
	GPUErr error
}

// TotalUnits is only meaningful as "nonzero progress was made".
func (r *Result) TotalUnits() uint64 {
	var total uint64
	for _, w := range r.Workers {
		total += w.Units
	}
	return total
}

// worker state is written by exactly one goroutine and read by the
// caller after join (or after grace expiry), hence the atomics.
type worker struct {
	id     int
	cpu    int
	pinned atomic.Bool
	units  atomic.Uint64
}

// Run blocks until every worker has observed the deadline, bounded by
// the grace timeout. The lifecycle is strictly linear: configure,
// spawn, run to deadline, join, report.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %v", cfg.Duration)
	}
	if cfg.Grace <= 0 {
		cfg.Grace = envconfig.Grace
	}

	cpus := cfg.CPUs
	if len(cpus) == 0 {
		var approx bool
		cpus, approx = probe.AllowedCPUs()
		if approx {
			slog.Warn("affinity mask unavailable, burning all runtime-visible cores", "cpus", cpus)
		}
	}

	count := cpus.Count()
	if cfg.Workers > 0 {
		count = cfg.Workers
	}

	var dev gpu.Device
	if cfg.GPU.Enabled {
		var err error
		dev, err = gpu.Detect()
		switch {
		case err != nil && cfg.GPU.Required:
			return nil, fmt.Errorf("gpu loop required: %w", err)
		case err != nil:
			slog.Warn("skipping gpu loop", "error", err)
			dev = nil
		}
	}

	result := &Result{Session: uuid.New()}
	deadline := time.Now().Add(cfg.Duration)
	start := time.Now()

	slog.Info("burn starting",
		"session", result.Session,
		"duration", cfg.Duration,
		"workers", count,
		"cpus", cpus,
		"gpu", dev != nil)

	workers := make([]*worker, count)
	var g errgroup.Group
	for i := 0; i < count; i++ {
		w := &worker{id: i, cpu: cpus[i%len(cpus)]}
		workers[i] = w
		g.Go(func() error {
			w.run(ctx, deadline)
			return nil
		})
	}

	var gpuRes *gpu.StressResult
	var gpuErr error
	if dev != nil {
		g.Go(func() error {
			defer dev.Close()
			res, err := gpu.Stress(ctx, dev, cfg.GPU.MatrixDim, deadline)
			gpuRes = res
			if err != nil && !errors.Is(err, context.Canceled) {
				// Report and move on; the CPU workers keep burning.
				slog.Warn("gpu loop ended early", "error", err)
				gpuErr = err
			}
			return nil
		})
	}

	joined := make(chan struct{})
	go func() {
		g.Wait() //nolint:errcheck // workers never return errors
		close(joined)
	}()

	select {
	case <-joined:
		result.GPU, result.GPUErr = gpuRes, gpuErr
	case <-time.After(time.Until(deadline) + cfg.Grace):
		// Proceed without the stragglers. The GPU result is dropped
		// here: the goroutine may still be writing it.
		slog.Warn("grace timeout expired before all workers exited", "grace", cfg.Grace)
		result.Incomplete = true
	}

	result.Elapsed = time.Since(start)
	for _, w := range workers {
		result.Workers = append(result.Workers, WorkerResult{
			ID:     w.id,
			CPU:    w.cpu,
			Pinned: w.pinned.Load(),
			Units:  w.units.Load(),
		})
	}

	slog.Info("burn finished",
		"session", result.Session,
		"elapsed", result.Elapsed,
		"units", result.TotalUnits(),
		"incomplete", result.Incomplete)
	return result, nil
}

// chunkIters sizes the inner arithmetic chunk so the deadline check
// granularity stays well under a millisecond on current cores.
const chunkIters = 1 << 16

func (w *worker) run(ctx context.Context, deadline time.Time) {
	lock, err := pinThread(w.cpu)
	defer lock.release()
	if err != nil {
		// Degraded: the loop still burns, just wherever the
		// scheduler puts it.
		slog.Warn("worker pinning failed", "worker", w.id, "cpu", w.cpu, "error", err)
	} else {
		w.pinned.Store(true)
	}

	var acc uint64
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		default:
		}
		acc = burnChunk(acc)
		w.units.Add(1)
	}

	// Fold the accumulator into the log at debug so the compiler
	// cannot treat the chunk as dead code.
	slog.Debug("worker done", "worker", w.id, "cpu", w.cpu, "acc", acc)
}

// burnChunk is a fixed tranche of side-effect-free integer work. The
// exact arithmetic carries no meaning; it only has to keep an ALU busy
// and resist being optimized out.
func burnChunk(acc uint64) uint64 {
	for i := uint64(0); i < chunkIters; i++ {
		acc = acc*1103515245 + 12345
		acc ^= acc >> 21
		acc ^= acc << 35
		acc ^= acc >> 4
		acc += i
	}
	return acc
}
