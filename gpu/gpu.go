// Package gpu treats the accelerator as an opaque capability: a device
// that can hold a square matrix and multiply it in place. The CUDA
// implementation is only compiled in with the cuda build tag; every
// other build reports ErrUnavailable from Detect, and callers skip the
// GPU path rather than substituting the matmul onto the CPU.
package gpu

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrUnavailable is returned by Detect when no accelerator runtime is
// present on this host or in this build.
var ErrUnavailable = errors.New("accelerator runtime unavailable")

// Buffer is a device-resident n x n float32 matrix.
type Buffer interface {
	// MulInPlace schedules one self-multiplication of the matrix on
	// the device. It does not wait for completion.
	MulInPlace() error
	// Free releases the device allocation.
	Free()
}

// Device is the minimal accelerator surface the load generator needs.
type Device interface {
	Name() string
	Allocate(n int) (Buffer, error)
	// Synchronize blocks until all scheduled work has completed.
	Synchronize() error
	Close() error
}

// Detect probes for a usable accelerator. Callers treat ErrUnavailable
// as "skip the GPU loop", not as a failure.
func Detect() (Device, error) {
	return detectDevice()
}

// StressResult summarizes a GEMM stress loop.
type StressResult struct {
	Iterations uint64
	MatrixDim  int
	Elapsed    time.Duration
}

// GFLOPS derives achieved throughput from the standard GEMM flop
// count, 2*n^3 per iteration.
func (r *StressResult) GFLOPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	n := float64(r.MatrixDim)
	return float64(r.Iterations) * 2 * n * n * n / r.Elapsed.Seconds() / 1e9
}

const (
	// Synchronize only every few iterations so the device pipeline
	// stays full between host round trips.
	syncEvery = 8
	// Brief host-side yield so the dispatch thread does not
	// monopolize a core that belongs to the CPU burn workers.
	dispatchYield = 5 * time.Millisecond
)

// Stress drives repeated in-place matrix multiplication on dev until
// the deadline. A device fault mid-loop ends this loop early and is
// returned alongside the partial result; it must not take the CPU
// workers down with it.
func Stress(ctx context.Context, dev Device, n int, deadline time.Time) (*StressResult, error) {
	result := &StressResult{MatrixDim: n}
	start := time.Now()

	buf, err := dev.Allocate(n)
	if err != nil {
		return result, err
	}
	defer buf.Free()

	slog.Debug("gpu stress loop started", "device", dev.Name(), "matrix", n)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			result.Elapsed = time.Since(start)
			return result, ctx.Err()
		default:
		}

		if err := buf.MulInPlace(); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}
		result.Iterations++

		if result.Iterations%syncEvery == 0 {
			if err := dev.Synchronize(); err != nil {
				result.Elapsed = time.Since(start)
				return result, err
			}
		}
		time.Sleep(dispatchYield)
	}

	err = dev.Synchronize()
	result.Elapsed = time.Since(start)
	return result, err
}
