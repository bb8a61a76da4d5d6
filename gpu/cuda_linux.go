//go:build linux && cgo && cuda

package gpu

/*
#cgo LDFLAGS: -lcudart -lcublas
#include <cuda_runtime.h>
#include <cublas_v2.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type cudaDevice struct {
	name   string
	handle C.cublasHandle_t
}

type cudaBuffer struct {
	dev *cudaDevice
	n   C.int
	dA  unsafe.Pointer
	dC  unsafe.Pointer
}

func detectDevice() (Device, error) {
	var count C.int
	if status := C.cudaGetDeviceCount(&count); status != C.cudaSuccess || count == 0 {
		return nil, ErrUnavailable
	}

	var props C.struct_cudaDeviceProp
	if status := C.cudaGetDeviceProperties(&props, 0); status != C.cudaSuccess {
		return nil, fmt.Errorf("cudaGetDeviceProperties: %s", cudaErr(status))
	}

	dev := &cudaDevice{name: C.GoString(&props.name[0])}
	if status := C.cublasCreate(&dev.handle); status != C.CUBLAS_STATUS_SUCCESS {
		return nil, fmt.Errorf("cublasCreate failed: %d", int(status))
	}
	return dev, nil
}

func (d *cudaDevice) Name() string { return d.name }

func (d *cudaDevice) Allocate(n int) (Buffer, error) {
	buf := &cudaBuffer{dev: d, n: C.int(n)}
	bytes := C.size_t(n) * C.size_t(n) * C.size_t(unsafe.Sizeof(C.float(0)))

	if status := C.cudaMalloc(&buf.dA, bytes); status != C.cudaSuccess {
		return nil, fmt.Errorf("cudaMalloc A: %s", cudaErr(status))
	}
	if status := C.cudaMalloc(&buf.dC, bytes); status != C.cudaSuccess {
		C.cudaFree(buf.dA)
		return nil, fmt.Errorf("cudaMalloc C: %s", cudaErr(status))
	}

	// Seed A with nonzero bytes; the values are never inspected, the
	// matmul work is what matters.
	if status := C.cudaMemset(buf.dA, 1, bytes); status != C.cudaSuccess {
		buf.Free()
		return nil, fmt.Errorf("cudaMemset: %s", cudaErr(status))
	}
	return buf, nil
}

func (b *cudaBuffer) MulInPlace() error {
	var alpha, beta C.float = 1.0, 0.0
	status := C.cublasSgemm(b.dev.handle,
		C.CUBLAS_OP_N, C.CUBLAS_OP_N,
		b.n, b.n, b.n,
		&alpha,
		(*C.float)(b.dA), b.n,
		(*C.float)(b.dA), b.n,
		&beta,
		(*C.float)(b.dC), b.n)
	if status != C.CUBLAS_STATUS_SUCCESS {
		return fmt.Errorf("cublasSgemm failed: %d", int(status))
	}
	// Feed the product back in so successive iterations depend on
	// each other and cannot be elided by the driver.
	b.dA, b.dC = b.dC, b.dA
	return nil
}

func (b *cudaBuffer) Free() {
	if b.dA != nil {
		C.cudaFree(b.dA)
		b.dA = nil
	}
	if b.dC != nil {
		C.cudaFree(b.dC)
		b.dC = nil
	}
}

func (d *cudaDevice) Synchronize() error {
	if status := C.cudaDeviceSynchronize(); status != C.cudaSuccess {
		return fmt.Errorf("cudaDeviceSynchronize: %s", cudaErr(status))
	}
	return nil
}

func (d *cudaDevice) Close() error {
	if status := C.cublasDestroy(d.handle); status != C.CUBLAS_STATUS_SUCCESS {
		return fmt.Errorf("cublasDestroy failed: %d", int(status))
	}
	return nil
}

func cudaErr(status C.cudaError_t) string {
	return C.GoString(C.cudaGetErrorString(status))
}
