//go:build !linux || !cgo || !cuda

package gpu

func detectDevice() (Device, error) {
	return nil, ErrUnavailable
}
