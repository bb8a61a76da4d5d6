package envconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	Debug = false // Reset whatever was loaded in init()
	t.Setenv("NODEBURN_DEBUG", "")
	LoadConfig()
	require.False(t, Debug)
	t.Setenv("NODEBURN_DEBUG", "false")
	LoadConfig()
	require.False(t, Debug)
	t.Setenv("NODEBURN_DEBUG", "1")
	LoadConfig()
	require.True(t, Debug)
}

func TestGrace(t *testing.T) {
	Grace = DefaultGrace
	t.Setenv("NODEBURN_GRACE", "")
	LoadConfig()
	require.Equal(t, DefaultGrace, Grace)

	t.Setenv("NODEBURN_GRACE", "5s")
	LoadConfig()
	require.Equal(t, 5*time.Second, Grace)

	// Invalid values keep the previous setting
	t.Setenv("NODEBURN_GRACE", "-1s")
	LoadConfig()
	require.Equal(t, 5*time.Second, Grace)
	t.Setenv("NODEBURN_GRACE", "soon")
	LoadConfig()
	require.Equal(t, 5*time.Second, Grace)
}

func TestRingPort(t *testing.T) {
	RingPort = DefaultRingPort
	t.Setenv("NODEBURN_RING_PORT", "50000")
	LoadConfig()
	require.Equal(t, 50000, RingPort)

	t.Setenv("NODEBURN_RING_PORT", "70000")
	LoadConfig()
	require.Equal(t, 50000, RingPort)
}

func TestVisibleDevices(t *testing.T) {
	t.Setenv("CUDA_VISIBLE_DEVICES", "")
	require.Equal(t, "", VisibleDevices())

	t.Setenv("CUDA_VISIBLE_DEVICES", "MIG-8e33f73f-4e79-5b9c-a3a7-5f3f8e1e2abc")
	require.Equal(t, "MIG-8e33f73f-4e79-5b9c-a3a7-5f3f8e1e2abc", VisibleDevices())

	// The snapshot is taken per call, never cached
	t.Setenv("CUDA_VISIBLE_DEVICES", "\"1\"")
	require.Equal(t, "1", VisibleDevices())
}
