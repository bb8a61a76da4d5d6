package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCLICommands(t *testing.T) {
	cli := NewCLI()

	expected := []string{"probe", "burn", "ring", "watch", "env"}
	for _, name := range expected {
		found := false
		for _, c := range cli.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "missing %q subcommand", name)
	}
}

func TestEnvCommand(t *testing.T) {
	cli := NewCLI()

	var buf bytes.Buffer
	cli.SetOut(&buf)
	cli.SetErr(&buf)
	cli.SetArgs([]string{"env"})
	require.NoError(t, cli.Execute())

	out := buf.String()
	assert.Contains(t, out, "NODEBURN_DEBUG")
	assert.Contains(t, out, "NODEBURN_GRACE")
	assert.Contains(t, out, "CUDA_VISIBLE_DEVICES")
}

func TestProbeCommand(t *testing.T) {
	cli := NewCLI()

	var buf bytes.Buffer
	cli.SetOut(&buf)
	cli.SetErr(&buf)
	cli.SetArgs([]string{"probe"})
	require.NoError(t, cli.Execute())

	assert.Contains(t, buf.String(), "Partitioning Report")
	assert.Contains(t, buf.String(), "Allowed CPUs:")
}

func TestWatchCommand(t *testing.T) {
	cli := NewCLI()

	var buf bytes.Buffer
	cli.SetOut(&buf)
	cli.SetErr(&buf)
	cli.SetArgs([]string{"watch", "--count", "2", "--interval", "1ms"})
	require.NoError(t, cli.Execute())

	assert.Contains(t, buf.String(), "tick 00")
	assert.Contains(t, buf.String(), "tick 01")
}

func TestBurnCommandValidatesCPUList(t *testing.T) {
	cli := NewCLI()

	var buf bytes.Buffer
	cli.SetOut(&buf)
	cli.SetErr(&buf)
	cli.SetArgs([]string{"burn", "--duration", "10ms", "--cpus", "not-a-list"})
	assert.Error(t, cli.Execute())
}
