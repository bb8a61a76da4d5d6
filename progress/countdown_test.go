package progress

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountdownDisabledForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	c := NewCountdown(&buf, time.Second)
	assert.False(t, c.enabled)

	// Start/Stop must be safe no-ops when disabled.
	c.Start()
	c.Stop()
	c.Stop()
	assert.Empty(t, buf.String())
}

func TestCountdownRender(t *testing.T) {
	var buf bytes.Buffer
	c := &Countdown{
		w:       &buf,
		total:   10 * time.Second,
		start:   time.Now().Add(-5 * time.Second),
		enabled: true,
	}
	c.render()
	assert.Contains(t, buf.String(), "burning...")
	assert.Contains(t, buf.String(), "%")
}

func TestCountdownRenderClamped(t *testing.T) {
	var buf bytes.Buffer
	c := &Countdown{
		w:       &buf,
		total:   time.Second,
		start:   time.Now().Add(-5 * time.Second),
		enabled: true,
	}
	c.render()
	assert.Contains(t, buf.String(), "100%")
	assert.Contains(t, buf.String(), "0s remaining")
}
