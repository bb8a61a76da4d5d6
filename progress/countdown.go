// Package progress renders a live countdown for fixed-duration runs.
// Output is suppressed when stdout is not a terminal so piped reports
// stay clean.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

type Countdown struct {
	mu      sync.Mutex
	w       io.Writer
	total   time.Duration
	start   time.Time
	ticker  *time.Ticker
	done    chan struct{}
	stopped bool
	enabled bool
}

func NewCountdown(w io.Writer, total time.Duration) *Countdown {
	enabled := false
	if f, ok := w.(*os.File); ok {
		enabled = term.IsTerminal(int(f.Fd()))
	}
	return &Countdown{
		w:       w,
		total:   total,
		done:    make(chan struct{}),
		enabled: enabled,
	}
}

func (c *Countdown) Start() {
	if !c.enabled {
		return
	}
	c.start = time.Now()
	c.ticker = time.NewTicker(time.Second)
	go c.loop()
}

func (c *Countdown) loop() {
	for {
		select {
		case <-c.ticker.C:
			c.render()
		case <-c.done:
			return
		}
	}
}

func (c *Countdown) render() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	elapsed := time.Since(c.start)
	remaining := c.total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	percent := float64(elapsed) / float64(c.total) * 100
	if percent > 100 {
		percent = 100
	}
	fmt.Fprintf(c.w, "\rburning... %3.0f%% (%v remaining) ", percent, remaining.Truncate(time.Second))
}

func (c *Countdown) Stop() {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.ticker.Stop()
	close(c.done)
	fmt.Fprintf(c.w, "\r%s\r", "                                        ")
}
