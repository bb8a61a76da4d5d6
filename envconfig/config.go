package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// Set via NODEBURN_DEBUG in the environment
	Debug bool
	// Set via NODEBURN_GRACE in the environment
	Grace time.Duration
	// Set via NODEBURN_RING_PORT in the environment
	RingPort int
)

const (
	// DefaultGrace bounds how long a run waits for workers to exit
	// after the deadline before giving up on the join.
	DefaultGrace = 2 * time.Second
	// DefaultRingPort is the base TCP port for ring-exchange ranks.
	DefaultRingPort = 43800
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"NODEBURN_DEBUG":       {"NODEBURN_DEBUG", Debug, "Show additional debug information (e.g. NODEBURN_DEBUG=1)"},
		"NODEBURN_GRACE":       {"NODEBURN_GRACE", Grace, "Grace timeout when joining workers after the deadline (default \"2s\")"},
		"NODEBURN_RING_PORT":   {"NODEBURN_RING_PORT", RingPort, "Base TCP port for ring-exchange ranks (default 43800)"},
		"CUDA_VISIBLE_DEVICES": {"CUDA_VISIBLE_DEVICES", VisibleDevices(), "GPU or MIG instances visible to this process (set by the launcher, read-only)"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// VisibleDevices returns the accelerator visibility string as currently
// exported, typically a device index or a MIG UUID. It is re-read on
// every call: the launcher owns this variable and this process never
// caches or mutates it.
func VisibleDevices() string {
	return clean("CUDA_VISIBLE_DEVICES")
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	// default values
	Grace = DefaultGrace
	RingPort = DefaultRingPort

	LoadConfig()
}

func LoadConfig() {
	if debug := clean("NODEBURN_DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	if grace := clean("NODEBURN_GRACE"); grace != "" {
		g, err := time.ParseDuration(grace)
		if err != nil || g <= 0 {
			slog.Error("invalid setting, ignoring", "NODEBURN_GRACE", grace, "error", err)
		} else {
			Grace = g
		}
	}

	if port := clean("NODEBURN_RING_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			slog.Error("invalid setting, ignoring", "NODEBURN_RING_PORT", port, "error", err)
		} else {
			RingPort = p
		}
	}
}
