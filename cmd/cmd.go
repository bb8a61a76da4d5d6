package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nodeburn/nodeburn/burn"
	"github.com/nodeburn/nodeburn/envconfig"
	"github.com/nodeburn/nodeburn/format"
	"github.com/nodeburn/nodeburn/logutil"
	"github.com/nodeburn/nodeburn/probe"
	"github.com/nodeburn/nodeburn/progress"
	"github.com/nodeburn/nodeburn/ring"
	"github.com/nodeburn/nodeburn/version"
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nodeburn",
		Short: "Validate CPU, NUMA and MIG partition bindings on a compute node",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true

			level := slog.LevelInfo
			if envconfig.Debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(logutil.NewLogger(os.Stderr, level))
		},
		Version: version.Version,
	}

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		newProbeCmd(),
		newBurnCmd(),
		newRingCmd(),
		newWatchCmd(),
		newEnvCmd(),
	)
	return rootCmd
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report this process's CPU affinity, cgroup cpuset, NUMA nodes and GPU visibility",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			probe.Probe(cmd.Context()).Render(cmd.OutOrStdout())
			return nil
		},
	}
}

func newBurnCmd() *cobra.Command {
	var (
		duration  time.Duration
		workers   int
		cpuList   string
		matrixDim int
		useGPU    bool
		reqGPU    bool
	)

	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Drive pinned busy workers on every allowed CPU until a deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := burn.Config{
				Duration: duration,
				Workers:  workers,
				GPU: burn.GPUConfig{
					Enabled:   useGPU || reqGPU,
					Required:  reqGPU,
					MatrixDim: matrixDim,
				},
			}
			if cpuList != "" {
				cpus, err := probe.ParseList(cpuList)
				if err != nil {
					return err
				}
				cfg.CPUs = cpus
			}

			// Report first, then load: the probe tells the operator
			// what partition the burn is about to exercise.
			probe.Probe(cmd.Context()).Render(cmd.OutOrStdout())

			countdown := progress.NewCountdown(os.Stderr, duration)
			countdown.Start()
			result, err := burn.Run(cmd.Context(), cfg)
			countdown.Stop()
			if err != nil {
				return err
			}

			renderBurnResult(cmd, result, duration)
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 60*time.Second, "How long to drive the load")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker count (default: one per allowed CPU)")
	cmd.Flags().StringVar(&cpuList, "cpus", "", "Explicit CPU list to burn, e.g. \"0-3,7\" (default: allowed set)")
	cmd.Flags().BoolVar(&useGPU, "gpu", false, "Also run the GPU GEMM loop if an accelerator is visible")
	cmd.Flags().BoolVar(&reqGPU, "require-gpu", false, "Fail instead of skipping when no accelerator is available")
	cmd.Flags().IntVar(&matrixDim, "matrix", 4096, "Square matrix dimension for the GPU GEMM loop")
	return cmd
}

func renderBurnResult(cmd *cobra.Command, result *burn.Result, duration time.Duration) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\nsession %s completed in %v (%s work units)\n",
		result.Session, result.Elapsed.Truncate(time.Millisecond), format.HumanNumber(result.TotalUnits()))
	if result.Incomplete {
		fmt.Fprintln(out, "warning: not all workers exited within the grace timeout")
	}

	table := tablewriter.NewWriter(out)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"worker", "cpu", "pinned", "units", "rate"})
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("  ")
	for _, w := range result.Workers {
		rate := float64(w.Units) / duration.Seconds()
		table.Append([]string{
			fmt.Sprintf("%d", w.ID),
			fmt.Sprintf("%d", w.CPU),
			fmt.Sprintf("%t", w.Pinned),
			format.HumanNumber(w.Units),
			format.HumanRate(rate),
		})
	}
	table.Render()

	switch {
	case result.GPU != nil && result.GPUErr != nil:
		fmt.Fprintf(out, "gpu loop ended early after %d iterations: %v\n", result.GPU.Iterations, result.GPUErr)
	case result.GPU != nil:
		fmt.Fprintf(out, "gpu: %d GEMM iterations, matrix %d, %.1f GFLOPS\n",
			result.GPU.Iterations, result.GPU.MatrixDim, result.GPU.GFLOPS())
	}
}

func newRingCmd() *cobra.Command {
	var (
		rank       int
		ranks      int
		basePort   int
		payloadLen int
		session    string
	)

	cmd := &cobra.Command{
		Use:   "ring",
		Short: "Exchange payloads around a ring of processes and verify each hop",
		Long: "Spawns one process per rank on this host, passes a payload around the ring\n" +
			"(each rank sends right, receives left), verifies every element, then joins a\n" +
			"barrier. Each rank also reports its own partition bindings.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rank < 0 {
				return ring.Launch(cmd.Context(), ring.LaunchConfig{
					Ranks:      ranks,
					BasePort:   basePort,
					PayloadLen: payloadLen,
				}, cmd.OutOrStdout())
			}
			return runRingRank(cmd, rank, ranks, basePort, payloadLen, session)
		},
	}

	cmd.Flags().IntVar(&ranks, "ranks", 2, "Number of ring participants")
	cmd.Flags().IntVar(&basePort, "port", envconfig.RingPort, "Base TCP port; rank r listens on port+r")
	cmd.Flags().IntVar(&payloadLen, "payload", ring.DefaultPayloadLen, "Payload length in 32-bit words")
	cmd.Flags().IntVar(&rank, "rank", -1, "Run as this rank (set by the launcher)")
	cmd.Flags().StringVar(&session, "session", "", "Session ID (set by the launcher)")
	cmd.Flags().MarkHidden("rank")    //nolint:errcheck
	cmd.Flags().MarkHidden("session") //nolint:errcheck
	return cmd
}

// runRingRank is the child side: report bindings, exchange, verify.
func runRingRank(cmd *cobra.Command, rank, ranks, basePort, payloadLen int, session string) error {
	out := cmd.OutOrStdout()

	r := probe.Probe(cmd.Context())
	fmt.Fprintf(out, "host %s pid %d cpus %s cgroup %s cuda %s\n",
		r.Hostname, r.PID, r.CPUs,
		orDash(r.CgroupPath), orDash(r.VisibleDevices))

	p := &ring.Participant{
		Rank:       rank,
		Size:       ranks,
		Session:    session,
		PayloadLen: payloadLen,
		BasePort:   basePort,
	}
	result, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "received %d words from rank %d: OK\n", len(result.Received), result.From)
	return nil
}

func newWatchCmd() *cobra.Command {
	var cfg probe.WatchConfig

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically re-read the affinity mask and current CPU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return probe.Watch(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.Interval, "interval", time.Second, "Time between observations")
	cmd.Flags().IntVar(&cfg.Count, "count", 10, "Number of observations")
	cmd.Flags().StringVar(&cfg.Logfile, "logfile", "", "Also append observations to this file")
	return cmd
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the environment variables nodeburn consumes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars := envconfig.AsMap()
			names := make([]string, 0, len(vars))
			for name := range vars {
				names = append(names, name)
			}
			sort.Strings(names)

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("  ")
			for _, name := range names {
				v := vars[name]
				table.Append([]string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
			}
			table.Render()
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
