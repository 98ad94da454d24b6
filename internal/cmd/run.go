package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/pciam/internal/config"
	"github.com/Iron-Ham/pciam/internal/correlation"
	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/event"
	"github.com/Iron-Ham/pciam/internal/fatal"
	"github.com/Iron-Ham/pciam/internal/logging"
	"github.com/Iron-Ham/pciam/internal/pipeline"
	"github.com/Iron-Ham/pciam/internal/results"
	"github.com/Iron-Ham/pciam/internal/task"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Align a synthetic tile grid across the configured devices",
	Long: `Build a grid of tiles spread round-robin over the configured devices,
submit a NORTH and WEST alignment for every tile that has such a neighbor,
and run one alignment worker per device until every pair is checked.

CCF results are stored in the SQLite database at results.db_path and,
when results.json_path is set, exported as JSON.`,
	RunE: runRun,
}

func init() {
	flags := runCmd.Flags()
	flags.Int("rows", 0, "grid rows (default from config)")
	flags.Int("cols", 0, "grid columns (default from config)")
	flags.IntSlice("devices", nil, "device ids to run a worker on (default from config)")
	flags.Int("peaks", 0, "correlation peaks forwarded per tile pair (default from config)")
	flags.Int("memory-mb", 0, "simulated memory per device in MB, 0 for unlimited")
	flags.Bool("peer-access", false, "give every device pair direct peer access")
	flags.String("topology", "", "YAML topology file describing devices and peer access")
	flags.String("db", "", "SQLite results database path")
	flags.String("json", "", "JSON export path")

	bindings := map[string]string{
		"rows":        "grid.rows",
		"cols":        "grid.cols",
		"devices":     "pipeline.devices",
		"peaks":       "pipeline.num_peaks",
		"memory-mb":   "simulator.memory_mb",
		"peer-access": "simulator.peer_access",
		"topology":    "simulator.topology_file",
		"db":          "results.db_path",
		"json":        "results.json_path",
	}
	for flag, key := range bindings {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sum, err := runPipeline(ctx, cfg, cmd.ErrOrStderr())
	if err != nil && sum.Requests == 0 {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(sum, cfg.Pipeline.Devices, terminalWidth()))
	return err
}

// newLogger builds the run logger from the logging section. Disabled file
// logging still reports warnings and errors on errOut.
func newLogger(cfg config.LoggingConfig, errOut io.Writer) (*logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NewWriterLogger(errOut, "warn"), nil
	}
	return logging.NewLoggerWithRotation(cfg.Dir, cfg.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	})
}

// loadTopology returns the simulator topology from the topology file when
// one is configured, otherwise a uniform topology over the pipeline devices.
func loadTopology(cfg *config.Config) (*device.TopologyFile, error) {
	if cfg.Simulator.TopologyFile != "" {
		return device.LoadTopologyFile(cfg.Simulator.TopologyFile)
	}
	return device.UniformTopology(cfg.Pipeline.Devices, cfg.Simulator.MemoryMB, cfg.Simulator.PeerAccess), nil
}

// terminalNotifier prints escalation messages, which carry their own
// "Error:" prefix, on w.
func terminalNotifier(w io.Writer) fatal.Notifier {
	return func(msg string) {
		fmt.Fprintln(w, errorStyle.Render(msg))
	}
}

func newRunID() string {
	return "run-" + time.Now().UTC().Format("20060102T150405.000")
}

// runPipeline executes one alignment run described by cfg. Fatal device
// errors are reported on errOut and cancel the run.
func runPipeline(ctx context.Context, cfg *config.Config, errOut io.Writer) (pipeline.Summary, error) {
	runID := newRunID()
	sum := pipeline.Summary{RunID: runID}

	logger, err := newLogger(cfg.Logging, errOut)
	if err != nil {
		return sum, fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logger = logger.WithRun(runID)

	tf, err := loadTopology(cfg)
	if err != nil {
		return sum, err
	}
	sim := device.NewSim(tf)

	bus := event.NewBus(logger)
	bus.Subscribe(event.TypeStagedTransfer, func(e event.Event) {
		if st, ok := e.(event.StagedTransferEvent); ok {
			logger.Debug("neighbor staged",
				"worker_id", st.WorkerID,
				"tile", st.TileID,
				"from_device", st.FromDevice,
				"via_device", st.ViaDevice,
			)
		}
	})
	escalator := fatal.New(logger,
		fatal.WithBus(bus),
		fatal.WithNotifier(terminalNotifier(errOut)),
	)

	grid, err := pipeline.BuildGrid(sim, pipeline.GridSpec{
		Rows:       cfg.Grid.Rows,
		Cols:       cfg.Grid.Cols,
		TileWidth:  cfg.Grid.TileWidth,
		TileHeight: cfg.Grid.TileHeight,
	}, cfg.Pipeline.Devices)
	if err != nil {
		return sum, fmt.Errorf("failed to build tile grid: %w", err)
	}
	defer func() {
		if err := grid.Release(); err != nil {
			logger.Warn("failed to release tile grid", "error", err.Error())
		}
	}()

	var store *results.Store
	if cfg.Results.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Results.DBPath), 0755); err != nil {
			return sum, fmt.Errorf("failed to create results directory: %w", err)
		}
		store, err = results.Open(cfg.Results.DBPath)
		if err != nil {
			return sum, err
		}
		defer store.Close()
	}

	p, err := pipeline.New(pipeline.Options{
		Driver:    sim,
		Backend:   correlation.NewReference(sim),
		Devices:   cfg.Pipeline.Devices,
		InitTile:  grid.At(0, 0),
		NumPeaks:  cfg.Pipeline.NumPeaks,
		RunID:     runID,
		Escalator: escalator,
		Logger:    logger,
		Bus:       bus,
	})
	if err != nil {
		return sum, err
	}

	// onCCF runs on the single CCF stage goroutine.
	var collected []results.Result
	onCCF := func(t *task.Task) error {
		r, err := results.FromTask(runID, t)
		if err != nil {
			return err
		}
		collected = append(collected, r)
		if store != nil {
			return store.Record(ctx, r)
		}
		return nil
	}

	sum, err = pipeline.Execute(ctx, p, pipeline.Requests(grid), onCCF)
	if err != nil {
		return sum, err
	}

	if cfg.Results.JSONPath != "" {
		if err := results.ExportJSONFile(cfg.Results.JSONPath, runID, collected); err != nil {
			return sum, err
		}
	}

	logger.Info("run finished",
		"requests", sum.Requests,
		"ccf", sum.CCF,
		"cancelled", sum.Cancelled,
		"duration_ms", sum.Duration.Milliseconds(),
	)
	return sum, nil
}
