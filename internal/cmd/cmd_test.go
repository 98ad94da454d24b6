package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/Iron-Ham/pciam/internal/config"
	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/fatal"
	"github.com/Iron-Ham/pciam/internal/pipeline"
	"github.com/Iron-Ham/pciam/internal/results"
	"github.com/Iron-Ham/pciam/internal/taskqueue"
	"github.com/Iron-Ham/pciam/internal/worker"
)

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "pciam" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "pciam")
	}

	cmdMap := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		cmdMap[c.Name()] = true
	}
	for _, expected := range []string{"run", "topology", "config"} {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

// testConfig returns a small config that logs to stderr only.
func testConfig(t *testing.T, devices []int) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Pipeline.Devices = devices
	cfg.Grid = config.GridConfig{Rows: 3, Cols: 3, TileWidth: 16, TileHeight: 16}
	cfg.Results.DBPath = filepath.Join(dir, "db", "results.db")
	cfg.Results.JSONPath = filepath.Join(dir, "out", "results.json")
	cfg.Logging.Enabled = false
	return cfg
}

func TestRunPipeline(t *testing.T) {
	tests := []struct {
		name       string
		devices    []int
		peerAccess bool
	}{
		{name: "single device", devices: []int{0}},
		{name: "two devices without peer access", devices: []int{0, 1}},
		{name: "three devices with peer access", devices: []int{0, 1, 2}, peerAccess: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, tt.devices)
			cfg.Simulator.PeerAccess = tt.peerAccess

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var errOut bytes.Buffer
			sum, err := runPipeline(ctx, cfg, &errOut)
			if err != nil {
				t.Fatalf("runPipeline() error = %v (stderr: %s)", err, errOut.String())
			}

			// 3x3 grid: 6 NORTH and 6 WEST pairs
			const wantPairs = 12
			if sum.Requests != wantPairs || sum.Checks != wantPairs || sum.CCF != wantPairs {
				t.Errorf("summary = %+v, want %d requests, checks and results", sum, wantPairs)
			}
			if sum.Cancelled {
				t.Error("run should not be cancelled")
			}
			if len(sum.Workers) != len(tt.devices) {
				t.Errorf("len(Workers) = %d, want %d", len(sum.Workers), len(tt.devices))
			}
			var aligned int64
			for _, ws := range sum.Workers {
				aligned += ws.Aligned
				if tt.peerAccess && ws.Staged != 0 {
					t.Errorf("worker staged %d transfers with full peer access", ws.Staged)
				}
			}
			if aligned != wantPairs {
				t.Errorf("aligned = %d, want %d", aligned, wantPairs)
			}

			store, err := results.Open(cfg.Results.DBPath)
			if err != nil {
				t.Fatalf("results.Open() error = %v", err)
			}
			defer store.Close()
			if n, err := store.Count(ctx, sum.RunID); err != nil || n != wantPairs {
				t.Errorf("stored results = %d, %v; want %d", n, err, wantPairs)
			}

			data, err := os.ReadFile(cfg.Results.JSONPath)
			if err != nil {
				t.Fatalf("JSON export not written: %v", err)
			}
			var doc results.Document
			if err := sonnet.Unmarshal(data, &doc); err != nil {
				t.Fatalf("export is not valid JSON: %v", err)
			}
			if doc.RunID != sum.RunID || doc.Count != wantPairs {
				t.Errorf("export run = %q count = %d", doc.RunID, doc.Count)
			}
			for _, r := range doc.Results {
				if len(r.Peaks) > cfg.Pipeline.NumPeaks {
					t.Errorf("%s/%s has %d peaks, want at most %d", r.TileID, r.NeighborID, len(r.Peaks), cfg.Pipeline.NumPeaks)
				}
			}
		})
	}
}

func TestRunPipelineWithoutPersistence(t *testing.T) {
	cfg := testConfig(t, []int{0})
	cfg.Results.DBPath = ""
	cfg.Results.JSONPath = ""

	sum, err := runPipeline(context.Background(), cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("runPipeline() error = %v", err)
	}
	if sum.CCF != 12 {
		t.Errorf("CCF = %d, want 12", sum.CCF)
	}
}

func TestRunPipelineErrors(t *testing.T) {
	dir := t.TempDir()
	writeTopology := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	tinyTopology := writeTopology("tiny.yaml", "devices:\n  - id: 0\n    memory_bytes: 16\n")
	oneDevice := writeTopology("one.yaml", "devices:\n  - id: 0\n")

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr string
	}{
		{
			name:    "missing topology file",
			modify:  func(c *config.Config) { c.Simulator.TopologyFile = filepath.Join(dir, "missing.yaml") },
			wantErr: "topology file",
		},
		{
			name:    "device memory too small for the grid",
			modify:  func(c *config.Config) { c.Simulator.TopologyFile = tinyTopology },
			wantErr: "failed to build tile grid",
		},
		{
			name: "device not in topology",
			modify: func(c *config.Config) {
				c.Pipeline.Devices = []int{5}
				c.Simulator.TopologyFile = oneDevice
			},
			wantErr: "failed to build tile grid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, []int{0})
			tt.modify(cfg)

			_, err := runPipeline(context.Background(), cfg, &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("runPipeline() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestTerminalNotifierPrefixesOnce(t *testing.T) {
	var out bytes.Buffer
	esc := fatal.New(nil,
		fatal.WithNotifier(terminalNotifier(&out)),
		fatal.WithExit(func(int) {}),
	)
	esc.Attach(cancelFunc(func() {}))

	esc.Escalate(0, 1, device.ErrOutOfMemory)

	got := out.String()
	if !strings.Contains(got, fatal.InsufficientMemoryMessage) {
		t.Fatalf("notification = %q, want the insufficient memory message", got)
	}
	if n := strings.Count(got, "Error:"); n != 1 {
		t.Errorf("notification = %q has %d \"Error:\" prefixes, want 1", got, n)
	}
}

// cancelFunc adapts a function to fatal.Canceler.
type cancelFunc func()

func (f cancelFunc) CancelExecution() { f() }

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{key: "pipeline.num_peaks", value: "3", want: 3},
		{key: "pipeline.num_peaks", value: "three", wantErr: true},
		{key: "pipeline.devices", value: "0, 1,2", want: []int{0, 1, 2}},
		{key: "pipeline.devices", value: "0,x", wantErr: true},
		{key: "simulator.peer_access", value: "true", want: true},
		{key: "simulator.peer_access", value: "yes", wantErr: true},
		{key: "results.json_path", value: "/tmp/out.json", want: "/tmp/out.json"},
		{key: "logging.level", value: "debug", want: "debug"},
		{key: "logging.level", value: "verbose", wantErr: true},
		{key: "tui.theme", value: "dark", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseConfigValue(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseConfigValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if ids, ok := tt.want.([]int); ok {
				if gotIDs, _ := got.([]int); !slices.Equal(gotIDs, ids) {
					t.Errorf("parseConfigValue() = %v, want %v", got, ids)
				}
				return
			}
			if got != tt.want {
				t.Errorf("parseConfigValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderSummary(t *testing.T) {
	sum := pipeline.Summary{
		RunID:       "run-test",
		Requests:    12,
		Checks:      12,
		CCF:         12,
		Cancelled:   true,
		Unprocessed: 4,
		Duration:    1500 * time.Millisecond,
		Workers:     []worker.Stats{{Aligned: 7, Staged: 3}, {Aligned: 5, Staged: 0}},
		Queues:      []taskqueue.Stats{{Name: "alignment", Depth: 1, Puts: 15, Takes: 14}},
	}

	out := renderSummary(sum, []int{0, 3}, 100)
	for _, want := range []string{"run-test", "cancelled", "unprocessed", "alignment", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	// Narrow terminals get the unboxed text.
	narrow := renderSummary(sum, []int{0, 3}, 10)
	if strings.Contains(narrow, "╭") {
		t.Errorf("narrow summary should not be boxed:\n%s", narrow)
	}
}

func TestRenderTopology(t *testing.T) {
	tf := &device.TopologyFile{Devices: []device.DeviceSpec{
		{ID: 0, MemoryMB: 2, Peers: []int{1}},
		{ID: 1, Peers: []int{0}},
		{ID: 2},
	}}

	out, err := renderTopology(device.NewSim(tf), tf, 100)
	if err != nil {
		t.Fatalf("renderTopology() error = %v", err)
	}
	for _, want := range []string{"dev 2", "self", "peer", "staged", "2.0 MiB", "unlimited"} {
		if !strings.Contains(out, want) {
			t.Errorf("topology missing %q:\n%s", want, out)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{3 << 20, "3.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
