package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/pciam/internal/config"
	"github.com/Iron-Ham/pciam/internal/device"
)

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Show which simulated devices have peer access",
	Long: `Print the peer-access matrix of the simulated devices.

A "peer" cell means the row device reads the column device's memory
directly. A "staged" cell means a worker on the row device copies the
column device's tiles into its own staging buffer first.

Use --yaml to print the topology in the format accepted by --file.`,
	RunE: runTopology,
}

var (
	topologyFile string
	topologyYAML bool
)

func init() {
	topologyCmd.Flags().StringVarP(&topologyFile, "file", "f", "", "YAML topology file (default from config)")
	topologyCmd.Flags().BoolVar(&topologyYAML, "yaml", false, "print the topology as YAML")
	rootCmd.AddCommand(topologyCmd)
}

func runTopology(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if topologyFile != "" {
		cfg.Simulator.TopologyFile = topologyFile
	}

	tf, err := loadTopology(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if topologyYAML {
		data, err := tf.Marshal()
		if err != nil {
			return fmt.Errorf("failed to encode topology: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	rendered, err := renderTopology(device.NewSim(tf), tf, terminalWidth())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, rendered)
	return nil
}
