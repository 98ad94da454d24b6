package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/pipeline"
)

var (
	primaryColor = lipgloss.Color("#A78BFA")
	greenColor   = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#F87171")
	mutedColor   = lipgloss.Color("#9CA3AF")
	borderColor  = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	labelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(14)
	valueStyle = lipgloss.NewStyle()
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(mutedColor)
	okStyle    = lipgloss.NewStyle().Foreground(greenColor)
	warnStyle  = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(errorColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)
)

const (
	defaultWidth = 80
	maxBoxWidth  = 72
	cellWidth    = 8
)

// terminalWidth returns the width of stdout, or defaultWidth when stdout is
// not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}

func boxed(content string, width int) string {
	w := min(width-2, maxBoxWidth)
	if w < 20 {
		return content
	}
	return boxStyle.Width(w).Render(content)
}

func field(label string, value any) string {
	return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value))
}

// renderSummary formats a finished run for the terminal. devices lists the
// device id of each worker in worker order.
func renderSummary(sum pipeline.Summary, devices []int, width int) string {
	var lines []string

	status := okStyle.Render("completed")
	if sum.Cancelled {
		status = warnStyle.Render("cancelled")
	}
	lines = append(lines,
		titleStyle.Render("pciam run "+sum.RunID),
		"",
		field("status", status),
		field("requests", sum.Requests),
		field("unprocessed", sum.Unprocessed),
		field("checked", sum.Checks),
		field("ccf results", sum.CCF),
		field("duration", sum.Duration.Round(time.Millisecond)),
		"",
		headStyle.Render(fmt.Sprintf("%-8s %-8s %10s %10s", "worker", "device", "aligned", "staged")),
	)
	for i, ws := range sum.Workers {
		dev := "?"
		if i < len(devices) {
			dev = fmt.Sprint(devices[i])
		}
		lines = append(lines, fmt.Sprintf("%-8d %-8s %10d %10d", i, dev, ws.Aligned, ws.Staged))
	}

	if len(sum.Queues) > 0 {
		lines = append(lines, "", headStyle.Render(fmt.Sprintf("%-12s %8s %8s %8s", "queue", "depth", "puts", "takes")))
		for _, q := range sum.Queues {
			lines = append(lines, fmt.Sprintf("%-12s %8d %8d %8d", q.Name, q.Depth, q.Puts, q.Takes))
		}
	}

	return boxed(strings.Join(lines, "\n"), width)
}

// renderTopology formats the peer-access matrix of the simulated devices.
// Cells read "self", "peer" for direct access or "staged" when transfers
// must go through the reading device.
func renderTopology(sim *device.Sim, tf *device.TopologyFile, width int) (string, error) {
	ids := sim.DeviceIDs()
	cell := lipgloss.NewStyle().Width(cellWidth)

	header := []string{cell.Render("")}
	for _, id := range ids {
		header = append(header, headStyle.Width(cellWidth).Render(fmt.Sprintf("dev %d", id)))
	}
	rows := []string{
		titleStyle.Render("peer access"),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, header...),
	}

	for _, dev := range ids {
		row := []string{headStyle.Width(cellWidth).Render(fmt.Sprintf("dev %d", dev))}
		for _, peer := range ids {
			if dev == peer {
				row = append(row, cell.Foreground(mutedColor).Render("self"))
				continue
			}
			ok, err := sim.CanAccessPeer(dev, peer)
			if err != nil {
				return "", err
			}
			if ok {
				row = append(row, cell.Foreground(greenColor).Render("peer"))
			} else {
				row = append(row, cell.Foreground(warningColor).Render("staged"))
			}
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}

	rows = append(rows, "", headStyle.Render("memory"))
	for _, d := range tf.Devices {
		budget := "unlimited"
		if b := d.Budget(); b > 0 {
			budget = formatBytes(b)
		}
		rows = append(rows, field(fmt.Sprintf("dev %d", d.ID), budget))
	}

	return boxed(strings.Join(rows, "\n"), width), nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
