package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ardnew/synccom/port"
)

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Width(16)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true).
			PaddingLeft(1)
)

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

const (
	refreshInterval = 500 * time.Millisecond
	usageBarWidth   = 30
)

// tickMsg triggers a stats refresh.
type tickMsg time.Time

// purgedMsg reports the result of a purge.
type purgedMsg struct{ err error }

// monitorModel shows a live view of one port.
type monitorModel struct {
	ctx    context.Context
	port   *port.Port
	device string

	stats   port.Stats
	rate    float64
	updated time.Time
	status  string
	err     error
}

func newMonitorModel(ctx context.Context, p *port.Port, device string) monitorModel {
	return monitorModel{
		ctx:     ctx,
		port:    p,
		device:  device,
		stats:   p.Stats(),
		updated: time.Now(),
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) purge() tea.Cmd {
	return func() tea.Msg {
		if err := m.port.PurgeTx(m.ctx); err != nil {
			return purgedMsg{err}
		}
		return purgedMsg{m.port.PurgeRx(m.ctx)}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "p":
			m.status = "purging..."
			return m, m.purge()
		}
		return m, nil

	case tickMsg:
		now := time.Time(msg)
		stats := m.port.Stats()
		if dt := now.Sub(m.updated).Seconds(); dt > 0 {
			m.rate = float64(stats.BytesIn-m.stats.BytesIn) / dt
		}
		m.stats, m.updated = stats, now
		if m.port.IsClosed() {
			m.err = fmt.Errorf("port %s closed", m.port.Name())
			return m, tea.Quit
		}
		return m, tick()

	case purgedMsg:
		m.err = msg.err
		m.status = ""
		if msg.err == nil {
			m.status = "purged"
		}
		return m, nil
	}
	return m, nil
}

// usageBar renders used/limit as a fixed-width bar.
func usageBar(used, limit int) string {
	if limit <= 0 {
		return strings.Repeat("░", usageBarWidth)
	}
	filled := min(used*usageBarWidth/limit, usageBarWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", usageBarWidth-filled)
	if filled*10 >= usageBarWidth*9 {
		return warnStyle.Render(bar)
	}
	return bar
}

func (m monitorModel) View() string {
	s := m.stats
	mode := "framed"
	if s.Streaming {
		mode = "streaming"
	}

	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("synccom %s  %s", m.port.Name(), m.device)))
	b.WriteString("\n\n")
	b.WriteString(row("mode", mode))
	b.WriteString(row("input", fmt.Sprintf("%s %d / %d", usageBar(s.InputUsage, s.MemoryCap.Input), s.InputUsage, s.MemoryCap.Input)))
	b.WriteString(row("output", fmt.Sprintf("%s %d / %d", usageBar(s.OutputUsage, s.MemoryCap.Output), s.OutputUsage, s.MemoryCap.Output)))
	b.WriteString("\n")
	b.WriteString(row("frames in", fmt.Sprintf("%d (%d bytes, %.0f B/s)", s.FramesIn, s.BytesIn, m.rate)))
	b.WriteString(row("frames out", fmt.Sprintf("%d (%d bytes)", s.FramesOut, s.BytesOut)))
	b.WriteString(row("queued", fmt.Sprintf("%d in, %d out, %d pending", s.QueuedIFrames, s.QueuedOFrames, s.PendingFrames)))
	b.WriteString(row("stream", fmt.Sprintf("%d bytes", s.StreamLength)))
	dropped := fmt.Sprintf("%d chunks (%d bytes)", s.DroppedChunks, s.DroppedBytes)
	if s.DroppedChunks > 0 {
		dropped = warnStyle.Render(dropped)
	}
	b.WriteString(row("dropped", dropped))
	b.WriteString(row("suspect", fmt.Sprintf("%d chunks", s.SuspectChunks)))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	status := "p purge  q quit"
	if m.status != "" {
		status = m.status + "  |  " + status
	}
	b.WriteString(statusBarStyle.Render(status))
	return b.String()
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show a live view of a port's buffers and counters",
	Long: `Attach to a card and display its memory usage and pipeline
counters, refreshed twice a second.

Key bindings:
  p          Purge receiver and transmitter
  q / Ctrl+C Quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.close()

		model := newMonitorModel(cmd.Context(), s.port(), s.card.Info().String())
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		final, err := p.Run()
		if err != nil {
			return err
		}
		return final.(monitorModel).err
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
