package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/control"
	"github.com/san-kum/glide/internal/dynamo"
	"github.com/san-kum/glide/internal/logging"
	"github.com/san-kum/glide/internal/metrics"
	"github.com/san-kum/glide/internal/sim"
)

const (
	width           = 60
	height          = 22
	historyCapacity = 600
	chartPoints     = 40

	winchNudge   = 0.5 // rad/s per key press
	currentNudge = 0.1 // A per key press
)

// Snapshot stores one kept record and the chain shape for replay.
type Snapshot struct {
	Positions []dynamo.Vec2
	Record    metrics.Record
}

type TickMsg time.Time

// Model drives a simulator from bubbletea ticks. Arrow keys add a manual
// offset to the configured winch and current profiles.
type Model struct {
	sim     *sim.Simulator
	winch   *control.Manual
	current *control.Manual

	canvas   *Canvas
	theme    Theme
	running  bool
	showHelp bool
	speed    int
	history  []Snapshot
	playHead int
	err      error
}

// NewModel builds a live view over a fresh simulator for cfg.
func NewModel(cfg config.Config, log logging.Logger) (Model, error) {
	baseWinch, err := cfg.WinchProfile.Build()
	if err != nil {
		return Model{}, &dynamo.ConfigError{Field: "winch_profile", Value: cfg.WinchProfile.Kind, Reason: err.Error()}
	}
	baseCurrent, err := cfg.CurrentProfile.Build()
	if err != nil {
		return Model{}, &dynamo.ConfigError{Field: "current_profile", Value: cfg.CurrentProfile.Kind, Reason: err.Error()}
	}

	winch, current := control.NewManual(winchNudge), control.NewManual(currentNudge)
	s, err := sim.New(cfg, winch.Over(baseWinch), current.Over(baseCurrent), log)
	if err != nil {
		return Model{}, err
	}

	m := Model{
		sim:      s,
		winch:    winch,
		current:  current,
		canvas:   NewCanvas(width, height),
		theme:    Themes[0],
		running:  true,
		speed:    1,
		history:  make([]Snapshot, 0, historyCapacity),
		playHead: -1,
	}
	m.snapshot(s.Ledger().Last())
	return m, nil
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "up", "k":
			m.winch.Nudge(1)
		case "down", "j":
			m.winch.Nudge(-1)
		case "right", "l":
			m.current.Nudge(1)
		case "left", "h":
			m.current.Nudge(-1)
		case "+", "=":
			m.speed = min(m.speed*2, 64)
		case "-", "_":
			m.speed = max(m.speed/2, 1)
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "t":
			m.theme = NextTheme(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && m.err == nil {
			if m.playHead == -1 {
				m.advance(context.Background())
			} else {
				m.playHead++
				if m.playHead >= len(m.history) {
					m.playHead = -1
				}
			}
		}
		return m, tick()
	}
	return m, nil
}

// advance runs speed outer steps. A diverged run stops the view and keeps
// the error on screen.
func (m *Model) advance(ctx context.Context) {
	for i := 0; i < m.speed; i++ {
		rec, err := m.sim.Step(ctx)
		if err != nil {
			m.err = err
			m.running = false
			return
		}
		m.snapshot(rec)
	}
}

func (m *Model) snapshot(rec metrics.Record) {
	m.history = append(m.history, Snapshot{Positions: m.sim.State().Positions(), Record: rec})
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
}

// scrub moves the replay position; stepping past the newest snapshot
// returns to live.
func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.history) == 0 {
			return
		}
		m.playHead = len(m.history) - 1
		m.running = false
	}
	m.playHead = max(m.playHead+dir, 0)
	if m.playHead >= len(m.history) {
		m.playHead = -1
	}
}

func (m *Model) reset() {
	m.sim.Reset()
	m.winch.Reset()
	m.current.Reset()
	m.history = m.history[:0]
	m.playHead = -1
	m.err = nil
	m.snapshot(m.sim.Ledger().Last())
}

func (m Model) frame() Snapshot {
	if m.playHead >= 0 && m.playHead < len(m.history) {
		return m.history[m.playHead]
	}
	return m.history[len(m.history)-1]
}

// View renders the tether on the left and the energy panel on the right.
func (m Model) View() string {
	snap := m.frame()
	rec := snap.Record
	th := m.theme

	m.canvas.Clear()
	m.canvas.DrawChain(snap.Positions, FitViewport(snap.Positions, m.canvas, 2))
	canvasView := lipgloss.NewStyle().Padding(1, 2).Foreground(th.Tether).Render(m.canvas.String())

	label := lipgloss.NewStyle().Foreground(th.Muted).Width(12)
	value := lipgloss.NewStyle().Foreground(th.Text)
	line := func(name, format string, v ...any) string {
		return label.Render(name) + value.Render(fmt.Sprintf(format, v...)) + "\n"
	}

	var s strings.Builder
	cfg := m.sim.Config()
	s.WriteString(lipgloss.NewStyle().Foreground(th.Accent).Bold(true).Render(strings.ToUpper(cfg.Name)) + "\n")
	s.WriteString(m.status() + "\n\n")

	if len(m.history) > 1 {
		totals := make([]float64, 0, len(m.history))
		for _, h := range m.history {
			totals = append(totals, h.Record.Total)
		}
		chart := asciigraph.Plot(Downsample(totals, chartPoints), asciigraph.Height(4), asciigraph.Width(chartPoints), asciigraph.Caption("E_total"))
		s.WriteString(lipgloss.NewStyle().Foreground(th.Chart).Render(chart) + "\n\n")
	}

	s.WriteString(line("time", "%.2f s", rec.Time))
	s.WriteString(label.Render("SoC") + ProgressBar(rec.SoC, 12) + value.Render(fmt.Sprintf(" %.1f%%", 100*rec.SoC)) + "\n")
	s.WriteString(line("E_kin", "%.4g J", rec.Kinetic))
	s.WriteString(line("E_elastic", "%.4g J", rec.Elastic))
	s.WriteString(line("E_grav", "%.4g J", rec.Grav))
	s.WriteString(line("E_total", "%.6g J", rec.Total))
	s.WriteString(line("tension", "%.4g N", rec.Tension))
	s.WriteString(line("stretch", "%.3g", rec.MaxStretch))
	s.WriteString(line("ω cmd", "%+.2f rad/s (%+.1f)", rec.OmegaCmd, m.winch.Offset()))
	s.WriteString(line("i cmd", "%+.2f A (%+.1f)", rec.CurrentCmd, m.current.Offset()))
	s.WriteString(line("speed", "%dx", m.speed))
	if n := m.sim.Ledger().Summary().DriftWarnings; n > 0 {
		s.WriteString(lipgloss.NewStyle().Foreground(th.Warning).Render(fmt.Sprintf("%d drift warnings", n)) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(th.Error).Width(40).Render(m.err.Error()) + "\n")
	}
	s.WriteString(lipgloss.NewStyle().Foreground(th.Muted).MarginTop(1).Render("SP:Pause R:Reset Q:Quit ?:Help"))

	stats := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(th.Muted).
		Padding(1, 2).
		Width(48).
		Render(s.String())
	view := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, stats)
	if m.showHelp {
		return helpText + "\n\n" + view
	}
	return view
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return lipgloss.NewStyle().Foreground(m.theme.Error).Bold(true).Render("DIVERGED")
	case m.playHead != -1:
		back := m.history[m.playHead].Record.Time - m.history[len(m.history)-1].Record.Time
		return lipgloss.NewStyle().Foreground(m.theme.Warning).Render(fmt.Sprintf("REPLAY (%.2fs)", back))
	case !m.running:
		return lipgloss.NewStyle().Foreground(m.theme.Warning).Render("PAUSED")
	}
	return lipgloss.NewStyle().Foreground(m.theme.Good).Render("RUNNING")
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Reset                    ║
║  Q        - Quit                     ║
║  Up/Down  - Winch speed ±0.5 rad/s   ║
║  Left/Rt  - EDT current ±0.1 A       ║
║  + / -    - Steps per frame          ║
║  [ / ]    - Rewind / forward         ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝`

// RunLive opens the live view for cfg.
func RunLive(cfg config.Config, log logging.Logger) error {
	m, err := NewModel(cfg, log)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
