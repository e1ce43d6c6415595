package viz

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/logging"
)

var presetInfo = map[string]string{
	"engineering":  "soft tether, EDT boost",
	"orbital_test": "reduced g, EDT drag",
	"local_demo":   "ground demo, EDT off",
}

const (
	stateMenu = iota
	stateConfig
	stateSim
)

// param is one editable configuration field of the setup screen.
type param struct {
	name string
	get  func(*config.Config) float64
	set  func(*config.Config, float64)
}

var params = []param{
	{"duration", func(c *config.Config) float64 { return c.Duration }, func(c *config.Config, v float64) { c.Duration = v }},
	{"dt", func(c *config.Config) float64 { return c.Dt }, func(c *config.Config, v float64) { c.Dt = v }},
	{"segments", func(c *config.Config) float64 { return float64(c.Tether.N) }, func(c *config.Config, v float64) { c.Tether.N = int(v) }},
	{"length", func(c *config.Config) float64 { return c.Tether.L0 }, func(c *config.Config, v float64) { c.Tether.L0 = v }},
	{"damping", func(c *config.Config) float64 { return c.Tether.DampingRatio }, func(c *config.Config, v float64) { c.Tether.DampingRatio = v }},
	{"stretch", func(c *config.Config) float64 { return c.Tether.InitialStretch }, func(c *config.Config, v float64) { c.Tether.InitialStretch = v }},
	{"winch amp", func(c *config.Config) float64 { return c.WinchProfile.Amplitude }, func(c *config.Config, v float64) { c.WinchProfile.Amplitude = v }},
	{"current amp", func(c *config.Config) float64 { return c.CurrentProfile.Amplitude }, func(c *config.Config, v float64) { c.CurrentProfile.Amplitude = v }},
}

type app struct {
	state       int
	cursor      int
	presets     []string
	cfg         config.Config
	paramCursor int
	editing     bool
	editBuf     string
	err         error
	log         logging.Logger
	live        Model
}

func newApp(log logging.Logger) app {
	return app{state: stateMenu, presets: config.ListPresets(), log: log}
}

func (m app) Init() tea.Cmd { return nil }

func (m app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == stateSim {
		live, cmd := m.live.Update(msg)
		m.live = live.(Model)
		return m, cmd
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		if m.state == stateMenu {
			return m.menuKey(key)
		}
		return m.configKey(key)
	}
	return m, nil
}

func (m app) menuKey(msg tea.KeyMsg) (app, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		cfg, err := config.GetPreset(m.presets[m.cursor])
		if err != nil {
			m.err = err
			return m, nil
		}
		m.cfg, m.err = cfg, nil
		m.state, m.paramCursor = stateConfig, 0
	}
	return m, nil
}

func (m app) configKey(msg tea.KeyMsg) (app, tea.Cmd) {
	p := params[m.paramCursor]
	if m.editing {
		switch msg.String() {
		case "enter":
			if v, err := strconv.ParseFloat(m.editBuf, 64); err == nil {
				p.set(&m.cfg, v)
			}
			m.editing, m.editBuf = false, ""
		case "esc":
			m.editing, m.editBuf = false, ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if s := msg.String(); len(s) == 1 && strings.ContainsAny(s, "0123456789.-e") {
				m.editBuf += s
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(params)-1 {
			m.paramCursor++
		}
	case "enter", " ":
		m.editing, m.editBuf = true, strconv.FormatFloat(p.get(&m.cfg), 'g', -1, 64)
	case "left", "h":
		p.set(&m.cfg, p.get(&m.cfg)*0.9)
	case "right", "l":
		p.set(&m.cfg, p.get(&m.cfg)*1.1)
	case "s":
		live, err := NewModel(m.cfg, m.log)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.live, m.err, m.state = live, nil, stateSim
		return m, m.live.Init()
	}
	return m, nil
}

var (
	menuTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00cccc")).Bold(true)
	menuSub   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	menuArrow = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	menuPick  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	menuDesc  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	menuOff   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	menuKey   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
	menuErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

func (m app) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	}
	return m.live.View()
}

func keys(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(menuKey.Render(pairs[i]) + menuOff.Render(" "+pairs[i+1]+"  "))
	}
	return b.String()
}

func (m app) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n\n    " + menuTitle.Render("GLIDE") + "\n    " + menuSub.Render("electrodynamic tether simulator") + "\n    " + menuSub.Render("───────────────────────────────") + "\n\n")
	for i, name := range m.presets {
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", menuArrow.Render("▸"), menuPick.Render(fmt.Sprintf("%-14s", name)), menuDesc.Render(presetInfo[name])))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n", menuOff.Render(fmt.Sprintf("  %-14s", name)), menuOff.Render(presetInfo[name])))
		}
	}
	b.WriteString("\n    " + keys("j/k", "navigate", "enter", "select", "q", "quit") + "\n")
	if m.err != nil {
		b.WriteString("\n    " + menuErr.Render(m.err.Error()) + "\n")
	}
	return b.String()
}

func (m app) viewConfig() string {
	var b strings.Builder
	b.WriteString("\n\n    " + menuTitle.Render(strings.ToUpper(m.cfg.Name)) + "\n    " + menuSub.Render(presetInfo[m.cfg.Name]) + "\n    " + menuSub.Render("───────────────────────────────") + "\n\n")
	for i, p := range params {
		val := fmt.Sprintf("%10.4g", p.get(&m.cfg))
		if m.editing && i == m.paramCursor {
			val = fmt.Sprintf("%10s", m.editBuf+"_")
		}
		if i == m.paramCursor {
			b.WriteString(fmt.Sprintf("    %s %s %s\n", menuArrow.Render("▸"), menuPick.Render(fmt.Sprintf("%-12s", p.name)), menuDesc.Bold(true).Render(val)))
		} else {
			b.WriteString(fmt.Sprintf("    %s %s\n", menuOff.Render(fmt.Sprintf("  %-12s", p.name)), menuOff.Render(val)))
		}
	}
	b.WriteString("\n    " + keys("j/k", "select", "h/l", "adjust", "enter", "edit", "s", "start", "esc", "back") + "\n")
	if m.err != nil {
		b.WriteString("\n    " + menuErr.Render(m.err.Error()) + "\n")
	}
	return b.String()
}

// RunInteractive opens the preset picker, then the live view of the chosen
// configuration.
func RunInteractive(log logging.Logger) error {
	_, err := tea.NewProgram(newApp(log), tea.WithAltScreen()).Run()
	return err
}
