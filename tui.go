package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"jot/history"
	"jot/session"
)

// Messages fed into the TUI from the session machine callbacks.
type stateMsg session.State
type levelMsg float64
type partialMsg string
type resultMsg history.Item
type silenceMsg bool
type modeLineMsg string
type deviceLineMsg string
type updateAvailableMsg string
type tickMsg time.Time

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

const historyShown = 5

var (
	styleRec      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleBusy     = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	styleIdle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleWarn     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleMeterOn  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMeterOff = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	stylePartial  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	styleText     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleError    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleDimBold  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleTitle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
)

type tuiModel struct {
	hist *history.Log

	state          session.State
	recordingSince time.Time
	now            time.Time
	level          float64
	silenceWarn    bool
	partial        string
	last           *history.Item
	modeLine       string
	deviceLine     string
	updateVersion  string
	width, height  int
}

func newTUIProgram(hist *history.Log) *tea.Program {
	m := tuiModel{hist: hist, state: session.StateInitializing}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tuiTick()

	case stateMsg:
		prev := m.state
		m.state = session.State(msg)
		if m.state == session.StateRecording && prev != session.StateRecording {
			m.recordingSince = time.Now()
			m.partial = ""
			m.silenceWarn = false
		}
		if m.state != session.StateRecording {
			m.level = 0
			m.silenceWarn = false
		}

	case levelMsg:
		if m.state == session.StateRecording {
			m.level = m.level*0.6 + float64(msg)*0.4
		}

	case partialMsg:
		m.partial = string(msg)

	case silenceMsg:
		m.silenceWarn = bool(msg)

	case resultMsg:
		item := history.Item(msg)
		m.last = &item
		m.partial = ""

	case modeLineMsg:
		m.modeLine = string(msg)

	case deviceLineMsg:
		m.deviceLine = string(msg)

	case updateAvailableMsg:
		m.updateVersion = string(msg)
	}
	return m, nil
}

func (m tuiModel) statusLine() string {
	switch m.state {
	case session.StateInitializing:
		return styleBusy.Render("… INITIALIZING")
	case session.StateRecording:
		dur := m.now.Sub(m.recordingSince).Seconds()
		if dur < 0 {
			dur = 0
		}
		return styleRec.Render(fmt.Sprintf("● REC %.1fs", dur))
	case session.StateTranscribing:
		return styleBusy.Render("◌ TRANSCRIBING")
	case session.StateTransforming:
		return styleBusy.Render("◌ TRANSFORMING")
	default:
		return styleIdle.Render("○ STANDBY")
	}
}

func (m tuiModel) meter() string {
	const cells = 24
	lit := int(m.level * 4 * cells)
	if lit > cells {
		lit = cells
	}
	return styleMeterOn.Render(strings.Repeat("▮", lit)) +
		styleMeterOff.Render(strings.Repeat("▯", cells-lit))
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	wrapWidth := m.width - 4
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var b strings.Builder
	b.WriteString("\n  " + styleDimBold.Render("jot") + styleDim.Render(" "+version) + "\n\n")
	b.WriteString("  " + m.statusLine() + "\n")

	if m.state == session.StateRecording {
		b.WriteString("  " + m.meter() + "\n")
		if m.silenceWarn {
			b.WriteString("  " + styleWarn.Render("⚠ no voice detected") + "\n")
		}
		if m.partial != "" {
			for _, line := range wrapText(m.partial, wrapWidth) {
				b.WriteString("  " + stylePartial.Render(line) + "\n")
			}
		}
	}
	b.WriteString("\n")

	if m.modeLine != "" {
		b.WriteString("  " + styleIdle.Render(m.modeLine) + "\n")
	}
	if m.deviceLine != "" {
		b.WriteString("  " + styleIdle.Render(m.deviceLine) + "\n")
	}
	b.WriteString("\n")

	if m.last != nil {
		switch m.last.Kind {
		case history.KindError:
			b.WriteString("  " + styleTitle.Render("Last error") + "\n")
			for _, line := range wrapText(m.last.Body, wrapWidth) {
				b.WriteString("  " + styleError.Render(line) + "\n")
			}
		default:
			title := fmt.Sprintf("Last transcription (%.1fs)", m.last.Duration.Seconds())
			b.WriteString("  " + styleTitle.Render(title) + "\n")
			for _, line := range wrapText(m.last.Body, wrapWidth) {
				b.WriteString("  " + styleText.Render(line) + "\n")
			}
		}
		b.WriteString("\n")
	}

	if items := m.hist.List(); len(items) > 1 {
		b.WriteString("  " + styleTitle.Render("History") + "\n")
		shown := 0
		for _, item := range items[1:] {
			if shown >= historyShown {
				break
			}
			line := item.Body
			if item.Kind == history.KindError {
				line = "✗ " + line
			}
			if len(line) > wrapWidth {
				line = line[:wrapWidth-1] + "…"
			}
			b.WriteString("  " + styleDim.Render(line) + "\n")
			shown++
		}
		b.WriteString("\n")
	}

	if m.updateVersion != "" {
		b.WriteString("  " + styleWarn.Render("⚠ update available: "+m.updateVersion) + "\n\n")
	}

	help := styleDimBold.Render("Ctrl+Shift+Space") + styleDim.Render(" record · ") +
		styleDimBold.Render("Ctrl+Shift+I") + styleDim.Render(" instruct · ") +
		styleDimBold.Render("Ctrl+Shift+C") + styleDim.Render(" creative · ") +
		styleDimBold.Render("q") + styleDim.Render(" quit")
	b.WriteString("  " + help + "\n")

	return b.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
