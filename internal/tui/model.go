// Package tui provides the Bubble Tea point-counting interface.
package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/pointcount/internal/export"
	"github.com/verte-zerg/pointcount/internal/session"
	"github.com/verte-zerg/pointcount/internal/stage"
)

type mode int

const (
	modeCount mode = iota
	modeStepInput
	modeExportInput
)

// Model implements the Bubble Tea counting UI. Each key event maps to one
// session call; the model itself keeps no tally state.
type Model struct {
	session   *session.Session
	exportDir string
	now       func() time.Time

	width  int
	height int

	mode        mode
	grid        table.Model
	stepInput   textinput.Model
	exportInput textinput.Model

	// overwrite is the existing export path the operator was warned about.
	overwrite string

	status      string
	statusErr   bool
	lastCommand string
}

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	onlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(0, 1)
)

const title = "Concrete Aggregate Counter"

// NewModel constructs a counting TUI over s.
func NewModel(s *session.Session, exportDir string) *Model {
	m := &Model{
		session:     s,
		exportDir:   exportDir,
		now:         time.Now,
		stepInput:   newInput("Step distance (in.): "),
		exportInput: newInput("Save as: "),
	}
	m.grid = buildGrid(s.Tally())
	return m
}

func newInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeStepInput:
			return m.updateStepInput(msg)
		case modeExportInput:
			return m.updateExportInput(msg)
		default:
			return m.updateCount(msg)
		}
	default:
		return m, nil
	}
}

func (m *Model) updateCount(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete:
		res := m.session.Undo()
		if !res.Undone {
			m.setStatus("Nothing to undo.", false)
			return m, nil
		}
		m.applyResult(fmt.Sprintf("Removed %s.", m.session.Categories().Label(res.Category)), res)
		return m, nil
	case tea.KeyRight:
		m.applyResult("Stage forward.", m.session.Advance())
		return m, nil
	case tea.KeyLeft:
		m.applyResult("Stage backward.", m.session.Retreat())
		return m, nil
	case tea.KeyCtrlR:
		m.session.Reset()
		m.refreshGrid()
		m.setStatus("Counts reset.", false)
		return m, nil
	case tea.KeyCtrlS:
		return m.startExport()
	case tea.KeyTab:
		return m.startStepInput()
	case tea.KeyRunes:
		// A paste or alt chord is not an observation.
		if msg.Paste || msg.Alt {
			return m, nil
		}
		m.handleRunes(msg.Runes)
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) handleRunes(runes []rune) {
	for _, r := range runes {
		res, ok := m.session.HandleKey(string(r))
		if !ok {
			continue
		}
		m.applyResult(fmt.Sprintf("Counted %s.", m.session.Categories().Label(res.Category)), res)
	}
}

func (m *Model) applyResult(msg string, res session.Result) {
	m.refreshGrid()
	if res.Command != "" {
		m.lastCommand = res.Command
	}
	if res.MoveErr != nil {
		m.setStatus(fmt.Sprintf("%s Stage move failed: %v", msg, res.MoveErr), true)
		return
	}
	m.setStatus(msg, false)
}

func (m *Model) startStepInput() (tea.Model, tea.Cmd) {
	m.mode = modeStepInput
	m.stepInput.SetValue(formatInches(m.session.Stage().StepDistance()))
	m.stepInput.CursorEnd()
	return m, m.stepInput.Focus()
}

func (m *Model) updateStepInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeInput()
		return m, nil
	case tea.KeyEnter:
		m.commitStepDistance(m.stepInput.Value())
		m.closeInput()
		return m, nil
	}
	var cmd tea.Cmd
	m.stepInput, cmd = m.stepInput.Update(msg)
	return m, cmd
}

// commitStepDistance parses and stores a step distance. Unparsable input keeps
// the current value; out-of-range input is clamped.
func (m *Model) commitStepDistance(raw string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		m.setStatus(fmt.Sprintf("Invalid step distance %q; keeping %s in.", raw, formatInches(m.session.Stage().StepDistance())), true)
		return
	}
	stored := m.session.SetStepDistance(v)
	if stored != v {
		m.setStatus(fmt.Sprintf("Step distance clamped to %s in.", formatInches(stored)), false)
		return
	}
	m.setStatus(fmt.Sprintf("Step distance set to %s in.", formatInches(stored)), false)
}

func (m *Model) startExport() (tea.Model, tea.Cmd) {
	m.mode = modeExportInput
	m.exportInput.SetValue(filepath.Join(m.exportDir, export.DefaultFilename(m.now())))
	m.exportInput.CursorEnd()
	return m, m.exportInput.Focus()
}

func (m *Model) updateExportInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeInput()
		m.setStatus("Export cancelled.", false)
		return m, nil
	case tea.KeyEnter:
		if m.commitExport(m.exportInput.Value()) {
			m.closeInput()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.exportInput, cmd = m.exportInput.Update(msg)
	return m, cmd
}

// commitExport writes the export and reports whether the prompt is done. An
// existing file is only replaced after a second enter on the same path.
func (m *Model) commitExport(raw string) bool {
	path, err := export.NormalizePath(raw)
	if errors.Is(err, export.ErrCancelled) {
		m.setStatus("Export cancelled.", false)
		return true
	}
	if export.Exists(path) && m.overwrite != path {
		m.overwrite = path
		m.setStatus(fmt.Sprintf("%s exists; press enter again to overwrite.", path), true)
		return false
	}
	if err := export.WriteFile(path, m.session.Tally()); err != nil {
		m.setStatus(err.Error(), true)
		return true
	}
	m.setStatus(fmt.Sprintf("Exported %d counts to %s.", m.session.Total(), path), false)
	return true
}

func (m *Model) closeInput() {
	m.mode = modeCount
	m.overwrite = ""
	m.stepInput.Blur()
	m.exportInput.Blur()
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.status = msg
	m.statusErr = isErr
}

func (m *Model) refreshGrid() {
	m.grid.SetRows(gridRows(m.session.Tally()))
}

// View implements tea.Model.
func (m *Model) View() string {
	sections := []string{
		titleStyle.Render(title),
		m.grid.View(),
		m.renderStage(),
	}
	switch m.mode {
	case modeStepInput:
		sections = append(sections, promptStyle.Render(m.stepInput.View()))
	case modeExportInput:
		sections = append(sections, promptStyle.Render(m.exportInput.View()))
	}
	if m.status != "" {
		style := statusStyle
		if m.statusErr {
			style = errorStyle
		}
		sections = append(sections, style.Render(m.status))
	}
	sections = append(sections, headerStyle.Render(m.renderHelp()))
	content := strings.Join(sections, "\n\n")
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderStage() string {
	st := m.session.Stage()
	state := headerStyle.Render(st.State().String())
	if st.State() == stage.Connected {
		state = onlineStyle.Render(st.State().String())
	}
	parts := []string{
		"Stage " + state,
		fmt.Sprintf("Step %s in. (max %s)", formatInches(st.StepDistance()), formatInches(st.MaxStepDistance())),
	}
	if m.lastCommand != "" {
		parts = append(parts, "Last "+m.lastCommand)
	}
	return strings.Join(parts, "  ·  ")
}

func (m *Model) renderHelp() string {
	switch m.mode {
	case modeStepInput:
		return "enter: apply  esc: cancel"
	case modeExportInput:
		return "enter: save  esc: cancel"
	default:
		return "backspace: undo  ←/→: jog stage  tab: step distance  ctrl+s: export  ctrl+r: reset  ctrl+c: quit"
	}
}

func formatInches(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
