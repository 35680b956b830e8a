package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-workspace/dbmanager"
	"github.com/wippyai/wasm-workspace/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	entryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type entryKind int

const (
	entryDatabase entryKind = iota
	entryNewDatabase
	entryRunGuest
)

type entry struct {
	kind  entryKind
	label string
}

type modelState int

const (
	stateMenu modelState = iota
	stateInput
	stateShowResult
)

type interactiveModel struct {
	ctx      context.Context
	ws       *workspace
	err      error
	entries  []entry
	selected int
	state    modelState
	input    textinput.Model
	target   string // database the input runs against
	result   string
	logs     []string
	rows     *table.Model
}

func newInteractiveModel(ctx context.Context, ws *workspace) *interactiveModel {
	return &interactiveModel{ctx: ctx, ws: ws, state: stateMenu}
}

type entriesMsg struct {
	err     error
	entries []entry
}

type resultMsg struct {
	err    error
	result string
	logs   []string
	rows   *dbmanager.ResultSet
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadEntries
}

func (m *interactiveModel) loadEntries() tea.Msg {
	names, err := m.ws.dbs.Names(m.ctx)
	if err != nil {
		return entriesMsg{err: err}
	}
	entries := make([]entry, 0, len(names)+2)
	for _, name := range names {
		entries = append(entries, entry{kind: entryDatabase, label: name})
	}
	entries = append(entries,
		entry{kind: entryNewDatabase, label: "new database..."},
		entry{kind: entryRunGuest, label: "run guest file..."})
	return entriesMsg{entries: entries}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInput {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateMenu && m.selected > 0 {
				m.selected--
				return m, nil
			}

		case "down", "j":
			if m.state == stateMenu && m.selected < len(m.entries)-1 {
				m.selected++
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateMenu:
				if len(m.entries) > 0 {
					m.prepareInput(m.entries[m.selected])
				}
				return m, textinput.Blink

			case stateInput:
				return m, m.submit(strings.TrimSpace(m.input.Value()))

			case stateShowResult:
				m.reset()
				return m, m.loadEntries
			}

		case "esc":
			if m.state != stateMenu {
				m.reset()
				return m, m.loadEntries
			}
		}

	case entriesMsg:
		m.err = msg.err
		m.entries = msg.entries
		if m.selected >= len(m.entries) {
			m.selected = 0
		}

	case resultMsg:
		m.err = msg.err
		m.result = msg.result
		m.logs = msg.logs
		m.rows = nil
		if msg.rows != nil {
			m.rows = newResultTable(msg.rows)
		}
		m.state = stateShowResult
		return m, nil
	}

	if m.state == stateInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	if m.state == stateShowResult && m.rows != nil {
		var cmd tea.Cmd
		*m.rows, cmd = m.rows.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateMenu
	m.err = nil
	m.result = ""
	m.logs = nil
	m.rows = nil
	m.target = ""
}

func (m *interactiveModel) prepareInput(e entry) {
	ti := textinput.New()
	ti.Width = 60
	switch e.kind {
	case entryDatabase:
		m.target = e.label
		ti.Prompt = e.label + "> "
		ti.Placeholder = "SELECT name FROM sqlite_master"
	case entryNewDatabase:
		ti.Prompt = "name: "
		ti.Placeholder = "notes"
	case entryRunGuest:
		ti.Prompt = "file: "
		ti.Placeholder = "guest.wasm"
	}
	ti.Focus()
	m.input = ti
	m.state = stateInput
}

func (m *interactiveModel) submit(value string) tea.Cmd {
	if value == "" {
		return nil
	}
	switch m.entries[m.selected].kind {
	case entryDatabase:
		db := m.target
		return func() tea.Msg { return m.runStatement(db, value) }
	case entryNewDatabase:
		return func() tea.Msg {
			if err := m.ws.dbs.Open(m.ctx, value); err != nil {
				return resultMsg{err: err}
			}
			return resultMsg{result: "opened " + value}
		}
	default:
		return func() tea.Msg { return m.runGuest(value) }
	}
}

func (m *interactiveModel) runStatement(db, stmt string) tea.Msg {
	if !returnsRows(stmt) {
		n, err := m.ws.dbs.Execute(m.ctx, db, stmt)
		if err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{result: fmt.Sprintf("%d row(s) changed", n)}
	}
	rs, err := m.ws.dbs.Query(m.ctx, db, stmt)
	if err != nil {
		return resultMsg{err: err}
	}
	return resultMsg{result: fmt.Sprintf("%d row(s)", len(rs.Rows)), rows: rs}
}

func (m *interactiveModel) runGuest(path string) tea.Msg {
	payload, err := os.ReadFile(path)
	if err != nil {
		return resultMsg{err: err}
	}
	res := m.ws.host.Run(m.ctx, payload)
	return resultMsg{result: describe(res), logs: res.Logs, err: res.Err}
}

func describe(res *runtime.Result) string {
	if !res.Success {
		return fmt.Sprintf("invocation %s %s", res.ID, res.State)
	}
	return fmt.Sprintf("invocation %s %s: result %d", res.ID, res.State, *res.Value)
}

func newResultTable(rs *dbmanager.ResultSet) *table.Model {
	cols := make([]table.Column, len(rs.Columns))
	for i, c := range rs.Columns {
		width := len(c)
		for _, row := range rs.Rows {
			width = max(width, len(row[i]))
		}
		cols[i] = table.Column{Title: c, Width: min(width, 40)}
	}
	rows := make([]table.Row, len(rs.Rows))
	for i, r := range rs.Rows {
		rows[i] = table.Row(r)
	}
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 15)),
	)
	return &t
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Workspace"))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%d capabilities", len(m.ws.host.Capabilities())))
	b.WriteString("\n\n")

	switch m.state {
	case stateMenu:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\n")
		}
		b.WriteString("Select a database or action:\n\n")
		for i, e := range m.entries {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + e.label))
			} else {
				b.WriteString("  " + entryStyle.Render(e.label))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • q quit"))

	case stateInput:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter run • esc back"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		}
		if m.result != "" {
			b.WriteString(resultStyle.Render(m.result))
			b.WriteString("\n")
		}
		if m.rows != nil {
			b.WriteString("\n")
			b.WriteString(m.rows.View())
			b.WriteString("\n")
		}
		for _, line := range m.logs {
			b.WriteString(logStyle.Render("| " + line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(ctx context.Context, ws *workspace) error {
	p := tea.NewProgram(newInteractiveModel(ctx, ws), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
