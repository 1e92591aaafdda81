// Package tui is the interactive memory console behind `mnemo browse`.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/mnemo/internal/events"
	"github.com/felixgeelhaar/mnemo/internal/vector"
)

// Source is the memory the console browses.
type Source interface {
	GetAll() []vector.Entry
	Delete(id string)
}

// TUI forwards memory events into a running program.
type TUI struct {
	program *tea.Program
}

func NewTUI(p *tea.Program) *TUI {
	return &TUI{program: p}
}

// Notify is an events.Handler that makes the console reload. Events raised
// from inside the update loop would block a synchronous Send.
func (t *TUI) Notify(e events.Event) {
	go t.program.Send(EventMsg(e))
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	tableStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
)

// EventMsg carries a memory event into the update loop.
type EventMsg events.Event

type Model struct {
	Source   Source
	Table    table.Model
	Status   string
	Quitting bool
	Width    int
	Height   int

	ids []string
}

func NewModel(src Source) Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4"))
	t.SetStyles(styles)

	m := Model{Source: src, Table: t}
	m.reload()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.Quitting = true
			return m, tea.Quit
		case "r":
			m.reload()
			return m, nil
		case "d", "delete":
			m.deleteSelected()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetColumns(columns(msg.Width))
		m.Table.SetHeight(max(msg.Height-8, 3))
		return m, nil

	case EventMsg:
		m.reload()
		m.Status = fmt.Sprintf("%s %s", msg.Type, shortID(msg.EntryID))
		return m, nil
	}

	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}

	header := titleStyle.Render(" mnemo memory console ")
	count := infoStyle.Render(fmt.Sprintf(" %d memories ", len(m.ids)))

	var b strings.Builder
	b.WriteString(header + count + "\n\n")
	if len(m.ids) == 0 {
		b.WriteString("  No memories stored.\n")
	} else {
		b.WriteString(tableStyle.Render(m.Table.View()) + "\n")
	}
	if m.Status != "" {
		b.WriteString(infoStyle.Render(" "+m.Status) + "\n")
	}
	b.WriteString(helpStyle.Render(" ↑/↓ move • d delete • r reload • q quit"))
	return b.String()
}

// SelectedID returns the id of the highlighted memory, or "".
func (m Model) SelectedID() string {
	i := m.Table.Cursor()
	if i < 0 || i >= len(m.ids) {
		return ""
	}
	return m.ids[i]
}

func (m *Model) reload() {
	entries := m.Source.GetAll()
	rows := make([]table.Row, len(entries))
	m.ids = make([]string, len(entries))
	for i, e := range entries {
		m.ids[i] = e.ID
		user := e.UserID
		if user == "" {
			user = "-"
		}
		rows[i] = table.Row{
			shortID(e.ID),
			user,
			e.CreatedAt.Format("2006-01-02 15:04"),
			strings.ReplaceAll(e.Content, "\n", " "),
		}
	}
	m.Table.SetRows(rows)
	m.Table.SetCursor(m.Table.Cursor())
}

func (m *Model) deleteSelected() {
	id := m.SelectedID()
	if id == "" {
		return
	}
	m.Source.Delete(id)
	m.reload()
	m.Status = "deleted " + shortID(id)
}

func columns(width int) []table.Column {
	content := width - 8 - 16 - 18 - 10
	if content < 20 {
		content = 20
	}
	return []table.Column{
		{Title: "ID", Width: 8},
		{Title: "User", Width: 16},
		{Title: "Created", Width: 16},
		{Title: "Content", Width: content},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
