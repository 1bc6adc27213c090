package components

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/morrisclay/sb3pack/internal/tui"
)

// TableModel is an interactive, read-only table.
type TableModel struct {
	table    table.Model
	keys     tui.KeyMap
	help     help.Model
	title    string
	footer   string
	done     bool
	selected table.Row
}

// TableColumn defines a column in the table.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a new interactive table.
func NewTable(title string, columns []TableColumn, rows []table.Row) TableModel {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 15)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(tui.ColorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(tui.ColorPrimary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(tui.ColorPrimary).
		Bold(true)
	t.SetStyles(s)

	h := help.New()
	h.Styles.ShortKey = tui.MutedStyle
	h.Styles.ShortDesc = tui.MutedStyle

	return TableModel{
		table: t,
		keys:  tui.DefaultKeyMap(),
		help:  h,
		title: title,
	}
}

// WithFooter sets a line rendered under the table.
func (m TableModel) WithFooter(footer string) TableModel {
	m.footer = footer
	return m
}

// Init implements tea.Model.
func (m TableModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m TableModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width - 4)
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil

		case key.Matches(msg, m.keys.Enter):
			m.selected = m.table.SelectedRow()
			m.done = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Quit):
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m TableModel) View() string {
	if m.done {
		return ""
	}

	var s string
	if m.title != "" {
		s += tui.TitleStyle.Render(m.title) + "\n"
	}
	s += m.table.View() + "\n"
	if m.footer != "" {
		s += tui.MutedStyle.Render(m.footer) + "\n"
	}
	s += tui.HelpStyle.Render(m.help.View(m.keys))
	return s
}

// Selected returns the row chosen with enter, if any.
func (m TableModel) Selected() table.Row {
	return m.selected
}

// RunTable shows the table inline and returns the row chosen with enter.
// It returns nil when the table was closed without a choice.
func RunTable(title, footer string, columns []TableColumn, rows []table.Row) (table.Row, error) {
	m := NewTable(title, columns, rows).WithFooter(footer)
	finalModel, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	if tm, ok := finalModel.(TableModel); ok {
		return tm.Selected(), nil
	}
	return nil, nil
}
