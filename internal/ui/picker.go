// Package ui renders terminal output: an interactive picker and tables.
package ui

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the user quits the picker without choosing.
var ErrCancelled = errors.New("selection cancelled")

// Item is one selectable row.
type Item struct {
	Label  string
	Detail string
}

type listItem struct {
	Item
	index int
}

func (i listItem) Title() string       { return i.Label }
func (i listItem) Description() string { return i.Detail }
func (i listItem) FilterValue() string { return i.Label + " " + i.Detail }

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

type pickerModel struct {
	list     list.Model
	chosen   int
	quitting bool
}

func newPickerModel(prompt string, items []Item) pickerModel {
	rows := make([]list.Item, len(items))
	for i, it := range items {
		rows[i] = listItem{Item: it, index: i}
	}

	l := list.New(rows, list.NewDefaultDelegate(), 80, 20)
	l.Title = prompt
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)

	return pickerModel{list: l, chosen: -1}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		// While filtering, keys belong to the filter input.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if it, ok := m.list.SelectedItem().(listItem); ok {
				m.chosen = it.index
			}
			m.quitting = true
			return m, tea.Quit
		case "ctrl+c", "esc", "q":
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

// Select shows items in an interactive list and returns the chosen index.
func Select(prompt string, items []Item) (int, error) {
	return selectWith(prompt, items, os.Stdin, os.Stderr)
}

func selectWith(prompt string, items []Item, in io.Reader, out io.Writer) (int, error) {
	if len(items) == 0 {
		return -1, fmt.Errorf("no items to select from")
	}

	p := tea.NewProgram(newPickerModel(prompt, items), tea.WithInput(in), tea.WithOutput(out), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return -1, fmt.Errorf("running picker: %w", err)
	}

	m, ok := final.(pickerModel)
	if !ok || m.chosen < 0 {
		return -1, ErrCancelled
	}
	return m.chosen, nil
}
