package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var pickerTitleStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)

// sessionItem adapts a session key to bubbles/list's list.Item interface.
type sessionItem string

func (s sessionItem) Title() string       { return string(s) }
func (s sessionItem) Description() string { return "" }
func (s sessionItem) FilterValue() string { return string(s) }

type pickerModel struct {
	list    list.Model
	chosen  string
	aborted bool
}

func newPickerModel(keys []string) pickerModel {
	items := make([]list.Item, len(keys))
	for i, k := range keys {
		items[i] = sessionItem(k)
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select a session"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	return pickerModel{list: l}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		case "enter":
			if it, ok := m.list.SelectedItem().(sessionItem); ok {
				m.chosen = string(it)
			}
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	return pickerTitleStyle.Render("") + m.list.View()
}

// pickSession runs a bubbles/list session picker over keys and returns the
// chosen session key, or "" if the user cancelled.
func pickSession(keys []string) (string, error) {
	p := tea.NewProgram(newPickerModel(keys))
	finalModel, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("run session picker: %w", err)
	}
	m := finalModel.(pickerModel)
	if m.aborted {
		return "", nil
	}
	return m.chosen, nil
}
