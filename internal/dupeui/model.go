// Package dupeui renders duplicate-set results: an interactive bubbletea
// review screen on a terminal, and a static listing fallback everywhere
// else. The detection engine never depends on this package.
package dupeui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cleanigo/cleanigo/internal/dedupe"
)

// Model is the bubbletea Model for reviewing duplicate sets before
// resolution. Every set starts selected; the user deselects sets to keep.
type Model struct {
	sets     []dedupe.DuplicateSet
	selected []bool
	cursor   int
	offset   int
	width    int
	height   int
	expanded int // -1 = set list, otherwise index of the set shown in detail

	keys keyMap
	help help.Model

	confirmed bool
	quitting  bool
}

// New creates a review model over sets.
func New(sets []dedupe.DuplicateSet) Model {
	selected := make([]bool, len(sets))
	for i := range selected {
		selected[i] = true
	}
	return Model{
		sets:     sets,
		selected: selected,
		width:    80,
		height:   24,
		expanded: -1,
		keys:     newKeyMap(),
		help:     help.New(),
	}
}

// Confirmed reports whether the user confirmed resolution.
func (m Model) Confirmed() bool { return m.confirmed }

// Selected returns the sets left selected for resolution.
func (m Model) Selected() []dedupe.DuplicateSet {
	var out []dedupe.DuplicateSet
	for i, s := range m.sets {
		if m.selected[i] {
			out = append(out, s)
		}
	}
	return out
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.expanded >= 0 {
			switch {
			case key.Matches(msg, m.keys.Quit):
				m.quitting = true
				return m, tea.Quit
			case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Confirm):
				m.expanded = -1
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Back):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.ensureVisible()
			}

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.sets)-1 {
				m.cursor++
				m.ensureVisible()
			}

		case key.Matches(msg, m.keys.Toggle):
			if m.cursor < len(m.selected) {
				m.selected[m.cursor] = !m.selected[m.cursor]
			}

		case key.Matches(msg, m.keys.ToggleAll):
			all := true
			for _, s := range m.selected {
				if !s {
					all = false
					break
				}
			}
			for i := range m.selected {
				m.selected[i] = !all
			}

		case key.Matches(msg, m.keys.Detail):
			if m.cursor < len(m.sets) {
				m.expanded = m.cursor
			}

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll

		case key.Matches(msg, m.keys.Confirm):
			m.confirmed = true
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

// View delegates to view.go renderView.
func (m Model) View() string {
	return m.renderView()
}

func (m *Model) ensureVisible() {
	vh := m.viewportHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+vh {
		m.offset = m.cursor - vh + 1
	}
}

func (m Model) viewportHeight() int {
	h := m.height - 7 // header + footer
	if h < 1 {
		h = 1
	}
	return h
}

// Review runs the interactive review and returns the sets the user chose
// to resolve, plus whether they confirmed.
func Review(sets []dedupe.DuplicateSet) ([]dedupe.DuplicateSet, bool, error) {
	prog := tea.NewProgram(New(sets), tea.WithAltScreen())
	final, err := prog.Run()
	if err != nil {
		return nil, false, err
	}
	m := final.(Model)
	if !m.Confirmed() {
		return nil, false, nil
	}
	return m.Selected(), true, nil
}
