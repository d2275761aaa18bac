package dupeui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cleanigo/cleanigo/internal/core"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	keeperStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dupStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cursorStyle = lipgloss.NewStyle().Bold(true)
)

func (m Model) renderView() string {
	if m.quitting {
		return ""
	}
	if m.expanded >= 0 {
		return m.renderDetail()
	}
	return m.renderList()
}

func (m Model) renderList() string {
	var b strings.Builder

	var wasted int64
	nSel := 0
	for i, s := range m.sets {
		if m.selected[i] {
			wasted += s.WastedBytes()
			nSel++
		}
	}
	b.WriteString(titleStyle.Render("Duplicate sets") + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d sets, %d selected, %s reclaimable",
		len(m.sets), nSel, core.FormatSize(wasted))) + "\n\n")

	vh := m.viewportHeight()
	end := m.offset + vh
	if end > len(m.sets) {
		end = len(m.sets)
	}
	for i := m.offset; i < end; i++ {
		s := m.sets[i]
		mark := "[ ]"
		if m.selected[i] {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %2d files x %-10s %-10s %s",
			mark, len(s.Files), core.FormatSize(s.Size),
			core.FormatSize(s.WastedBytes()), s.KeeperRecord().Path)
		if i == m.cursor {
			line = cursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m Model) renderDetail() string {
	s := m.sets[m.expanded]
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Set %d/%d", m.expanded+1, len(m.sets))) + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s each · digest %.16s…", core.FormatSize(s.Size), s.Digest)) + "\n\n")

	for i, f := range s.Files {
		if i == s.Keeper {
			b.WriteString(keeperStyle.Render("  keep  "+f.Path) + "\n")
		} else {
			b.WriteString(dupStyle.Render("  dup   "+f.Path) + "\n")
		}
	}

	b.WriteString("\n" + dimStyle.Render("esc back  ·  q quit"))
	return b.String()
}
