package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chat_timelines/pkg/model"
)

// SessionPickerModel is the disambiguation modal for nodes shared by
// multiple chat sessions: the user picks which session to open.
type SessionPickerModel struct {
	node          model.Node
	selectedIndex int
	width         int
	height        int
}

// NewSessionPickerModel creates a picker over the node's sessions.
func NewSessionPickerModel(node model.Node) SessionPickerModel {
	return SessionPickerModel{node: node}
}

// SetSize updates the picker dimensions.
func (m *SessionPickerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// MoveUp moves selection up.
func (m *SessionPickerModel) MoveUp() {
	if m.selectedIndex > 0 {
		m.selectedIndex--
	}
}

// MoveDown moves selection down.
func (m *SessionPickerModel) MoveDown() {
	if m.selectedIndex < len(m.node.ChatSessions)-1 {
		m.selectedIndex++
	}
}

// SelectedSession returns the highlighted session name.
func (m *SessionPickerModel) SelectedSession() string {
	if m.selectedIndex >= 0 && m.selectedIndex < len(m.node.ChatSessions) {
		return m.node.ChatSessions[m.selectedIndex]
	}
	return ""
}

// Node returns the node being disambiguated.
func (m *SessionPickerModel) Node() model.Node {
	return m.node
}

// View renders the picker overlay.
func (m *SessionPickerModel) View() string {
	if m.width == 0 {
		m.width = 60
	}
	if m.height == 0 {
		m.height = 20
	}

	boxWidth := 40
	if m.width < 50 {
		boxWidth = m.width - 10
	}
	if boxWidth < 25 {
		boxWidth = 25
	}

	var lines []string
	lines = append(lines, TitleStyle.Render("Open Session"))
	lines = append(lines, DimStyle.Render(fmt.Sprintf("message %d appears in %d sessions", m.node.Depth, len(m.node.ChatSessions))))
	lines = append(lines, "")

	for i, session := range m.node.ChatSessions {
		prefix := "  "
		itemStyle := lipgloss.NewStyle().Foreground(ColorText)
		if i == m.selectedIndex {
			prefix = "> "
			itemStyle = itemStyle.Foreground(ColorPrimary).Bold(true)
		}
		lines = append(lines, itemStyle.Render(prefix+session))
	}

	lines = append(lines, "")
	lines = append(lines, DimStyle.Italic(true).Render("j/k: navigate | enter: open | esc: cancel"))

	box := FocusedPanelStyle.
		Padding(1, 2).
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
