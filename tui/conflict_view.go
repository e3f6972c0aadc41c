// ABOUTME: TUI view listing pending sync conflicts with one-key resolution
// ABOUTME: keep_local, keep_remote and create_new resolve directly; merge opens a text input
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/sync"
)

// ResolvedMsg is sent when a conflict resolution completes.
type ResolvedMsg struct {
	ConflictID uuid.UUID
	Strategy   string
	Result     *sync.ResolutionResult
	Error      error
}

func (m Model) renderConflictView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("SYNC CONFLICTS"))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		s.WriteString("\n\n")
	}

	if len(m.conflicts) == 0 {
		s.WriteString(messageStyle.Render("No pending conflicts."))
		s.WriteString("\n")
	} else {
		s.WriteString(headerStyle.Render(fmt.Sprintf("Pending (%d)", len(m.conflicts))))
		s.WriteString("\n\n")
		for i, c := range m.conflicts {
			line := fmt.Sprintf("%-20s %-14s %s", truncate(m.personName(c.PersonID), 20), c.Field, c.Provider)
			if i == m.selected {
				s.WriteString("▶ " + selectedStyle.Render(line))
			} else {
				s.WriteString("  " + line)
			}
			s.WriteString("\n")
		}
		s.WriteString("\n")
		s.WriteString(m.renderConflictDetail(m.conflicts[m.selected]))
	}

	s.WriteString(m.renderMessages())
	s.WriteString(m.renderConflictHelp())
	return s.String()
}

func (m Model) renderConflictDetail(c models.SyncConflict) string {
	var s strings.Builder
	s.WriteString(m.renderField("Person", m.personName(c.PersonID)))
	s.WriteString(m.renderField("Field", c.Field))
	s.WriteString(m.renderField("Local", c.LocalValue))
	s.WriteString(m.renderField("Remote", c.RemoteValue))
	s.WriteString(m.renderField("Last synced", c.BaseValue))
	s.WriteString(m.renderField("Raised", c.CreatedAt.Format("2006-01-02 15:04")))
	return s.String()
}

func (m Model) renderField(label, value string) string {
	if value == "" {
		value = "-"
	}
	return fieldLabelStyle.Render(label+":") + " " + fieldValueStyle.Render(value) + "\n"
}

func (m Model) renderMessages() string {
	if len(m.messages) == 0 {
		return ""
	}
	var s strings.Builder
	s.WriteString("\n")
	start := 0
	if len(m.messages) > 5 {
		start = len(m.messages) - 5
	}
	for _, msg := range m.messages[start:] {
		s.WriteString(messageStyle.Render("  " + msg))
		s.WriteString("\n")
	}
	return s.String()
}

func (m Model) renderConflictHelp() string {
	help := []string{
		"↑/↓: Select",
		"l: Keep local",
		"r: Keep remote",
		"m: Merge",
		"n: Create new",
		"g: Refresh",
		"s: Sync status",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) renderMergeView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("MERGE VALUE"))
	s.WriteString("\n\n")
	if c, ok := m.current(); ok {
		s.WriteString(m.renderConflictDetail(c))
		s.WriteString("\n")
	}
	s.WriteString("> " + m.mergeInput.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("Enter: Save • Esc: Cancel"))
	return s.String()
}

func (m Model) handleConflictKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.conflicts)-1 {
			m.selected++
		}
	case "l":
		return m, m.resolveSelected(models.ResolveKeepLocal, "")
	case "r":
		return m, m.resolveSelected(models.ResolveKeepRemote, "")
	case "n":
		return m, m.resolveSelected(models.ResolveCreateNew, "")
	case "m":
		c, ok := m.current()
		if !ok {
			return m, nil
		}
		m.mergeInput.SetValue(c.LocalValue)
		m.mergeInput.CursorEnd()
		m.mergeInput.Focus()
		m.viewMode = ViewMerge
	case "g":
		m.loadConflicts()
	case "s":
		m.loadSyncStates()
		m.viewMode = ViewSync
	}
	return m, nil
}

func (m Model) handleMergeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mergeInput.Blur()
		m.viewMode = ViewConflicts
		return m, nil
	case "enter":
		value := m.mergeInput.Value()
		m.mergeInput.Blur()
		m.viewMode = ViewConflicts
		return m, m.resolveSelected(models.ResolveMerge, value)
	}

	var cmd tea.Cmd
	m.mergeInput, cmd = m.mergeInput.Update(msg)
	return m, cmd
}

// resolveSelected resolves the highlighted conflict off the update loop.
func (m Model) resolveSelected(strategy, value string) tea.Cmd {
	c, ok := m.current()
	if !ok {
		return nil
	}
	ctx, resolver, scope := m.ctx, m.resolver, m.scope
	return func() tea.Msg {
		res, err := resolver.Resolve(ctx, scope, c.ID, sync.Decision{Strategy: strategy, Value: value})
		return ResolvedMsg{ConflictID: c.ID, Strategy: strategy, Result: res, Error: err}
	}
}

func (m Model) handleResolved(msg ResolvedMsg) Model {
	if msg.Error != nil {
		m.addMessage(fmt.Sprintf("✗ %s failed: %s", msg.Strategy, models.ErrorCode(msg.Error)))
		return m
	}
	note := fmt.Sprintf("✓ %s applied", msg.Strategy)
	if msg.Result != nil && msg.Result.NewPerson != nil {
		note += " • split off " + msg.Result.NewPerson.Name
	}
	m.addMessage(note)
	m.loadConflicts()
	return m
}

func (m Model) current() (models.SyncConflict, bool) {
	if m.selected < 0 || m.selected >= len(m.conflicts) {
		return models.SyncConflict{}, false
	}
	return m.conflicts[m.selected], true
}

func (m Model) personName(id uuid.UUID) string {
	if name, ok := m.names[id]; ok {
		return name
	}
	return id.String()[:8]
}

func (m *Model) loadConflicts() {
	conflicts, err := m.store.ListConflicts(m.ctx, m.scope, models.ConflictPending, maxConflicts)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.conflicts = conflicts

	ids := make([]uuid.UUID, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.PersonID)
	}
	people, err := m.store.GetPersons(m.ctx, m.scope, ids)
	if err != nil {
		m.err = err
		return
	}
	m.names = make(map[uuid.UUID]string, len(people))
	for id, p := range people {
		m.names[id] = p.Name
	}

	if m.selected >= len(m.conflicts) {
		m.selected = len(m.conflicts) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
