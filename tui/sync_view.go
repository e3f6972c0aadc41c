// ABOUTME: TUI view for provider sync state
// ABOUTME: Displays status, failures and last run stats, and resumes paused providers
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/kith/models"
)

var (
	syncServiceStyle = lipgloss.NewStyle().
				Bold(true).
				Width(12)

	syncIdleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	syncSyncingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)
)

// ResumedMsg is sent when a provider has been returned to idle.
type ResumedMsg struct {
	Provider string
	Error    error
}

func (m Model) renderSyncView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("SYNC STATUS"))
	s.WriteString("\n\n")

	if len(m.syncStates) == 0 {
		s.WriteString(messageStyle.Render("No sync data found. Run kith sync run first."))
		s.WriteString("\n\n")
		s.WriteString(helpStyle.Render("Esc: Back • q: Quit"))
		return s.String()
	}

	s.WriteString(headerStyle.Render("Providers"))
	s.WriteString("\n\n")

	for i, st := range m.syncStates {
		var row strings.Builder
		if i == m.selectedService {
			row.WriteString("▶ ")
			row.WriteString(selectedStyle.Render(syncServiceStyle.Render(st.Provider)))
		} else {
			row.WriteString("  ")
			row.WriteString(syncServiceStyle.Render(st.Provider))
		}

		switch st.Status {
		case models.SyncStatusSyncing:
			row.WriteString(syncSyncingStyle.Render("  ⟳ Syncing..."))
		case models.SyncStatusFailed, models.SyncStatusPaused:
			row.WriteString(errorStyle.Render("  ✗ " + st.Status))
			if st.LastErrorCode != "" {
				row.WriteString(errorStyle.Render(": " + st.LastErrorCode))
			}
			if st.FailureCount > 0 {
				row.WriteString(messageStyle.Render(fmt.Sprintf(" • %d failures", st.FailureCount)))
			}
			if st.NextEligibleAt != nil && st.Status == models.SyncStatusFailed {
				row.WriteString(messageStyle.Render(" • retry after " + st.NextEligibleAt.Format("15:04")))
			}
		default:
			row.WriteString(syncIdleStyle.Render("  ✓ Idle"))
			if st.LastFinishedAt != nil {
				row.WriteString(messageStyle.Render(" • Last synced " + formatTimeSince(*st.LastFinishedAt)))
			}
		}
		s.WriteString(row.String())
		s.WriteString("\n")

		ls := st.LastStats
		s.WriteString(messageStyle.Render(fmt.Sprintf("    fetched %d • created %d • updated %d • conflicts %d • pushed %d",
			ls.Fetched, ls.Created, ls.Updated, ls.Conflicts, ls.Pushed)))
		s.WriteString("\n")
	}

	s.WriteString(m.renderMessages())
	s.WriteString(m.renderSyncHelp())
	return s.String()
}

func (m Model) renderSyncHelp() string {
	help := []string{
		"↑/↓: Select provider",
		"u: Resume selected",
		"g: Refresh status",
		"Esc: Back",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m *Model) loadSyncStates() {
	states, err := m.store.ListSyncStates(m.ctx, m.scope)
	if err != nil {
		m.err = err
		m.syncStates = nil
		return
	}
	m.syncStates = states
	if m.selectedService >= len(states) {
		m.selectedService = 0
	}
}

func (m Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selectedService > 0 {
			m.selectedService--
		}
	case "down", "j":
		if m.selectedService < len(m.syncStates)-1 {
			m.selectedService++
		}
	case "u":
		if m.selectedService < len(m.syncStates) {
			return m, m.resumeProvider(m.syncStates[m.selectedService].Provider)
		}
	case "g":
		m.loadSyncStates()
	case "esc":
		m.loadConflicts()
		m.viewMode = ViewConflicts
	}
	return m, nil
}

func (m Model) resumeProvider(provider string) tea.Cmd {
	ctx, store, scope := m.ctx, m.store, m.scope
	return func() tea.Msg {
		return ResumedMsg{Provider: provider, Error: store.Resume(ctx, scope, provider)}
	}
}

func (m Model) handleResumed(msg ResumedMsg) Model {
	if msg.Error != nil {
		m.addMessage(fmt.Sprintf("✗ resume %s failed: %s", msg.Provider, models.ErrorCode(msg.Error)))
	} else {
		m.addMessage(fmt.Sprintf("✓ %s resumed", msg.Provider))
	}
	m.loadSyncStates()
	return m
}

// formatTimeSince renders the largest whole unit elapsed since t, e.g. "3 hours ago".
func formatTimeSince(t time.Time) string {
	d := time.Since(t)
	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
	}
	for _, u := range units {
		if n := int(d / u.size); n >= 1 {
			if n == 1 {
				return "1 " + u.name + " ago"
			}
			return fmt.Sprintf("%d %ss ago", n, u.name)
		}
	}
	return "just now"
}
