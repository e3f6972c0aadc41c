// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Full-screen review of pending sync conflicts and provider sync state
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/sync"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewConflicts ViewMode = iota
	ViewMerge
	ViewSync
)

// maxConflicts bounds one screen's worth of pending conflicts.
const maxConflicts = 500

// Model is the main bubbletea model
type Model struct {
	ctx      context.Context
	store    *db.Store
	resolver *sync.ConflictService
	scope    models.Scope
	viewMode ViewMode

	// Conflict view state
	conflicts []models.SyncConflict
	names     map[uuid.UUID]string
	selected  int

	// Merge view state
	mergeInput textinput.Model

	// Sync view state
	syncStates      []models.SyncState
	selectedService int

	messages []string

	// UI state
	width  int
	height int
	err    error
}

// NewModel creates a new TUI model and loads the pending conflicts.
func NewModel(ctx context.Context, store *db.Store, resolver *sync.ConflictService, scope models.Scope) Model {
	input := textinput.New()
	input.Placeholder = "merged value"
	input.CharLimit = 256
	input.Width = 50

	m := Model{
		ctx:        ctx,
		store:      store,
		resolver:   resolver,
		scope:      scope,
		viewMode:   ViewConflicts,
		mergeInput: input,
		width:      80,
		height:     24,
	}
	m.loadConflicts()
	return m
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, store *db.Store, resolver *sync.ConflictService, scope models.Scope) error {
	p := tea.NewProgram(NewModel(ctx, store, resolver, scope), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case ResolvedMsg:
		return m.handleResolved(msg), nil
	case ResumedMsg:
		return m.handleResumed(msg), nil
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewConflicts:
		return m.renderConflictView()
	case ViewMerge:
		return m.renderMergeView()
	case ViewSync:
		return m.renderSyncView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	// the merge view owns the keyboard so q can be typed
	if m.viewMode != ViewMerge && msg.String() == "q" {
		return m, tea.Quit
	}

	switch m.viewMode {
	case ViewConflicts:
		return m.handleConflictKeys(msg)
	case ViewMerge:
		return m.handleMergeKeys(msg)
	case ViewSync:
		return m.handleSyncKeys(msg)
	}

	return m, nil
}

func (m *Model) addMessage(msg string) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > 20 {
		m.messages = m.messages[len(m.messages)-20:]
	}
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	fieldLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Width(14)

	fieldValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Bold(true)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)
)
