package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazelvane/beatmigrate/internal/tasks"
)

type progressMsg tasks.ProgressUpdate

type progressClosedMsg struct{}

// MigrateModel renders live progress for a migration running in another
// goroutine, consuming updates until the channel closes.
type MigrateModel struct {
	updates <-chan tasks.ProgressUpdate
	spinner spinner.Model
	current tasks.ProgressUpdate
	done    bool
}

// NewMigrateModel creates a progress monitor over a migration's update channel.
func NewMigrateModel(updates <-chan tasks.ProgressUpdate) MigrateModel {
	s := spinner.New()
	s.Spinner = spinner.Line
	s.Style = styles.title

	return MigrateModel{updates: updates, spinner: s}
}

func (m MigrateModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.nextUpdate())
}

func (m MigrateModel) nextUpdate() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.updates
		if !ok {
			return progressClosedMsg{}
		}
		return progressMsg(update)
	}
}

func (m MigrateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.current = tasks.ProgressUpdate(msg)
		if m.current.Phase == tasks.PhaseDone {
			m.done = true
			return m, tea.Quit
		}
		return m, m.nextUpdate()

	case progressClosedMsg:
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m MigrateModel) View() string {
	if m.done {
		return styles.ok.Render("Migration finished") + "\n"
	}

	line := fmt.Sprintf("%s %s", m.spinner.View(), phaseLabel(m.current.Phase))
	if m.current.Total > 0 {
		line = fmt.Sprintf("%s (%d/%d)", line, m.current.Current, m.current.Total)
	}
	if m.current.TrackName != "" {
		line = fmt.Sprintf("%s %s", line, styles.help.Render(m.current.TrackName))
	}
	return line + "\n"
}

func phaseLabel(phase tasks.Phase) string {
	switch phase {
	case tasks.PhaseSearching:
		return "Matching tracks"
	case tasks.PhaseCreating:
		return "Creating playlist"
	case tasks.PhaseAdding:
		return "Adding tracks"
	case tasks.PhaseMerging:
		return "Merging playlists"
	default:
		return "Working"
	}
}
