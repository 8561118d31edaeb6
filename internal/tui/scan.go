// Package tui renders the interactive scan progress bar shown while a
// dataset is being read.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ProgressMsg reports scan progress: done of total units parsed.
type ProgressMsg struct {
	Done  int
	Total int
}

// DoneMsg ends the scan display.
type DoneMsg struct {
	Err error
}

var labelStyle = lipgloss.NewStyle().Bold(true)

// Model is the bubbletea model for a dataset scan.
type Model struct {
	label    string
	bar      progress.Model
	done     int
	total    int
	err      error
	finished bool
}

// New creates a scan model with the given label, typically the dataset
// name.
func New(label string) Model {
	return Model{
		label: label,
		bar:   progress.New(progress.WithDefaultGradient()),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles progress and termination messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.done, m.total = msg.Done, msg.Total
		if msg.Total > 0 {
			return m, m.bar.SetPercent(float64(msg.Done) / float64(msg.Total))
		}
		return m, nil

	case DoneMsg:
		m.err = msg.Err
		m.finished = true
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.finished = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 20
		return m, nil

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

// View renders the progress line.
func (m Model) View() string {
	if m.finished {
		return ""
	}
	return fmt.Sprintf("%s %s %d/%d\n",
		labelStyle.Render("scanning "+m.label), m.bar.View(), m.done, m.total)
}

// Err returns the error the scan finished with, if any.
func (m Model) Err() error {
	return m.err
}

// RunScan drives a scan under the progress display. The scan function
// receives a progress callback safe to call from worker goroutines; its
// error is returned after the display shuts down.
func RunScan(label string, scan func(onProgress func(done, total int)) error) error {
	p := tea.NewProgram(New(label))

	errCh := make(chan error, 1)
	go func() {
		err := scan(func(done, total int) {
			p.Send(ProgressMsg{Done: done, Total: total})
		})
		p.Send(DoneMsg{Err: err})
		errCh <- err
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running scan display: %w", err)
	}
	return <-errCh
}
