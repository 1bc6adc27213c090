package components

import (
	"errors"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morrisclay/sb3pack/internal/tui"
)

// LoadingModel is a spinner with an optional progress bar.
type LoadingModel struct {
	spinner  spinner.Model
	progress progress.Model
	message  string
	phase    string
	percent  float64
	done     bool
	err      error
}

// LoadingDoneMsg is sent when loading completes.
type LoadingDoneMsg struct {
	Err error
}

// ProgressMsg reports progress of the running operation.
type ProgressMsg struct {
	Phase    string
	Fraction float64
}

// ErrInterrupted is returned when the user quits the spinner.
var ErrInterrupted = errors.New("interrupted")

// NewLoading creates a new loading spinner.
func NewLoading(message string) LoadingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = tui.SpinnerStyle

	p := progress.New(
		progress.WithGradient(string(tui.ColorPrimary), string(tui.ColorWarning)),
		progress.WithWidth(30),
	)
	return LoadingModel{
		spinner:  s,
		progress: p,
		message:  message,
	}
}

// Init implements tea.Model.
func (m LoadingModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m LoadingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.done = true
			m.err = ErrInterrupted
			return m, tea.Quit
		}

	case ProgressMsg:
		m.phase = msg.Phase
		m.percent = msg.Fraction
		return m, nil

	case LoadingDoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m LoadingModel) View() string {
	if m.done {
		return ""
	}
	s := m.spinner.View() + " " + m.message
	if m.phase != "" {
		s += " " + tui.PhaseStyle(m.phase == "done").Render(m.phase) + " " + m.progress.ViewAs(m.percent)
	}
	return s
}

// Error returns any error that occurred.
func (m LoadingModel) Error() error {
	return m.err
}

// RunWithLoading runs a function with a loading spinner.
func RunWithLoading[T any](message string, fn func() (T, error)) (T, error) {
	return RunWithProgress(message, func(func(string, float64)) (T, error) {
		return fn()
	})
}

// RunWithProgress runs fn under a spinner. fn receives a report function that
// updates the phase label and progress bar. If the user quits, the returned
// error is ErrInterrupted; fn keeps running until it observes cancellation
// through its own context.
func RunWithProgress[T any](message string, fn func(report func(phase string, fraction float64)) (T, error)) (T, error) {
	m := NewLoading(message)

	var result T
	var err error

	p := tea.NewProgram(m)
	finished := make(chan struct{})

	report := func(phase string, fraction float64) {
		p.Send(ProgressMsg{Phase: phase, Fraction: fraction})
	}

	// Run the function in a goroutine
	go func() {
		defer close(finished)
		result, err = fn(report)
		p.Send(LoadingDoneMsg{Err: err})
	}()

	final, runErr := p.Run()
	if runErr != nil {
		var zero T
		return zero, runErr
	}
	if lm, ok := final.(LoadingModel); ok && lm.Error() == ErrInterrupted {
		var zero T
		return zero, ErrInterrupted
	}

	<-finished
	return result, err
}
