// Package tui shows a spinner and running attempt counts while a draw is in
// progress.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"golang.org/x/time/rate"

	"secretsanta/internal/draw"
	"secretsanta/internal/roster"
)

// ErrCancelled is returned when the user quits before the draw finishes.
var ErrCancelled = errors.New("draw cancelled")

// refreshInterval bounds how often progress reaches the view. Attempts on
// small rosters finish in microseconds.
const refreshInterval = 50 * time.Millisecond

// Progress summarizes the attempts seen so far.
type Progress struct {
	Attempts    int
	SmallStalls int
	LargeStalls int
	Best        int // most gifts placed by any failed attempt
}

// Add folds one attempt into p. Workers can finish out of order, so
// Attempts tracks the highest attempt number.
func (p *Progress) Add(o draw.Outcome) {
	p.Attempts = max(p.Attempts, o.Number)
	var stall *draw.StallError
	if !errors.As(o.Err, &stall) {
		return
	}
	switch stall.Kind {
	case roster.Small:
		p.SmallStalls++
	case roster.Large:
		p.LargeStalls++
	}
	p.Best = max(p.Best, o.Small+o.Large)
}

// ProgressMsg carries a snapshot of Progress to the view.
type ProgressMsg Progress

// DoneMsg reports the end of the draw.
type DoneMsg struct {
	Result *draw.Result
	Err    error
}

// Model is the progress view.
type Model struct {
	spinner spinner.Model

	participants int
	progress     Progress

	result    *draw.Result
	err       error
	done      bool
	cancelled bool
}

// NewModel returns a progress view for a roster of the given size.
func NewModel(participants int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{spinner: s, participants: participants}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	case ProgressMsg:
		m.progress = Progress(msg)
		return m, nil
	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.done || m.cancelled {
		return ""
	}
	p := m.progress
	var b strings.Builder
	fmt.Fprintf(&b, "%s Drawing names for %d people: attempt %d", m.spinner.View(), m.participants, p.Attempts)
	if p.Attempts > 0 {
		fmt.Fprintf(&b, " (stalled on small %d, large %d; best %d/%d gifts)",
			p.SmallStalls, p.LargeStalls, p.Best, 2*m.participants)
	}
	b.WriteString("\n")
	return b.String()
}

// Progress returns the last snapshot the view received.
func (m Model) Progress() Progress { return m.progress }

// IsTerminal reports whether w is a terminal the view can draw on.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SolveFunc runs a draw, reporting each attempt to onAttempt.
type SolveFunc func(ctx context.Context, onAttempt func(draw.Outcome)) (*draw.Result, error)

// Run shows the progress view on out while solve runs. Quitting the view
// cancels the draw.
func Run(ctx context.Context, participants int, out io.Writer, solve SolveFunc) (*draw.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(participants), tea.WithOutput(out), tea.WithContext(ctx))
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		var progress Progress
		limit := rate.NewLimiter(rate.Every(refreshInterval), 1)
		res, err := solve(ctx, func(o draw.Outcome) {
			progress.Add(o)
			if limit.Allow() {
				p.Send(ProgressMsg(progress))
			}
		})
		p.Send(ProgressMsg(progress))
		p.Send(DoneMsg{Result: res, Err: err})
	}()

	final, runErr := p.Run()
	cancel()
	<-finished

	m, ok := final.(Model)
	switch {
	case ok && m.done:
		return m.result, m.err
	case ok && m.cancelled:
		return nil, ErrCancelled
	case runErr != nil:
		return nil, fmt.Errorf("progress view: %w", runErr)
	}
	return nil, ErrCancelled
}
