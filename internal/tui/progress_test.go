package tui

import (
	"bytes"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secretsanta/internal/draw"
	"secretsanta/internal/roster"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok, "Update returned %T", next)
	return nm, cmd
}

func stall(n int, k roster.GiftKind, small, large int) draw.Outcome {
	return draw.Outcome{
		Number: n,
		Small:  small,
		Large:  large,
		Err:    &draw.StallError{Kind: k, Small: small, Large: large, Size: 4},
	}
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

func TestProgressCountsStalls(t *testing.T) {
	var p Progress
	p.Add(stall(1, roster.Small, 3, 0))
	p.Add(stall(2, roster.Large, 4, 2))
	p.Add(stall(3, roster.Small, 1, 0))
	p.Add(draw.Outcome{Number: 4, Small: 4, Large: 4})

	assert.Equal(t, Progress{Attempts: 4, SmallStalls: 2, LargeStalls: 1, Best: 6}, p)
}

func TestProgressAttemptsOutOfOrder(t *testing.T) {
	// Parallel workers can report attempts out of order.
	var p Progress
	p.Add(draw.Outcome{Number: 5})
	p.Add(draw.Outcome{Number: 2})
	assert.Equal(t, 5, p.Attempts)
}

func TestProgressIgnoresOtherErrors(t *testing.T) {
	var p Progress
	p.Add(draw.Outcome{Number: 1, Err: &draw.VerificationError{Rule: draw.RuleSelf}})
	assert.Equal(t, Progress{Attempts: 1}, p)
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

func TestModelShowsProgress(t *testing.T) {
	m := NewModel(4)
	assert.Contains(t, m.View(), "attempt 0")
	assert.NotContains(t, m.View(), "stalled")

	m, cmd := update(t, m, ProgressMsg{Attempts: 3, SmallStalls: 2, LargeStalls: 1, Best: 6})
	assert.Nil(t, cmd)
	assert.Equal(t, 3, m.Progress().Attempts)

	view := m.View()
	assert.Contains(t, view, "Drawing names for 4 people")
	assert.Contains(t, view, "attempt 3")
	assert.Contains(t, view, "stalled on small 2, large 1")
	assert.Contains(t, view, "best 6/8 gifts")
}

func TestModelDoneQuits(t *testing.T) {
	m := NewModel(4)
	res := &draw.Result{Attempts: 7}
	m, cmd := update(t, m, DoneMsg{Result: res})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.done)
	assert.Same(t, res, m.result)
	assert.Empty(t, m.View())
}

func TestModelDoneWithError(t *testing.T) {
	boom := errors.New("boom")
	m, _ := update(t, NewModel(2), DoneMsg{Err: boom})
	assert.ErrorIs(t, m.err, boom)
}

func TestModelCtrlCCancels(t *testing.T) {
	m, cmd := update(t, NewModel(4), tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.cancelled)
	assert.Empty(t, m.View())
}

func TestModelIgnoresOtherKeys(t *testing.T) {
	m, cmd := update(t, NewModel(4), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd)
	assert.False(t, m.cancelled)
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
