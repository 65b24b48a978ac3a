package report

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"secretsanta/internal/draw"
)

// Console prints the giving and receiving tables. Names are padded to the
// longest participant name.
type Console struct {
	Out io.Writer
}

func (c *Console) Name() string { return "console" }

func (c *Console) Report(res *draw.Result) error {
	w := c.out()
	styles := newStyles(w)

	giving := res.Giving()
	receiving := res.Receiving()
	width := 0
	for _, row := range giving {
		width = max(width, len(row.Name))
	}

	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	printf("%s\n", styles.ok.Render(fmt.Sprintf("Successfully assigned gifts (attempt %d)", res.Attempts)))
	printf("\n%s\n", styles.heading.Render("(Name - Giving Small Gift - Giving Large Gift)"))
	for _, row := range giving {
		printf("    %-*s - %s - %s\n", width, row.Name, row.Small, row.Large)
	}
	printf("\n%s\n", styles.heading.Render("(Name - Receiving Small Gift - Receiving Large Gift)"))
	for _, row := range receiving {
		printf("    %-*s - %s - %s\n", width, row.Name, row.SmallFrom, row.LargeFrom)
	}
	return err
}

func (c *Console) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Attempt prints one line per finished attempt: the stall counts for a
// failed attempt, or nothing for a successful one. It has the shape of
// draw.Solver.OnAttempt once bound to a writer.
func Attempt(w io.Writer, o draw.Outcome) {
	styles := newStyles(w)
	var stall *draw.StallError
	switch {
	case o.OK():
		return
	case errors.As(o.Err, &stall):
		fmt.Fprintf(w, "Attempt %d: %s\n", o.Number, styles.warn.Render(stall.Error()))
	default:
		fmt.Fprintf(w, "Attempt %d: %s\n", o.Number, styles.fail.Render("ERROR: "+o.Err.Error()))
	}
}

type styles struct {
	ok, heading, warn, fail lipgloss.Style
}

// newStyles binds styles to w so colors only appear on terminals.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		ok:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		heading: r.NewStyle().Faint(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		fail:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}
