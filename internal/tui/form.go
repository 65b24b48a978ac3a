package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"secretsanta/internal/loader"
)

// PromptParticipant asks for one roster row. known lists the names already
// in the roster and is offered as suggestions for the reference fields.
func PromptParticipant(row *loader.Row, known []string) error {
	err := participantForm(row, known).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrCancelled
	}
	if err != nil {
		return fmt.Errorf("participant form: %w", err)
	}
	row.Name = strings.TrimSpace(row.Name)
	row.Spouse = strings.TrimSpace(row.Spouse)
	row.PreviousSmall = strings.TrimSpace(row.PreviousSmall)
	row.PreviousLarge = strings.TrimSpace(row.PreviousLarge)
	return nil
}

func participantForm(row *loader.Row, known []string) *huh.Form {
	reference := func(title string, v *string) *huh.Input {
		return huh.NewInput().
			Title(title).
			Description("Leave blank if none").
			Suggestions(known).
			Value(v).
			Validate(knownName(known))
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&row.Name).
				Validate(newName(known)),
			reference("Spouse", &row.Spouse),
			reference("Gave a small gift to last time", &row.PreviousSmall),
			reference("Gave a large gift to last time", &row.PreviousLarge),
		),
	)
}

// newName rejects blank names and names already in the roster.
func newName(known []string) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return errors.New("name is required")
		}
		for _, k := range known {
			if k == s {
				return fmt.Errorf("%s is already in the roster", s)
			}
		}
		return nil
	}
}

// knownName accepts a blank value or a name already in the roster.
func knownName(known []string) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		for _, k := range known {
			if k == s {
				return nil
			}
		}
		return fmt.Errorf("%s is not in the roster", s)
	}
}
