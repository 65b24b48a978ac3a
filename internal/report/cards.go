package report

// cards.go: one markdown note per giver, carrying YAML frontmatter, so each
// participant can be sent only their own assignment.
//
// Layout:
//   <dir>/cards/<giver>.md
//
// Output is byte-identical for the same draw, and existing cards are
// overwritten.

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"secretsanta/internal/draw"
)

// Card is the frontmatter of one giver's note.
type Card struct {
	Giver  string `yaml:"giver"`
	DrawID string `yaml:"draw_id"`
	Small  string `yaml:"small"`
	Large  string `yaml:"large"`
}

// Cards writes cards/<giver>.md under Dir.
type Cards struct {
	Dir string
}

func (c *Cards) Name() string { return "cards" }

func (c *Cards) Report(res *draw.Result) error {
	dir := filepath.Join(c.Dir, "cards")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	for _, row := range res.Giving() {
		card := Card{Giver: row.Name, DrawID: res.ID.String(), Small: row.Small, Large: row.Large}
		data, err := writeNote(card, card.Markdown())
		if err != nil {
			return err
		}
		path := CardPath(c.Dir, row.Name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// CardPath returns where the card for giver is written under dir.
func CardPath(dir, giver string) string {
	return filepath.Join(dir, "cards", sanitizeFilename(giver)+".md")
}

// ReadCard parses a card written by Cards.
func ReadCard(path string) (*Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read card: %w", err)
	}
	fm, _, err := parseNote(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var card Card
	if err := yaml.Unmarshal(fm, &card); err != nil {
		return nil, fmt.Errorf("%s: card: %w", path, err)
	}
	return &card, nil
}

// Markdown returns the note body shown below the frontmatter.
func (c Card) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Secret Santa: %s\n\n", c.Giver)
	fmt.Fprintf(&b, "- **Small gift** for %s\n", c.Small)
	fmt.Fprintf(&b, "- **Large gift** for %s\n", c.Large)
	return b.String()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// sanitizeFilename turns a participant name into a file stem: runs of
// anything but letters, digits, '_' and '-' become a single '-', trimmed.
func sanitizeFilename(name string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(name, "-"), "-")
	if s == "" {
		return "unnamed"
	}
	return s
}

// ---------------------------------------------------------------------------
// Frontmatter
// ---------------------------------------------------------------------------

// writeNote marshals v as YAML frontmatter between --- delimiters and
// appends body.
func writeNote(v any, body string) ([]byte, error) {
	fm, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// parseNote splits a note into frontmatter and body. The note must begin
// with "---\n".
func parseNote(data []byte) (frontmatter []byte, body []byte, err error) {
	const delim = "---\n"
	if !bytes.HasPrefix(data, []byte(delim)) {
		return nil, nil, fmt.Errorf("frontmatter: missing opening --- delimiter")
	}
	rest := data[len(delim):]
	idx := bytes.Index(rest, []byte("\n---"))
	if idx < 0 {
		return nil, nil, fmt.Errorf("frontmatter: missing closing --- delimiter")
	}
	tail := rest[idx+4:]
	tail = bytes.TrimLeft(tail, "\n")
	return rest[:idx], tail, nil
}
