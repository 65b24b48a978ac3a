// Package loader turns a roster file into a roster.Roster.
//
// Two formats are read. CSV files carry the header
//
//	name,spouse_name,previous_small_giftee,previous_large_giftee
//
// and one participant per row. YAML files (.yaml, .yml) carry a list of
// {name, spouse, previous: {small, large}} entries. Every name reference
// must resolve within the same file.
package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"secretsanta/internal/roster"
)

// Header is the required first line of a CSV roster.
var Header = []string{"name", "spouse_name", "previous_small_giftee", "previous_large_giftee"}

var (
	ErrHeaderChanged     = fmt.Errorf("loader: header changed, expected %q", strings.Join(Header, ","))
	ErrEmptyRoster       = errors.New("loader: no names found")
	ErrTemplateCreated   = errors.New("loader: roster file created, enter names and run again")
	ErrMalformedRelation = errors.New("loader: malformed relation")
)

// RelationError reports a spouse or history reference that cannot be used.
type RelationError struct {
	Line   int    // 1-based source line, 0 when unknown
	Name   string // participant whose row holds the reference
	Field  string // column holding the reference
	Ref    string
	Reason string
}

func (e *RelationError) Error() string {
	loc := e.Name
	if e.Line > 0 {
		loc = fmt.Sprintf("line %d (%s)", e.Line, e.Name)
	}
	return fmt.Sprintf("loader: %s: %s %q %s", loc, e.Field, e.Ref, e.Reason)
}

func (e *RelationError) Unwrap() error { return ErrMalformedRelation }

// Row is one participant as read from a roster file, before names are
// resolved.
type Row struct {
	Line          int    `csv:"-"`
	Name          string `csv:"name" validate:"required,max=128"`
	Spouse        string `csv:"spouse_name" validate:"omitempty,max=128,nefield=Name"`
	PreviousSmall string `csv:"previous_small_giftee" validate:"omitempty,max=128,nefield=Name"`
	PreviousLarge string `csv:"previous_large_giftee" validate:"omitempty,max=128,nefield=Name"`
}

// rowValidate reports field errors by column name.
var rowValidate *validator.Validate

func init() {
	rowValidate = validator.New(validator.WithRequiredStructEnabled())
	rowValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("csv")
	})
}

// Validate checks a single row in isolation. References to other rows are
// checked by Build.
func (r Row) Validate() error {
	err := rowValidate.Struct(r)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "nefield":
		return &RelationError{Line: r.Line, Name: r.Name, Field: fe.Field(), Ref: fmt.Sprint(fe.Value()), Reason: "refers to the participant themself"}
	case "required":
		return fmt.Errorf("loader: line %d: %s is required", r.Line, fe.Field())
	case "max":
		return fmt.Errorf("loader: line %d: %s longer than %s characters", r.Line, fe.Field(), fe.Param())
	}
	return fmt.Errorf("loader: line %d: %s failed %s", r.Line, fe.Field(), fe.Tag())
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

// Load reads and builds the roster at path. A missing CSV roster is created
// from the template and ErrTemplateCreated is returned.
func Load(path string) (*roster.Roster, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) && !isYAML(path) {
		if err := WriteTemplate(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrTemplateCreated, path)
	}
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	var rows []Row
	if isYAML(path) {
		rows, err = ReadYAML(f)
	} else {
		rows, err = ReadCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r, err := Build(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// WriteTemplate creates path containing only the CSV header. It fails if
// path already exists.
func WriteTemplate(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("loader: mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("loader: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		f.Close()
		return fmt.Errorf("loader: write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("loader: write %s: %w", path, err)
	}
	return f.Close()
}

// Append adds row to the CSV roster at path, creating the file from the
// template first if it is missing. The roster must still build with the
// new row; otherwise the file is left unchanged.
func Append(path string, row Row) error {
	if isYAML(path) {
		return fmt.Errorf("loader: append to %s: only CSV rosters can be edited", path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := WriteTemplate(path); err != nil {
			return err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loader: read %s: %w", path, err)
	}
	rows, err := ReadCSV(bytes.NewReader(data))
	if err != nil && !errors.Is(err, ErrEmptyRoster) {
		return fmt.Errorf("%s: %w", path, err)
	}

	endsInNewline := len(data) > 0 && data[len(data)-1] == '\n'
	row.Line = bytes.Count(data, []byte("\n")) + 1
	if !endsInNewline {
		row.Line++
	}
	if _, err := Build(append(rows, row)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("loader: open %s: %w", path, err)
	}
	if !endsInNewline {
		if _, err := f.WriteString("\n"); err != nil {
			f.Close()
			return fmt.Errorf("loader: write %s: %w", path, err)
		}
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{row.Name, row.Spouse, row.PreviousSmall, row.PreviousLarge}); err != nil {
		f.Close()
		return fmt.Errorf("loader: write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("loader: write %s: %w", path, err)
	}
	return f.Close()
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Readers
// ---------------------------------------------------------------------------

// ReadCSV parses a CSV roster. Cells are trimmed, blank rows and rows with
// no name are skipped, and short rows are padded.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrHeaderChanged
	}
	if err != nil {
		return nil, fmt.Errorf("loader: read header: %w", err)
	}
	if !sameHeader(header) {
		return nil, ErrHeaderChanged
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loader: read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		cells := make([]string, len(Header))
		for i := range cells {
			if i < len(rec) {
				cells[i] = strings.TrimSpace(rec[i])
			}
		}
		if cells[0] == "" {
			continue
		}
		rows = append(rows, Row{
			Line:          line,
			Name:          cells[0],
			Spouse:        cells[1],
			PreviousSmall: cells[2],
			PreviousLarge: cells[3],
		})
	}
	if len(rows) == 0 {
		return nil, ErrEmptyRoster
	}
	return rows, nil
}

func sameHeader(got []string) bool {
	if len(got) != len(Header) {
		return false
	}
	for i := range got {
		if strings.TrimSpace(got[i]) != Header[i] {
			return false
		}
	}
	return true
}

// yamlPerson is one entry of a YAML roster.
type yamlPerson struct {
	Name     string `yaml:"name"`
	Spouse   string `yaml:"spouse,omitempty"`
	Previous struct {
		Small string `yaml:"small,omitempty"`
		Large string `yaml:"large,omitempty"`
	} `yaml:"previous,omitempty"`
}

// ReadYAML parses a YAML roster.
func ReadYAML(r io.Reader) ([]Row, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyRoster
		}
		return nil, fmt.Errorf("loader: parse yaml: %w", err)
	}
	var people []yamlPerson
	if err := doc.Decode(&people); err != nil {
		return nil, fmt.Errorf("loader: parse yaml: %w", err)
	}
	// Line numbers come from the sequence items.
	var items []*yaml.Node
	if len(doc.Content) == 1 && doc.Content[0].Kind == yaml.SequenceNode {
		items = doc.Content[0].Content
	}

	var rows []Row
	for i, p := range people {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		row := Row{
			Name:          name,
			Spouse:        strings.TrimSpace(p.Spouse),
			PreviousSmall: strings.TrimSpace(p.Previous.Small),
			PreviousLarge: strings.TrimSpace(p.Previous.Large),
		}
		if i < len(items) {
			row.Line = items[i].Line
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyRoster
	}
	return rows, nil
}

// ---------------------------------------------------------------------------
// Build
// ---------------------------------------------------------------------------

// Build validates rows and resolves their references into a roster in row
// order. Couples may be listed from one or both sides.
func Build(rows []Row) (*roster.Roster, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyRoster
	}
	people := make([]*roster.Person, len(rows))
	byName := make(map[string]*roster.Person, len(rows))
	firstLine := make(map[string]int, len(rows))
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			return nil, err
		}
		if prev, dup := firstLine[row.Name]; dup {
			return nil, fmt.Errorf("loader: line %d: duplicate name %q (first on line %d)", row.Line, row.Name, prev)
		}
		firstLine[row.Name] = row.Line
		people[i] = roster.NewPerson(row.Name)
		byName[row.Name] = people[i]
	}

	resolve := func(row Row, field, ref string) (*roster.Person, error) {
		p, ok := byName[ref]
		if !ok {
			return nil, &RelationError{Line: row.Line, Name: row.Name, Field: field, Ref: ref, Reason: "is not in the roster"}
		}
		return p, nil
	}

	for i, row := range rows {
		p := people[i]
		if row.Spouse != "" {
			spouse, err := resolve(row, "spouse_name", row.Spouse)
			if err != nil {
				return nil, err
			}
			if err := roster.AddSpouse(p, spouse); err != nil {
				return nil, &RelationError{Line: row.Line, Name: row.Name, Field: "spouse_name", Ref: row.Spouse, Reason: fmt.Sprintf("cannot be added as spouse (%v)", err)}
			}
		}
		for _, h := range []struct {
			field, ref string
			kind       roster.GiftKind
		}{
			{"previous_small_giftee", row.PreviousSmall, roster.Small},
			{"previous_large_giftee", row.PreviousLarge, roster.Large},
		} {
			if h.ref == "" {
				continue
			}
			if _, err := resolve(row, h.field, h.ref); err != nil {
				return nil, err
			}
			p.AddPreviousGiftee(h.ref, h.kind)
		}
	}

	r, err := roster.New(people...)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	return r, nil
}
