package loader_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secretsanta/internal/loader"
	"secretsanta/internal/roster"
)

const header = "name,spouse_name,previous_small_giftee,previous_large_giftee\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func lookup(t *testing.T, r *roster.Roster, name string) *roster.Person {
	t.Helper()
	p, ok := r.Lookup(name)
	require.True(t, ok, "missing %q", name)
	return p
}

// ---------------------------------------------------------------------------
// ReadCSV
// ---------------------------------------------------------------------------

func TestReadCSV(t *testing.T) {
	in := header +
		" Alice , Bob ,Carol,\n" +
		"\n" +
		"Bob,Alice\n" +
		",,,\n" +
		"Carol,,,Alice\n"
	rows, err := loader.ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, loader.Row{Line: 2, Name: "Alice", Spouse: "Bob", PreviousSmall: "Carol"}, rows[0])
	assert.Equal(t, loader.Row{Line: 4, Name: "Bob", Spouse: "Alice"}, rows[1])
	assert.Equal(t, loader.Row{Line: 6, Name: "Carol", PreviousLarge: "Alice"}, rows[2])
}

func TestReadCSVHeaderChanged(t *testing.T) {
	for _, in := range []string{
		"",
		"name,spouse\nAlice,Bob\n",
		"Name,spouse_name,previous_small_giftee,previous_large_giftee\nAlice,,,\n",
	} {
		_, err := loader.ReadCSV(strings.NewReader(in))
		assert.ErrorIs(t, err, loader.ErrHeaderChanged, "input %q", in)
	}
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := loader.ReadCSV(strings.NewReader(header + "\n,,,\n"))
	assert.ErrorIs(t, err, loader.ErrEmptyRoster)
}

// ---------------------------------------------------------------------------
// ReadYAML
// ---------------------------------------------------------------------------

func TestReadYAML(t *testing.T) {
	in := `
- name: Alice
  spouse: Bob
  previous:
    small: Carol
- name: Bob
- name: " "
- name: Carol
  previous:
    large: Alice
`
	rows, err := loader.ReadYAML(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Alice", rows[0].Name)
	assert.Equal(t, "Bob", rows[0].Spouse)
	assert.Equal(t, "Carol", rows[0].PreviousSmall)
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "Alice", rows[2].PreviousLarge)
}

func TestReadYAMLEmpty(t *testing.T) {
	_, err := loader.ReadYAML(strings.NewReader(""))
	assert.ErrorIs(t, err, loader.ErrEmptyRoster)

	_, err = loader.ReadYAML(strings.NewReader("[]\n"))
	assert.ErrorIs(t, err, loader.ErrEmptyRoster)
}

func TestReadYAMLNotAList(t *testing.T) {
	_, err := loader.ReadYAML(strings.NewReader("name: Alice\n"))
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Build
// ---------------------------------------------------------------------------

func TestBuildResolvesRelations(t *testing.T) {
	rows := []loader.Row{
		{Line: 2, Name: "Alice", Spouse: "Bob", PreviousSmall: "Carol", PreviousLarge: "Dave"},
		{Line: 3, Name: "Bob", Spouse: "Alice"},
		{Line: 4, Name: "Carol"},
		{Line: 5, Name: "Dave", Spouse: "Carol"},
	}
	r, err := loader.Build(rows)
	require.NoError(t, err)
	require.Equal(t, 4, r.Len())

	alice, bob := lookup(t, r, "Alice"), lookup(t, r, "Bob")
	carol, dave := lookup(t, r, "Carol"), lookup(t, r, "Dave")
	assert.Same(t, bob, alice.Spouse())
	assert.Same(t, alice, bob.Spouse())
	assert.Same(t, dave, carol.Spouse(), "one-sided spouse entries are symmetric")
	assert.True(t, alice.HasGiven("Carol", roster.Small))
	assert.True(t, alice.HasGiven("Dave", roster.Large))
	assert.False(t, alice.HasGiven("Carol", roster.Large))

	// Roster order follows row order.
	var names []string
	for _, p := range r.People() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"Alice", "Bob", "Carol", "Dave"}, names)
}

func TestBuildRejectsMalformedRelations(t *testing.T) {
	tests := []struct {
		name string
		rows []loader.Row
	}{
		{
			name: "unknown spouse",
			rows: []loader.Row{{Line: 2, Name: "Alice", Spouse: "Zed"}},
		},
		{
			name: "unknown previous giftee",
			rows: []loader.Row{{Line: 2, Name: "Alice", PreviousLarge: "Zed"}, {Line: 3, Name: "Bob"}},
		},
		{
			name: "self spouse",
			rows: []loader.Row{{Line: 2, Name: "Alice", Spouse: "Alice"}},
		},
		{
			name: "self previous giftee",
			rows: []loader.Row{{Line: 2, Name: "Alice", PreviousSmall: "Alice"}},
		},
		{
			name: "conflicting spouses",
			rows: []loader.Row{
				{Line: 2, Name: "Alice", Spouse: "Bob"},
				{Line: 3, Name: "Bob"},
				{Line: 4, Name: "Carol", Spouse: "Bob"},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loader.Build(tc.rows)
			require.Error(t, err)
			assert.True(t, errors.Is(err, loader.ErrMalformedRelation), "got %v", err)

			var rel *loader.RelationError
			require.ErrorAs(t, err, &rel)
			assert.NotZero(t, rel.Line)
		})
	}
}

func TestBuildRejectsDuplicateNames(t *testing.T) {
	_, err := loader.Build([]loader.Row{{Line: 2, Name: "Alice"}, {Line: 5, Name: "Alice"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 5")
	assert.Contains(t, err.Error(), "first on line 2")
}

func TestBuildRejectsLongNames(t *testing.T) {
	_, err := loader.Build([]loader.Row{{Line: 2, Name: strings.Repeat("x", 200)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name longer than")
}

func TestBuildEmpty(t *testing.T) {
	_, err := loader.Build(nil)
	assert.ErrorIs(t, err, loader.ErrEmptyRoster)
}

// ---------------------------------------------------------------------------
// Load / WriteTemplate
// ---------------------------------------------------------------------------

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "roster.csv", header+"Alice,Bob,,\nBob,Alice,,\nCarol,,,\nDave,,Alice,\n")
	r, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())
	assert.True(t, lookup(t, r, "Dave").HasGiven("Alice", roster.Small))
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "roster.yml", "- name: Alice\n  spouse: Bob\n- name: Bob\n- name: Carol\n")
	r, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())
	assert.Same(t, lookup(t, r, "Alice"), lookup(t, r, "Bob").Spouse())
}

func TestLoadMissingCSVWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "roster.csv")
	_, err := loader.Load(path)
	require.ErrorIs(t, err, loader.ErrTemplateCreated)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, header, string(data))

	// The template alone is an empty roster.
	_, err = loader.Load(path)
	assert.ErrorIs(t, err, loader.ErrEmptyRoster)
}

func TestLoadMissingYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	_, err := loader.Load(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, loader.ErrTemplateCreated)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	path := writeFile(t, "roster.csv", header+"Alice,,,\n")
	require.Error(t, loader.WriteTemplate(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Alice")
}

// ---------------------------------------------------------------------------
// Append
// ---------------------------------------------------------------------------

func TestAppendCreatesAndExtends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, loader.Append(path, loader.Row{Name: "Alice"}))
	require.NoError(t, loader.Append(path, loader.Row{Name: "Bob", Spouse: "Alice"}))
	require.NoError(t, loader.Append(path, loader.Row{Name: "Carol", PreviousSmall: "Alice"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, header+"Alice,,,\nBob,Alice,,\nCarol,,Alice,\n", string(data))

	r, err := loader.Load(path)
	require.NoError(t, err)
	assert.Same(t, lookup(t, r, "Bob"), lookup(t, r, "Alice").Spouse())
	assert.True(t, lookup(t, r, "Carol").HasGiven("Alice", roster.Small))
}

func TestAppendAddsMissingNewline(t *testing.T) {
	path := writeFile(t, "roster.csv", header+"Alice,,,")
	require.NoError(t, loader.Append(path, loader.Row{Name: "Bob"}))

	rows, err := loader.ReadCSV(strings.NewReader(mustRead(t, path)))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, loader.Row{Line: 3, Name: "Bob"}, rows[1])
}

func TestAppendRejectsBadRows(t *testing.T) {
	content := header + "Alice,Bob,,\nBob,Alice,,\n"
	for _, tc := range []struct {
		name string
		row  loader.Row
	}{
		{"duplicate", loader.Row{Name: "Alice"}},
		{"unknown spouse", loader.Row{Name: "Carol", Spouse: "Zed"}},
		{"married spouse", loader.Row{Name: "Carol", Spouse: "Alice"}},
		{"self reference", loader.Row{Name: "Carol", PreviousLarge: "Carol"}},
		{"no name", loader.Row{Spouse: "Alice"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "roster.csv", content)
			assert.Error(t, loader.Append(path, tc.row))
			assert.Equal(t, content, mustRead(t, path), "file must be unchanged")
		})
	}
}

func TestAppendRefusesYAML(t *testing.T) {
	path := writeFile(t, "roster.yaml", "- name: Alice\n")
	assert.Error(t, loader.Append(path, loader.Row{Name: "Bob"}))
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
