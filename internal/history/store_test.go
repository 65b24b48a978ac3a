package history

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secretsanta/internal/draw"
	"secretsanta/internal/roster"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func newRoster(t *testing.T, names ...string) *roster.Roster {
	t.Helper()
	people := make([]*roster.Person, len(names))
	for i, n := range names {
		people[i] = roster.NewPerson(n)
	}
	r, err := roster.New(people...)
	require.NoError(t, err)
	return r
}

func solve(t *testing.T, r *roster.Roster, seed uint64) *draw.Result {
	t.Helper()
	res, err := (&draw.Solver{Seed: seed, MaxAttempts: 10000}).Solve(context.Background(), r)
	require.NoError(t, err)
	return res
}

// expectedPairings derives what Latest should return for res.
func expectedPairings(res *draw.Result) map[string][]roster.Pairing {
	out := make(map[string][]roster.Pairing)
	for _, row := range res.Giving() {
		// Stored kinds sort as "large" < "small".
		out[row.Name] = []roster.Pairing{
			{Recipient: row.Large, Kind: roster.Large},
			{Recipient: row.Small, Kind: roster.Small},
		}
	}
	return out
}

func TestRecordAndLatest(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	r := newRoster(t, "Alice", "Bob", "Carol", "Dave", "Erin")

	res := solve(t, r, 1)
	require.NoError(t, s.Record(ctx, 2024, res))

	d, err := s.Latest(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, res.ID, d.ID)
	assert.Equal(t, 2024, d.Year)
	assert.Equal(t, res.Attempts, d.Attempts)
	assert.Equal(t, res.Seed, d.Seed)
	assert.Equal(t, time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC), d.CreatedAt)
	if diff := cmp.Diff(expectedPairings(res), d.Pairings); diff != "" {
		t.Errorf("pairings mismatch (-want +got):\n%s", diff)
	}

	// Nothing before 2024.
	_, err = s.Latest(ctx, 2024)
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestOpenPathWithURLCharacters(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("? is not allowed in Windows paths")
	}
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "a?b#c")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "history.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	res := solve(t, newRoster(t, "Alice", "Bob", "Carol", "Dave"), 1)
	require.NoError(t, s.Record(ctx, 2024, res))

	draws, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, draws, 1)
	assert.Equal(t, res.ID, draws[0].ID)
	assert.FileExists(t, path)
}

func TestLatestPicksMostRecentEarlierYear(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	r := newRoster(t, "Alice", "Bob", "Carol", "Dave")

	first := solve(t, r, 1)
	second := solve(t, r, 2)
	require.NoError(t, s.Record(ctx, 2022, first))
	require.NoError(t, s.Record(ctx, 2023, second))

	d, err := s.Latest(ctx, 2030)
	require.NoError(t, err)
	assert.Equal(t, second.ID, d.ID)

	d, err = s.Latest(ctx, 2023)
	require.NoError(t, err)
	assert.Equal(t, first.ID, d.ID)
}

func TestRecordReplacesSameYear(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	r := newRoster(t, "Alice", "Bob", "Carol", "Dave")

	require.NoError(t, s.Record(ctx, 2024, solve(t, r, 1)))
	redo := solve(t, r, 2)
	require.NoError(t, s.Record(ctx, 2024, redo))

	draws, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, draws, 1)
	assert.Equal(t, redo.ID, draws[0].ID)

	d, err := s.Latest(ctx, 2025)
	require.NoError(t, err)
	assert.Len(t, d.Pairings, 4)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	r := newRoster(t, "Alice", "Bob", "Carol", "Dave")
	for _, y := range []int{2021, 2023, 2022} {
		require.NoError(t, s.Record(ctx, y, solve(t, r, uint64(y))))
	}
	draws, err := s.List(ctx)
	require.NoError(t, err)
	var years []int
	for _, d := range draws {
		years = append(years, d.Year)
		assert.Nil(t, d.Pairings)
	}
	assert.Equal(t, []int{2023, 2022, 2021}, years)
}

func TestApplyToFeedsNextDraw(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	last := newRoster(t, "Alice", "Bob", "Carol", "Dave", "Erin", "Frank")
	res := solve(t, last, 11)
	require.NoError(t, s.Record(ctx, 2024, res))

	// Frank left, Grace joined.
	next := newRoster(t, "Alice", "Bob", "Carol", "Dave", "Erin", "Grace")
	d, err := s.Latest(ctx, 2025)
	require.NoError(t, err)
	n := ApplyTo(next, d)

	want := 0
	for _, row := range res.Giving() {
		if row.Name == "Frank" {
			continue
		}
		for _, to := range []string{row.Small, row.Large} {
			if to != "Frank" {
				want++
			}
		}
	}
	assert.Equal(t, want, n)

	for _, row := range res.Giving() {
		p, ok := next.Lookup(row.Name)
		if !ok {
			continue
		}
		if row.Small != "Frank" {
			assert.True(t, p.HasGiven(row.Small, roster.Small), "%s small", row.Name)
		}
	}

	again := solve(t, next, 12)
	for _, p := range again.Roster.People() {
		for _, k := range roster.Kinds() {
			assert.False(t, p.HasGiven(p.GivingTo(k).Name(), k), "%s repeated a %s pairing", p, k)
		}
	}
}
