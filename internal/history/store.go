// Package history keeps every successful draw of an exchange in SQLite so
// next year's draw can avoid repeating this year's pairings.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"secretsanta/internal/draw"
	"secretsanta/internal/roster"
)

// ErrNoHistory is returned by Latest when no earlier draw exists.
var ErrNoHistory = errors.New("history: no earlier draw")

const schema = `
CREATE TABLE IF NOT EXISTS draws (
	id         TEXT PRIMARY KEY,
	year       INTEGER NOT NULL UNIQUE,
	created_at TEXT NOT NULL,
	attempts   INTEGER NOT NULL,
	seed       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS assignments (
	draw_id   TEXT NOT NULL REFERENCES draws(id) ON DELETE CASCADE,
	giver     TEXT NOT NULL,
	recipient TEXT NOT NULL,
	kind      TEXT NOT NULL,
	PRIMARY KEY (draw_id, giver, kind)
);
`

// Store is a history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Draw is one recorded draw.
type Draw struct {
	ID        uuid.UUID
	Year      int
	CreatedAt time.Time
	Attempts  int
	Seed      uint64

	// Pairings maps each giver to what they gave.
	Pairings map[string][]roster.Pairing
}

// Record stores res as the draw for year, replacing any earlier draw for
// the same year.
func (s *Store) Record(ctx context.Context, year int, res *draw.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM draws WHERE year = ?`, year); err != nil {
		return fmt.Errorf("history: replace year %d: %w", year, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO draws (id, year, created_at, attempts, seed) VALUES (?, ?, ?, ?, ?)`,
		res.ID.String(), year, s.now().UTC().Format(time.RFC3339), res.Attempts, int64(res.Seed))
	if err != nil {
		return fmt.Errorf("history: insert draw: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO assignments (draw_id, giver, recipient, kind) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("history: prepare: %w", err)
	}
	defer stmt.Close()
	for _, p := range res.Roster.People() {
		for _, k := range roster.Kinds() {
			to := p.GivingTo(k)
			if to == nil {
				return fmt.Errorf("history: %s has no %s recipient", p.Name(), k)
			}
			if _, err := stmt.ExecContext(ctx, res.ID.String(), p.Name(), to.Name(), k.String()); err != nil {
				return fmt.Errorf("history: insert assignment: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

// Latest returns the most recent draw from a year before the given one.
func (s *Store) Latest(ctx context.Context, before int) (*Draw, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, year, created_at, attempts, seed FROM draws WHERE year < ? ORDER BY year DESC LIMIT 1`, before)
	d, err := scanDraw(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadPairings(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// List returns every recorded draw, newest first, without pairings.
func (s *Store) List(ctx context.Context) ([]*Draw, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, year, created_at, attempts, seed FROM draws ORDER BY year DESC`)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []*Draw
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDraw(sc scanner) (*Draw, error) {
	var (
		id, created string
		seed        int64
		d           Draw
	)
	if err := sc.Scan(&id, &d.Year, &created, &d.Attempts, &seed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("history: scan draw: %w", err)
	}
	var err error
	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("history: draw id %q: %w", id, err)
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("history: draw %s created_at: %w", id, err)
	}
	d.Seed = uint64(seed)
	return &d, nil
}

func (s *Store) loadPairings(ctx context.Context, d *Draw) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT giver, recipient, kind FROM assignments WHERE draw_id = ? ORDER BY giver, kind`, d.ID.String())
	if err != nil {
		return fmt.Errorf("history: pairings: %w", err)
	}
	defer rows.Close()

	d.Pairings = make(map[string][]roster.Pairing)
	for rows.Next() {
		var giver, recipient, kind string
		if err := rows.Scan(&giver, &recipient, &kind); err != nil {
			return fmt.Errorf("history: scan pairing: %w", err)
		}
		k, err := roster.ParseGiftKind(kind)
		if err != nil {
			return fmt.Errorf("history: draw %s: %w", d.ID, err)
		}
		d.Pairings[giver] = append(d.Pairings[giver], roster.Pairing{Recipient: recipient, Kind: k})
	}
	return rows.Err()
}

// ApplyTo adds d's pairings to the history of r's participants. Givers and
// recipients no longer in r are skipped. Returns the number of pairings
// added.
func ApplyTo(r *roster.Roster, d *Draw) int {
	n := 0
	for _, p := range r.People() {
		for _, pr := range d.Pairings[p.Name()] {
			if _, ok := r.Lookup(pr.Recipient); !ok {
				continue
			}
			p.AddPreviousGiftee(pr.Recipient, pr.Kind)
			n++
		}
	}
	return n
}
