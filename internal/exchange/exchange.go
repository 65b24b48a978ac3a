// Package exchange manages gift exchange directories.
//
// Named exchanges live under ~/.secretsanta/<name>/, but any directory can
// serve as an exchange root.
//
// Directory layout:
//
//	<root>/
//	    roster.csv                 # participants (settings.roster overrides)
//	    .secretsanta/settings.yaml # draw configuration
//	    .secretsanta/history.db    # earlier draws
//	    .secretsanta/metrics.prom  # textfile metrics from the last draw
//	    out/result.yaml            # yaml reporter
//	    out/cards/<giver>.md       # cards reporter
package exchange

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"secretsanta/internal/history"
	"secretsanta/internal/loader"
	"secretsanta/internal/settings"
)

const (
	historyFile = "history.db"
	metricsFile = "metrics.prom"
	outDir      = "out"
)

// Exchange is an exchange root directory.
type Exchange struct {
	Dir string
}

// Base returns the directory holding named exchanges.
func Base() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, settings.Dir), nil
}

// Init creates ~/.secretsanta/<name>/ with default settings and an empty
// roster template. It errors if the exchange already exists.
func Init(name string) (*Exchange, error) {
	base, err := Base()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(base, name)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("exchange %q already exists at %s", name, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create exchange: %w", err)
	}
	x := &Exchange{Dir: dir}
	if err := x.Scaffold(); err != nil {
		return nil, err
	}
	return x, nil
}

// Scaffold writes default settings and the roster template into the
// exchange, leaving existing files alone.
func (x *Exchange) Scaffold() error {
	s, err := x.Settings()
	if err != nil {
		return err
	}
	if s == nil {
		s = &settings.Settings{
			Roster:  settings.DefaultRoster,
			Outputs: []string{"console", "yaml", "cards"},
		}
		if err := s.Save(x.Dir); err != nil {
			return err
		}
	}
	path := x.RosterPath(s)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return loader.WriteTemplate(path)
}

// Open opens a named exchange. Returns an error if not found.
func Open(name string) (*Exchange, error) {
	base, err := Base()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(base, name)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("exchange %q not found (run 'secretsanta init %s' first)", name, name)
	}
	return &Exchange{Dir: dir}, nil
}

// At uses dir as an exchange root.
func At(dir string) (*Exchange, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("exchange dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("exchange dir %s is not a directory", abs)
	}
	return &Exchange{Dir: abs}, nil
}

// List returns the names of all exchanges under ~/.secretsanta/.
func List() ([]string, error) {
	base, err := Base()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read exchanges dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Settings loads the exchange settings; nil if there are none.
func (x *Exchange) Settings() (*settings.Settings, error) {
	return settings.LoadSettings(x.Dir)
}

// RosterPath resolves the roster file named by s against the exchange root.
func (x *Exchange) RosterPath(s *settings.Settings) string {
	p := s.RosterFile()
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(x.Dir, p)
}

func (x *Exchange) stateDir() string { return filepath.Join(x.Dir, settings.Dir) }

// HistoryPath returns the history database location.
func (x *Exchange) HistoryPath() string { return filepath.Join(x.stateDir(), historyFile) }

// MetricsPath returns the default metrics textfile location.
func (x *Exchange) MetricsPath() string { return filepath.Join(x.stateDir(), metricsFile) }

// OutputDir returns where file reporters write.
func (x *Exchange) OutputDir() string { return filepath.Join(x.Dir, outDir) }

// OpenHistory opens the exchange's history database, creating it if needed.
func (x *Exchange) OpenHistory(ctx context.Context) (*history.Store, error) {
	if err := os.MkdirAll(x.stateDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return history.Open(ctx, x.HistoryPath())
}
