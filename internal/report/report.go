// Package report presents a finished draw.
//
// Reporters are looked up by name so the set of outputs can come from
// settings or flags:
//
//	console  giving and receiving tables on the terminal
//	yaml     result.yaml in the output directory
//	cards    cards/<giver>.md, one private note per giver
package report

import (
	"fmt"
	"io"
	"sort"

	"secretsanta/internal/draw"
)

// Reporter consumes a successful draw.
type Reporter interface {
	// Name returns the reporter's short identifier (e.g. "console").
	Name() string

	// Report writes res wherever the reporter writes.
	Report(res *draw.Result) error
}

// Options carries what reporters need to know about their destination.
type Options struct {
	Out io.Writer // console output
	Dir string    // directory for file outputs
}

type factory func(Options) Reporter

var reporters = map[string]factory{
	"console": func(o Options) Reporter { return &Console{Out: o.Out} },
	"yaml":    func(o Options) Reporter { return &YAML{Dir: o.Dir} },
	"cards":   func(o Options) Reporter { return &Cards{Dir: o.Dir} },
}

// Names lists the registered reporters in sorted order.
func Names() []string {
	names := make([]string, 0, len(reporters))
	for n := range reporters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the named reporter.
func New(name string, opts Options) (Reporter, error) {
	f, ok := reporters[name]
	if !ok {
		return nil, fmt.Errorf("report: unknown output %q (have %v)", name, Names())
	}
	return f(opts), nil
}

// NewAll builds every named reporter, failing on the first unknown name.
func NewAll(names []string, opts Options) ([]Reporter, error) {
	out := make([]Reporter, 0, len(names))
	for _, n := range names {
		r, err := New(n, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
