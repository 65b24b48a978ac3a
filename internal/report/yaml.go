package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"secretsanta/internal/draw"
)

// ResultFile is the file written by the yaml reporter.
const ResultFile = "result.yaml"

// Document is the YAML form of a draw.
type Document struct {
	DrawID    string             `yaml:"draw_id"`
	Attempts  int                `yaml:"attempts"`
	Seed      uint64             `yaml:"seed"`
	Giving    []draw.GiverRow    `yaml:"giving"`
	Receiving []draw.ReceiverRow `yaml:"receiving"`
}

// NewDocument converts res for YAML output.
func NewDocument(res *draw.Result) Document {
	return Document{
		DrawID:    res.ID.String(),
		Attempts:  res.Attempts,
		Seed:      res.Seed,
		Giving:    res.Giving(),
		Receiving: res.Receiving(),
	}
}

// YAML writes result.yaml under Dir.
type YAML struct {
	Dir string
}

func (y *YAML) Name() string { return "yaml" }

func (y *YAML) Report(res *draw.Result) error {
	if err := os.MkdirAll(y.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", y.Dir, err)
	}
	data, err := yaml.Marshal(NewDocument(res))
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	path := filepath.Join(y.Dir, ResultFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
