package model

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/schd/report"
)

// Format is the encoding of a model file.
type Format int

// The supported formats.
const (
	JSON Format = iota
	YAML
)

// FormatOf guesses the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return 0, report.ModelErrorf("model", path,
			"unknown model file extension, expect .json, .yaml or .yml")
	}
}

// Load reads, decodes and validates a model file.
func Load(path string) (*Model, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, report.ModelErrorf("model", path, "%v", err)
	}

	return Parse(data, format)
}

// Parse decodes and validates a model.
func Parse(data []byte, format Format) (*Model, error) {
	m := &Model{}

	var err error

	switch format {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(m)
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(m)
	}

	if err != nil {
		return nil, report.ModelErrorf("model", "", "cannot decode: %v", err)
	}

	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Model) applyDefaults() {
	if m.Report.Level == "" {
		m.Report.Level = "info"
	}

	if m.Channels.Capacity == 0 {
		m.Channels.Capacity = 1024
	}

	for i := range m.Threads {
		for j := range m.Threads[i].Sequence {
			if t := m.Threads[i].Sequence[j].Task; t != nil && t.Param == nil {
				t.Param = map[string]any{}
			}
		}
	}
}
