package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/sandgraal/retro-games-sub003/internal/catalog"
)

//go:embed ingest.schema.json
var ingestSchemaJSON string

const (
	DefaultScheduleMinutes = 1440
	DefaultFuzzyThreshold  = catalog.DefaultFuzzyThreshold
)

// Ingest is the ingestion configuration read from --config.
type Ingest struct {
	ScheduleMinutes int            `json:"scheduleMinutes"`
	FuzzyThreshold  float64        `json:"fuzzyThreshold"`
	Sources         []SourceConfig `json:"sources"`
}

// SourceConfig describes one catalog source. Inline records take precedence
// over the URL.
type SourceConfig struct {
	Name    string              `json:"name"`
	URL     string              `json:"url,omitempty"`
	Headers map[string]string   `json:"headers,omitempty"`
	Records []catalog.RawRecord `json:"records,omitempty"`
}

func DefaultIngest() Ingest {
	return Ingest{
		ScheduleMinutes: DefaultScheduleMinutes,
		FuzzyThreshold:  DefaultFuzzyThreshold,
	}
}

func (i Ingest) Interval() time.Duration {
	return time.Duration(i.ScheduleMinutes) * time.Minute
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// LoadIngest reads a JSON or YAML ingestion config. An empty path yields the
// defaults with no sources.
func LoadIngest(path string) (Ingest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultIngest(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Ingest{}, fmt.Errorf("read ingest config: %w", err)
	}

	var payload []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		payload, err = yamlToJSON(raw)
		if err != nil {
			return Ingest{}, fmt.Errorf("decode YAML %s: %w", path, err)
		}
	default:
		payload = raw
	}

	return ParseIngest(payload)
}

// ParseIngest validates a JSON document against the ingest schema and the
// semantic rules, then decodes it over the defaults.
func ParseIngest(payload []byte) (Ingest, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return Ingest{}, fmt.Errorf("decode ingest config JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return Ingest{}, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return Ingest{}, fmt.Errorf("schema validation failed: %w", err)
	}

	cfg := DefaultIngest()
	decoder := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(payload)))
	decoder.UseNumber()
	if err := decoder.Decode(&cfg); err != nil {
		return Ingest{}, fmt.Errorf("unmarshal ingest config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Ingest{}, err
	}
	return cfg, nil
}

func (i Ingest) Validate() error {
	if i.ScheduleMinutes < 1 {
		return fmt.Errorf("scheduleMinutes must be >= 1")
	}
	if i.FuzzyThreshold <= 0 || i.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzyThreshold must be in (0, 1]")
	}
	seen := make(map[string]struct{}, len(i.Sources))
	for idx, src := range i.Sources {
		name := strings.TrimSpace(src.Name)
		if name == "" {
			return fmt.Errorf("sources[%d].name is required", idx)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate source name %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("ingest.schema.json", strings.NewReader(ingestSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("ingest.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("config is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config contains trailing content")
	}
	return value, nil
}

// yamlToJSON re-encodes a YAML document as JSON so both formats share one
// schema.
func yamlToJSON(raw []byte) ([]byte, error) {
	var value any
	if err := yaml.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, fmt.Errorf("document is empty")
	}
	out, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("convert to JSON: %w", err)
	}
	return out, nil
}
