// Package tuning loads the clustering tuning file: the thresholds, weights
// and token rules that govern attach-vs-create decisions. The file is JSON,
// validated against an embedded schema, and immutable for the duration of a
// run. Any load failure is fatal at startup so the engine never runs with
// undefined thresholds.
package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed tuning.schema.json
var tuningSchemaJSON string

type Thresholds struct {
	AttachScore               float64 `json:"attach_score"`
	HighConfidenceAttachScore float64 `json:"high_confidence_attach_score"`
	MinTokenOverlap           int     `json:"min_token_overlap"`
	MinTitleJaccard           float64 `json:"min_title_jaccard"`
	SingleTokenGuard          bool    `json:"single_token_guard"`
}

type ScoringWeights struct {
	TitleJaccard  float64 `json:"title_jaccard"`
	TimeProximity float64 `json:"time_proximity"`
	TokenOverlap  float64 `json:"token_overlap"`
}

type Bonuses struct {
	NewSourceBonus float64 `json:"new_source_bonus"`
}

type Config struct {
	TimeWindowDays       int            `json:"time_window_days"`
	MaxCandidates        int            `json:"max_candidates"`
	Thresholds           Thresholds     `json:"thresholds"`
	ScoringWeights       ScoringWeights `json:"scoring_weights"`
	Bonuses              Bonuses        `json:"bonuses"`
	TimeDecayDays        float64        `json:"time_decay_days"`
	Stopwords            []string       `json:"stopwords"`
	RareTokenMinLength   int            `json:"rare_token_min_length"`
	AllowShortTokens     []string       `json:"allow_short_tokens"`
	SearchDocTitlesLimit int            `json:"search_doc_titles_limit"`

	stopwordSet   map[string]struct{}
	allowShortSet map[string]struct{}
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// Load reads and validates the tuning file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning file %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse validates raw JSON tuning content and returns the parsed config.
func Parse(raw []byte) (*Config, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode tuning JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load tuning schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("tuning schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize tuning JSON: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(normalized, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal tuning: %w", err)
	}

	if err := cfg.validateSemantics(); err != nil {
		return nil, err
	}

	cfg.stopwordSet = lowercaseSet(cfg.Stopwords)
	cfg.allowShortSet = lowercaseSet(cfg.AllowShortTokens)
	return &cfg, nil
}

func (c *Config) validateSemantics() error {
	if c.Thresholds.HighConfidenceAttachScore < c.Thresholds.AttachScore {
		return fmt.Errorf(
			"thresholds.high_confidence_attach_score (%g) must be >= thresholds.attach_score (%g)",
			c.Thresholds.HighConfidenceAttachScore, c.Thresholds.AttachScore,
		)
	}
	totalWeight := c.ScoringWeights.TitleJaccard + c.ScoringWeights.TimeProximity + c.ScoringWeights.TokenOverlap
	if totalWeight <= 0 {
		return fmt.Errorf("scoring_weights must not all be zero")
	}
	return nil
}

// IsStopword reports whether the lowercase token is configured as a stopword.
func (c *Config) IsStopword(token string) bool {
	_, ok := c.stopwordSet[token]
	return ok
}

// AllowsShortToken reports whether a token below the rare-token length floor
// is explicitly allowed (e.g. "ai", "ml").
func (c *Config) AllowsShortToken(token string) bool {
	_, ok := c.allowShortSet[token]
	return ok
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("tuning.schema.json", strings.NewReader(tuningSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("tuning.schema.json")
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
		return nil, fmt.Errorf("tuning file is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("tuning file contains trailing content")
	}
	return value, nil
}

func lowercaseSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		trimmed := strings.ToLower(strings.TrimSpace(v))
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return set
}
