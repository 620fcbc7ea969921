package analyzer

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alzaheer/privacyshield/analyzer/patterns"
)

// RecognizerFile is the top-level structure of a recognizer YAML file.
type RecognizerFile struct {
	Recognizers []RecognizerConfig `yaml:"recognizers"`
}

// RecognizerConfig follows Presidio's recognizer registry schema, plus a
// validator name and a sensitivity used to order overlapping matches.
type RecognizerConfig struct {
	Name               string            `yaml:"name" json:"name"`
	SupportedEntity    string            `yaml:"supported_entity" json:"supported_entity"`
	Enabled            *bool             `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Patterns           []PatternConfig   `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	SupportedLanguages []LanguageContext `yaml:"supported_languages,omitempty" json:"supported_languages,omitempty"`
	DenyList           []string          `yaml:"deny_list,omitempty" json:"deny_list,omitempty"`
	DenyListScore      float64           `yaml:"deny_list_score,omitempty" json:"deny_list_score,omitempty"`
	Validator          string            `yaml:"validator,omitempty" json:"validator,omitempty"`
	Sensitivity        int               `yaml:"sensitivity,omitempty" json:"sensitivity,omitempty"`
}

// PatternConfig is one regular expression of a recognizer.
type PatternConfig struct {
	Name  string  `yaml:"name" json:"name"`
	Regex string  `yaml:"regex" json:"regex"`
	Score float64 `yaml:"score" json:"score"`
}

// LanguageContext holds the context words of one language.
type LanguageContext struct {
	Language string   `yaml:"language" json:"language"`
	Context  []string `yaml:"context,omitempty" json:"context,omitempty"`
}

func (r *RecognizerConfig) isEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ParseRecognizerFile parses recognizer YAML.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	return &rf, nil
}

// LoadRecognizerFile reads a recognizer file. A missing file is not an
// error: it returns nil.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	return ParseRecognizerFile(data)
}

// DefaultRecognizers returns the embedded recognizers.
func DefaultRecognizers() ([]RecognizerConfig, error) {
	rf, err := ParseRecognizerFile(patterns.PIIYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded PII patterns: %w", err)
	}
	return rf.Recognizers, nil
}

// MergeRecognizers layers recognizer lists: a recognizer replaces an
// earlier one with the same name, new names are appended.
func MergeRecognizers(layers ...[]RecognizerConfig) []RecognizerConfig {
	index := make(map[string]int)
	var merged []RecognizerConfig
	for _, layer := range layers {
		for _, rc := range layer {
			if i, ok := index[rc.Name]; ok {
				merged[i] = rc
				continue
			}
			index[rc.Name] = len(merged)
			merged = append(merged, rc)
		}
	}
	return merged
}

// FilterByEntities keeps the recognizers whose entity is listed. An
// empty list keeps everything.
func FilterByEntities(recognizers []RecognizerConfig, entities []string) []RecognizerConfig {
	if len(entities) == 0 {
		return recognizers
	}
	allowed := make(map[string]bool, len(entities))
	for _, e := range entities {
		allowed[e] = true
	}
	var out []RecognizerConfig
	for _, r := range recognizers {
		if allowed[r.SupportedEntity] {
			out = append(out, r)
		}
	}
	return out
}

// pattern is a compiled recognizer pattern ready for matching.
type pattern struct {
	recognizer  string
	entity      string
	re          *regexp.Regexp
	score       float64
	context     []string
	validate    func(string) bool
	sensitivity int
}

func compile(recognizers []RecognizerConfig) ([]pattern, error) {
	var out []pattern
	for _, rec := range recognizers {
		if !rec.isEnabled() {
			continue
		}
		if rec.SupportedEntity == "" {
			return nil, fmt.Errorf("recognizer %q has no supported_entity", rec.Name)
		}
		var validate func(string) bool
		if rec.Validator != "" {
			v, ok := validators[rec.Validator]
			if !ok {
				return nil, fmt.Errorf("recognizer %q: unknown validator %q", rec.Name, rec.Validator)
			}
			validate = v
		}
		var context []string
		for _, lc := range rec.SupportedLanguages {
			context = append(context, lc.Context...)
		}

		base := pattern{
			recognizer:  rec.Name,
			entity:      rec.SupportedEntity,
			context:     context,
			validate:    validate,
			sensitivity: rec.Sensitivity,
		}
		for _, p := range rec.Patterns {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in recognizer %q: %w", p.Name, rec.Name, err)
			}
			cp := base
			cp.re, cp.score = re, p.Score
			out = append(out, cp)
		}
		if len(rec.DenyList) > 0 {
			words := make([]string, len(rec.DenyList))
			for i, w := range rec.DenyList {
				words[i] = regexp.QuoteMeta(w)
			}
			score := rec.DenyListScore
			if score == 0 {
				score = 1
			}
			cp := base
			cp.re = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
			cp.score = score
			out = append(out, cp)
		}
	}
	return out, nil
}
