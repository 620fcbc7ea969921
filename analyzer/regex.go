package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/alzaheer/privacyshield/model"
)

var tracer = otel.Tracer("github.com/alzaheer/privacyshield/analyzer")

const (
	// DefaultMinScore drops matches whose confidence stays below it.
	DefaultMinScore = 0.5

	// ContextBoost is added to a match's score when a context word of its
	// recognizer occurs nearby.
	ContextBoost = 0.35

	// ContextWindow is how many bytes around a match are searched for
	// context words.
	ContextWindow = 100
)

// Regex is a pattern-based analyzer configured from recognizer YAML.
type Regex struct {
	patterns []pattern
	entities []string
	minScore float64
}

// Option configures a Regex analyzer.
type Option func(*regexConfig)

type regexConfig struct {
	patternFile string
	extra       []RecognizerConfig
	entities    []string
	minScore    float64
}

// WithMinScore overrides DefaultMinScore.
func WithMinScore(score float64) Option {
	return func(c *regexConfig) { c.minScore = score }
}

// WithPatternFile layers the recognizers of a YAML file over the
// defaults. A missing file is ignored.
func WithPatternFile(path string) Option {
	return func(c *regexConfig) { c.patternFile = path }
}

// WithRecognizers layers recognizers over the defaults and the pattern file.
func WithRecognizers(recs []RecognizerConfig) Option {
	return func(c *regexConfig) { c.extra = recs }
}

// WithEntities limits the analyzer to the listed entity types.
func WithEntities(entities []string) Option {
	return func(c *regexConfig) { c.entities = entities }
}

// NewRegex builds an analyzer from the embedded recognizers, an optional
// pattern file and extra recognizers, in that order.
func NewRegex(opts ...Option) (*Regex, error) {
	var cfg regexConfig
	for _, o := range opts {
		o(&cfg)
	}

	defaults, err := DefaultRecognizers()
	if err != nil {
		return nil, err
	}
	var fromFile []RecognizerConfig
	if cfg.patternFile != "" {
		rf, err := LoadRecognizerFile(cfg.patternFile)
		if err != nil {
			return nil, err
		}
		if rf != nil {
			fromFile = rf.Recognizers
		}
	}

	merged := FilterByEntities(MergeRecognizers(defaults, fromFile, cfg.extra), cfg.entities)
	compiled, err := compile(merged)
	if err != nil {
		return nil, fmt.Errorf("compiling recognizers: %w", err)
	}

	minScore := DefaultMinScore
	if cfg.minScore > 0 {
		minScore = cfg.minScore
	}
	var entities []string
	seen := make(map[string]bool)
	for _, p := range compiled {
		if !seen[p.entity] {
			seen[p.entity] = true
			entities = append(entities, p.entity)
		}
	}
	sort.Strings(entities)
	return &Regex{patterns: compiled, entities: entities, minScore: minScore}, nil
}

// SupportedEntities lists the entity types the analyzer can detect.
func (r *Regex) SupportedEntities(context.Context) ([]string, error) {
	return append([]string(nil), r.entities...), nil
}

// Analyze returns the PII spans of text, restricted to entities when
// that list is not empty. Overlapping matches are resolved in favour of
// the longest, then the highest scoring, then the most sensitive one.
func (r *Regex) Analyze(ctx context.Context, text string, entities []string) ([]model.PIISpan, error) {
	_, span := tracer.Start(ctx, "analyzer.regex")
	defer span.End()

	var wanted map[string]bool
	if len(entities) > 0 {
		wanted = make(map[string]bool, len(entities))
		for _, e := range entities {
			wanted[e] = true
		}
	}

	var candidates []candidate
	for _, p := range r.patterns {
		if wanted != nil && !wanted[p.entity] {
			continue
		}
		for _, m := range p.re.FindAllStringIndex(text, -1) {
			value := text[m[0]:m[1]]
			if p.validate != nil && !p.validate(value) {
				continue
			}
			score := p.score
			if hasContext(text, m[0], m[1], p.context) {
				score += ContextBoost
			}
			if score > 1 {
				score = 1
			}
			if score < r.minScore {
				continue
			}
			candidates = append(candidates, candidate{
				PIISpan:     model.PIISpan{EntityType: p.entity, Start: m[0], End: m[1], Score: score},
				sensitivity: p.sensitivity,
			})
		}
	}

	spans := resolveOverlaps(candidates)
	span.SetAttributes(
		attribute.Int("pii.candidates", len(candidates)),
		attribute.Int("pii.spans", len(spans)),
	)
	return spans, nil
}

type candidate struct {
	model.PIISpan
	sensitivity int
}

func resolveOverlaps(cands []candidate) []model.PIISpan {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.sensitivity != b.sensitivity {
			return a.sensitivity > b.sensitivity
		}
		return a.Start < b.Start
	})

	var kept []model.PIISpan
	for _, c := range cands {
		overlaps := false
		for _, k := range kept {
			if c.Start < k.End && k.Start < c.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c.PIISpan)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

// hasContext reports whether one of words occurs as a whole word within
// ContextWindow bytes of text[start:end], the match itself excluded.
func hasContext(text string, start, end int, words []string) bool {
	if len(words) == 0 {
		return false
	}
	lo := start - ContextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + ContextWindow
	if hi > len(text) {
		hi = len(text)
	}
	window := strings.ToLower(text[lo:start] + " " + text[end:hi])
	for _, w := range words {
		if containsWord(window, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		i += from
		j := i + len(word)
		if (i == 0 || !isWordByte(s[i-1])) && (j == len(s) || !isWordByte(s[j])) {
			return true
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 0x80 || unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
}
