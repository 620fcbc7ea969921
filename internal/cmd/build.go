package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/alzaheer/privacyshield/analyzer"
	"github.com/alzaheer/privacyshield/faceblur"
	"github.com/alzaheer/privacyshield/format"
	"github.com/alzaheer/privacyshield/internal/config"
	"github.com/alzaheer/privacyshield/redact"
)

// pipeline is the wired de-identification stack for one command.
type pipeline struct {
	analyzer  analyzer.Analyzer
	blurrer   *faceblur.Blurrer
	assembler *redact.Assembler
}

func buildPipeline(cfg *config.Config) (*pipeline, error) {
	a, err := buildAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	b, err := buildBlurrer(cfg)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		analyzer:  a,
		blurrer:   b,
		assembler: redact.NewAssembler(a, b),
	}, nil
}

func buildAnalyzer(cfg *config.Config) (analyzer.Analyzer, error) {
	if cfg.Analyzer.Backend == config.BackendPresidio {
		opts := []analyzer.PresidioOption{
			analyzer.WithLanguage(cfg.Analyzer.Language),
			analyzer.WithScoreThreshold(cfg.Analyzer.MinScore),
		}
		if cfg.Analyzer.RateLimit > 0 {
			opts = append(opts, analyzer.WithRateLimit(cfg.Analyzer.RateLimit, 1))
		}
		log.Debug().Str("url", cfg.Analyzer.PresidioURL).Msg("analyzer_presidio")
		return analyzer.NewPresidio(cfg.Analyzer.PresidioURL, cfg.Analyzer.Timeout, opts...), nil
	}

	opts := []analyzer.Option{analyzer.WithMinScore(cfg.Analyzer.MinScore)}
	if cfg.Analyzer.PatternFile != "" {
		opts = append(opts, analyzer.WithPatternFile(cfg.Analyzer.PatternFile))
	}
	r, err := analyzer.NewRegex(opts...)
	if err != nil {
		return nil, fmt.Errorf("building regex analyzer: %w", err)
	}
	return r, nil
}

func buildBlurrer(cfg *config.Config) (*faceblur.Blurrer, error) {
	opts := []faceblur.PigoOption{faceblur.WithMinSize(cfg.Faces.MinSize)}
	var (
		detector *faceblur.PigoDetector
		err      error
	)
	if cfg.Faces.Cascade != "" {
		detector, err = faceblur.LoadPigoDetector(cfg.Faces.Cascade, opts...)
	} else {
		detector, err = faceblur.NewDefaultDetector(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("loading face cascade: %w", err)
	}
	return faceblur.New(detector,
		faceblur.WithStrength(cfg.Faces.Strength),
		faceblur.WithQuality(cfg.Faces.Quality),
	), nil
}

// cascadeName names the face cascade in use for logs.
func cascadeName(cfg *config.Config) string {
	if cfg.Faces.Cascade == "" {
		return "facefinder (bundled)"
	}
	return cfg.Faces.Cascade
}

func redactOptions(cfg *config.Config) redact.Options {
	return redact.Options{
		RedactPII:      cfg.RedactPII,
		BlurFaces:      cfg.BlurFaces,
		PIIEntityTypes: cfg.PIIEntities,
		Label:          cfg.Label,
	}
}

// sniff returns the format of the file at path from its leading bytes.
func sniff(path string) (format.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return format.Unknown, err
	}
	defer f.Close()
	kind, _, err := format.DetectFromReader(f)
	if err != nil {
		return format.Unknown, fmt.Errorf("reading %s: %w", path, err)
	}
	return kind, nil
}

// outputPath places name in dir unless explicit is set.
func outputPath(explicit, dir, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(dir, name)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
