// Package config resolves the runtime configuration of the privacyshield
// CLI and HTTP server.
//
// Values come from, in increasing priority: built-in defaults, the
// optional privacyshield.yaml file, a .env file in the working directory,
// PRIVACYSHIELD_* environment variables and command-line flags bound to
// the same viper keys. Nested keys map to env vars with "." replaced by
// "_" (analyzer.backend → PRIVACYSHIELD_ANALYZER_BACKEND).
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "PRIVACYSHIELD"

// Viper keys.
const (
	KeyRedactPII   = "redact_pii"
	KeyBlurFaces   = "blur_faces"
	KeyPIIEntities = "pii_entities"
	KeyLabel       = "label"
	KeyOutputDir   = "output_dir"

	KeyAnalyzerBackend     = "analyzer.backend"
	KeyAnalyzerPresidioURL = "analyzer.presidio_url"
	KeyAnalyzerLanguage    = "analyzer.language"
	KeyAnalyzerTimeout     = "analyzer.timeout"
	KeyAnalyzerMinScore    = "analyzer.min_score"
	KeyAnalyzerPatternFile = "analyzer.pattern_file"
	KeyAnalyzerRateLimit   = "analyzer.rate_limit"

	KeyFacesCascade  = "faces.cascade"
	KeyFacesStrength = "faces.strength"
	KeyFacesQuality  = "faces.quality"
	KeyFacesMinSize  = "faces.min_size"

	KeyServerAddr        = "server.addr"
	KeyServerRateLimit   = "server.rate_limit"
	KeyServerBurst       = "server.burst"
	KeyServerMaxUploadMB = "server.max_upload_mb"
)

// Analyzer backends.
const (
	BackendRegex    = "regex"
	BackendPresidio = "presidio"
)

// Defaults.
const (
	DefaultBackend     = BackendRegex
	DefaultPresidioURL = "http://localhost:5002"
	DefaultLanguage    = "en"
	DefaultTimeout     = 30 * time.Second
	DefaultMinScore    = 0.5
	DefaultStrength    = 50
	DefaultQuality     = 95
	DefaultMinFaceSize = 30
	DefaultOutputDir   = "."
	DefaultServerAddr  = ":8080"
	DefaultServerRate  = 5.0
	DefaultServerBurst = 10
	DefaultMaxUploadMB = 50
)

// Config is the resolved configuration.
type Config struct {
	RedactPII   bool
	BlurFaces   bool
	PIIEntities []string // empty means every supported entity
	Label       string   // empty means the redactor's default label
	OutputDir   string

	Analyzer AnalyzerConfig
	Faces    FacesConfig
	Server   ServerConfig
}

// AnalyzerConfig selects and tunes the PII analyzer.
type AnalyzerConfig struct {
	Backend     string
	PresidioURL string
	Language    string
	Timeout     time.Duration
	MinScore    float64
	PatternFile string  // extra recognizers layered over the embedded set
	RateLimit   float64 // Presidio requests per second, 0 = unlimited
}

// FacesConfig tunes face detection and blurring.
type FacesConfig struct {
	Cascade  string // pigo cascade file; empty uses the bundled facefinder
	Strength int
	Quality  int
	MinSize  int
}

// ServerConfig tunes the HTTP API.
type ServerConfig struct {
	Addr        string
	RateLimit   float64 // requests per second across all clients, 0 = unlimited
	Burst       int
	MaxUploadMB int
}

// Init registers the env binding and defaults on v.
func Init(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyRedactPII, true)
	v.SetDefault(KeyBlurFaces, true)
	v.SetDefault(KeyPIIEntities, []string{})
	v.SetDefault(KeyLabel, "")
	v.SetDefault(KeyOutputDir, DefaultOutputDir)

	v.SetDefault(KeyAnalyzerBackend, DefaultBackend)
	v.SetDefault(KeyAnalyzerPresidioURL, DefaultPresidioURL)
	v.SetDefault(KeyAnalyzerLanguage, DefaultLanguage)
	v.SetDefault(KeyAnalyzerTimeout, DefaultTimeout)
	v.SetDefault(KeyAnalyzerMinScore, DefaultMinScore)
	v.SetDefault(KeyAnalyzerPatternFile, "")
	v.SetDefault(KeyAnalyzerRateLimit, 0.0)

	v.SetDefault(KeyFacesCascade, "")
	v.SetDefault(KeyFacesStrength, DefaultStrength)
	v.SetDefault(KeyFacesQuality, DefaultQuality)
	v.SetDefault(KeyFacesMinSize, DefaultMinFaceSize)

	v.SetDefault(KeyServerAddr, DefaultServerAddr)
	v.SetDefault(KeyServerRateLimit, DefaultServerRate)
	v.SetDefault(KeyServerBurst, DefaultServerBurst)
	v.SetDefault(KeyServerMaxUploadMB, DefaultMaxUploadMB)
}

// New returns a viper instance prepared by Init.
func New() *viper.Viper {
	v := viper.New()
	Init(v)
	return v
}

// Load reads .env (if present) and returns the validated configuration
// held by v, which must have been prepared by Init.
func Load(v *viper.Viper) (*Config, error) {
	// Best-effort: existing environment variables win over .env.
	_ = godotenv.Load()

	cfg := &Config{
		RedactPII:   v.GetBool(KeyRedactPII),
		BlurFaces:   v.GetBool(KeyBlurFaces),
		PIIEntities: splitList(v.GetStringSlice(KeyPIIEntities)),
		Label:       v.GetString(KeyLabel),
		OutputDir:   v.GetString(KeyOutputDir),
		Analyzer: AnalyzerConfig{
			Backend:     strings.ToLower(strings.TrimSpace(v.GetString(KeyAnalyzerBackend))),
			PresidioURL: strings.TrimRight(v.GetString(KeyAnalyzerPresidioURL), "/"),
			Language:    v.GetString(KeyAnalyzerLanguage),
			Timeout:     v.GetDuration(KeyAnalyzerTimeout),
			MinScore:    v.GetFloat64(KeyAnalyzerMinScore),
			PatternFile: v.GetString(KeyAnalyzerPatternFile),
			RateLimit:   v.GetFloat64(KeyAnalyzerRateLimit),
		},
		Faces: FacesConfig{
			Cascade:  v.GetString(KeyFacesCascade),
			Strength: v.GetInt(KeyFacesStrength),
			Quality:  v.GetInt(KeyFacesQuality),
			MinSize:  v.GetInt(KeyFacesMinSize),
		},
		Server: ServerConfig{
			Addr:        v.GetString(KeyServerAddr),
			RateLimit:   v.GetFloat64(KeyServerRateLimit),
			Burst:       v.GetInt(KeyServerBurst),
			MaxUploadMB: v.GetInt(KeyServerMaxUploadMB),
		},
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MaxUploadBytes returns the upload limit of the HTTP API in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	switch c.Analyzer.Backend {
	case BackendRegex:
	case BackendPresidio:
		u, err := url.Parse(c.Analyzer.PresidioURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("analyzer.presidio_url %q is not an absolute URL", c.Analyzer.PresidioURL)
		}
	default:
		return fmt.Errorf("analyzer.backend must be %q or %q, got %q", BackendRegex, BackendPresidio, c.Analyzer.Backend)
	}
	if c.Analyzer.Timeout <= 0 {
		return fmt.Errorf("analyzer.timeout must be positive")
	}
	if c.Analyzer.MinScore < 0 || c.Analyzer.MinScore > 1 {
		return fmt.Errorf("analyzer.min_score must be between 0 and 1")
	}
	if c.Analyzer.RateLimit < 0 {
		return fmt.Errorf("analyzer.rate_limit must not be negative")
	}
	if c.Faces.Strength < 1 {
		return fmt.Errorf("faces.strength must be at least 1")
	}
	if c.Faces.Quality < 1 || c.Faces.Quality > 100 {
		return fmt.Errorf("faces.quality must be between 1 and 100")
	}
	if c.Faces.MinSize < 1 {
		return fmt.Errorf("faces.min_size must be at least 1")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if c.Server.Burst < 1 {
		return fmt.Errorf("server.burst must be at least 1")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}
	return nil
}
