package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alzaheer/privacyshield/internal/config"
	"github.com/alzaheer/privacyshield/internal/otel"
)

var tracer = otel.Tracer("github.com/alzaheer/privacyshield/internal/cmd")

// Version info injected via ldflags at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// resolvedVersion returns Version unless it is "dev" and the build info
// carries a real module version (go install ...@vX.Y.Z).
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// app is the state shared by all commands of one invocation.
type app struct {
	v *viper.Viper

	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
	otelFlag  bool

	otelShutdown func(context.Context) error
}

// loadConfig loads and validates the configuration for the running command.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newRootCommand builds the privacyshield command tree.
func newRootCommand() (*cobra.Command, *app) {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "privacyshield",
		Short: "De-identify PDF documents, text and images",
		Long: `privacyshield removes personal information from documents.

PDF text that an analyzer flags as PII is covered with a label and purged
from the page content, and every embedded image is replaced by a copy
with detected faces blurred. Plain text and standalone images can be
de-identified as well, from the command line or over HTTP.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd.ErrOrStderr(), a.logLevel, a.logFormat, a.verbose)

			if err := a.readConfigFile(); err != nil {
				return err
			}

			enabled := a.otelFlag || os.Getenv(config.EnvPrefix+"_OTEL_ENABLED") == "true"
			shutdown, err := otel.Setup("privacyshield", resolvedVersion(), enabled)
			if err != nil {
				return fmt.Errorf("initializing OpenTelemetry: %w", err)
			}
			a.otelShutdown = shutdown
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./privacyshield.yaml or ~/.privacyshield/privacyshield.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "console", "log format (console, json)")
	pf.BoolVar(&a.otelFlag, "otel", false, "enable OpenTelemetry (traces and metrics to stdout)")
	pf.StringSlice("entities", nil, "PII entity types to detect (default: all supported)")
	pf.String("analyzer", config.DefaultBackend, "PII analyzer backend (regex, presidio)")
	pf.String("presidio-url", config.DefaultPresidioURL, "Presidio Analyzer base URL")
	pf.String("patterns", "", "extra recognizer YAML layered over the built-in patterns")
	pf.String("cascade", "", "pigo face cascade file (default: bundled facefinder)")

	_ = a.v.BindPFlag(config.KeyPIIEntities, pf.Lookup("entities"))
	_ = a.v.BindPFlag(config.KeyAnalyzerBackend, pf.Lookup("analyzer"))
	_ = a.v.BindPFlag(config.KeyAnalyzerPresidioURL, pf.Lookup("presidio-url"))
	_ = a.v.BindPFlag(config.KeyAnalyzerPatternFile, pf.Lookup("patterns"))
	_ = a.v.BindPFlag(config.KeyFacesCascade, pf.Lookup("cascade"))

	root.AddCommand(
		newPDFCmd(a),
		newTextCmd(a),
		newImageCmd(a),
		newEntitiesCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root, a
}

// readConfigFile loads --config, or privacyshield.yaml from the current
// directory or ~/.privacyshield when present.
func (a *app) readConfigFile() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", a.cfgFile, err)
		}
		return nil
	}
	a.v.SetConfigName("privacyshield")
	a.v.SetConfigType("yaml")
	a.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(filepath.Join(home, ".privacyshield"))
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	log.Debug().Str("file", a.v.ConfigFileUsed()).Msg("config_loaded")
	return nil
}

func (a *app) shutdown() error {
	if a.otelShutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.otelShutdown(ctx)
	a.otelShutdown = nil
	return err
}

func setupLogging(w io.Writer, logLevel, logFormat string, verbose bool) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	// Logs go to stderr so stdout stays clean for piping redacted output.
	if logFormat == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).
			With().
			Timestamp().
			Logger()
	}
}

// Execute runs the CLI and flushes OTel on exit.
func Execute() error {
	root, a := newRootCommand()
	err := root.Execute()
	_ = a.shutdown()
	return err
}
