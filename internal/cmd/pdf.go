package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/alzaheer/privacyshield/format"
	"github.com/alzaheer/privacyshield/internal/otel"
	"github.com/alzaheer/privacyshield/internal/server"
	"github.com/alzaheer/privacyshield/redact"
)

func newPDFCmd(a *app) *cobra.Command {
	var (
		output   string
		noRedact bool
		noBlur   bool
		label    string
	)
	cmd := &cobra.Command{
		Use:   "pdf <input.pdf>",
		Short: "De-identify a PDF document",
		Long: `Redact PII text and blur faces in the images of a PDF.

The result is written to --output, or to deidentified_<name>.pdf in the
configured output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, span := tracer.Start(ctx, "cmd.pdf")
			defer span.End()

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			in := args[0]
			kind, err := sniff(in)
			if err != nil {
				return err
			}
			if kind != format.PDF {
				return fmt.Errorf("%s is not a PDF document (detected %s)", in, kind)
			}

			opts := redactOptions(cfg)
			if noRedact {
				opts.RedactPII = false
			}
			if noBlur {
				opts.BlurFaces = false
			}
			if label != "" {
				opts.Label = label
			}
			p, err := buildPipeline(cfg)
			if err != nil {
				return err
			}

			out := outputPath(output, cfg.OutputDir, server.OutputName(in))
			report, err := p.assembler.DeidentifyFile(ctx, in, out, opts)
			if err != nil {
				return fmt.Errorf("de-identifying %s: %w", in, err)
			}
			for _, f := range report.Failures() {
				log.Warn().Err(f).Str("run_id", report.RunID).Msg("page_left_unredacted")
			}
			if report.AnalyzerErr != nil {
				log.Warn().Err(report.AnalyzerErr).Msg("analyzer_failed_no_text_redacted")
			}
			log.Info().
				Str("run_id", report.RunID).
				Str("output", out).
				Func(otel.LogTraceFields(ctx)).
				Msg("pdf_deidentified")
			printReport(cmd.OutOrStdout(), out, report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	cmd.Flags().BoolVar(&noRedact, "no-redact", false, "leave text untouched")
	cmd.Flags().BoolVar(&noBlur, "no-blur", false, "leave images untouched")
	cmd.Flags().StringVar(&label, "label", "", "text drawn over redacted regions")
	return cmd
}

func printReport(w io.Writer, out string, r *redact.Report) {
	var skipped, failed int
	for _, p := range r.Pages {
		skipped += p.Images.Skipped
		failed += p.Images.Failed
	}
	fmt.Fprintf(w, "Wrote %s\n", out)
	fmt.Fprintf(w, "  run:      %s\n", r.RunID)
	fmt.Fprintf(w, "  pages:    %d\n", len(r.Pages))
	fmt.Fprintf(w, "  regions:  %d\n", r.Regions())
	fmt.Fprintf(w, "  images:   %d replaced, %d skipped, %d failed\n", r.ImagesReplaced(), skipped, failed)
	fmt.Fprintf(w, "  dropped:  %d spans\n", len(r.DroppedSpans))
	fmt.Fprintf(w, "  failures: %d\n", len(r.Failures()))
}
