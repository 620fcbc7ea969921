package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alzaheer/privacyshield/analyzer"
	"github.com/alzaheer/privacyshield/format"
	"github.com/alzaheer/privacyshield/internal/server"
	"github.com/alzaheer/privacyshield/model"
)

func newTextCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "text [file]",
		Short: "Replace PII in plain text with <ENTITY_TYPE> placeholders",
		Long: `Read text from a file, or from stdin when no file or "-" is given, and
print it with every detected entity replaced by its type in angle brackets.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, span := tracer.Start(cmd.Context(), "cmd.text")
			defer span.End()

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			input, err := readTextInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			an, err := buildAnalyzer(cfg)
			if err != nil {
				return err
			}
			redacted, spans, err := analyzer.RedactText(ctx, an, input, cfg.PIIEntities)
			if err != nil {
				return fmt.Errorf("analyzing text: %w", err)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				if spans == nil {
					spans = []model.PIISpan{}
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(server.TextResponse{Text: redacted, Spans: spans})
			}
			_, err = io.WriteString(w, redacted)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the redacted text and the detected entities as JSON")
	return cmd
}

func readTextInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	kind, err := sniff(args[0])
	if err != nil {
		return "", err
	}
	if kind != format.Text && kind != format.Unknown {
		return "", fmt.Errorf("%s is a %s file, not text", args[0], kind)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}
