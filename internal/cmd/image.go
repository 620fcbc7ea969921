package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newImageCmd(a *app) *cobra.Command {
	var (
		output  string
		stats   bool
		preview bool
	)
	cmd := &cobra.Command{
		Use:   "image <input>",
		Short: "Blur faces in a PNG or JPEG image",
		Long: `Blur every detected face and write the image as JPEG to --output, or
to blurred_<name>.jpg in the configured output directory.

--stats prints the detected faces as JSON instead; --preview frames
them in green without blurring.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, span := tracer.Start(cmd.Context(), "cmd.image")
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
			if !kind.IsImage() {
				return fmt.Errorf("%s is not a PNG or JPEG image (detected %s)", in, kind)
			}
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			b, err := buildBlurrer(cfg)
			if err != nil {
				return err
			}

			if stats {
				s, err := b.Stats(data)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}

			prefix, result := "blurred_", []byte(nil)
			if preview {
				prefix, result = "preview_", b.Preview(data)
			} else {
				result = b.Blur(ctx, data)
			}
			out := outputPath(output, cfg.OutputDir, prefix+stem(in)+".jpg")
			if err := os.WriteFile(out, result, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			log.Info().Str("output", out).Bool("preview", preview).Msg("image_written")
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	cmd.Flags().BoolVar(&stats, "stats", false, "print face detection statistics as JSON")
	cmd.Flags().BoolVar(&preview, "preview", false, "frame detected faces instead of blurring them")
	return cmd
}
