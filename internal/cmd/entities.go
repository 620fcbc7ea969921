package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEntitiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the PII entity types the configured analyzer detects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, span := tracer.Start(cmd.Context(), "cmd.entities")
			defer span.End()

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			an, err := buildAnalyzer(cfg)
			if err != nil {
				return err
			}
			entities, err := an.SupportedEntities(ctx)
			if err != nil {
				return fmt.Errorf("listing entities: %w", err)
			}
			for _, e := range entities {
				fmt.Fprintln(cmd.OutOrStdout(), e)
			}
			return nil
		},
	}
}
