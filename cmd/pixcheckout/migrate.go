package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the storage schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.loadWithLogger()
			if err != nil {
				return err
			}
			st, err := openStores(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.close()
			logger.Info().Str("driver", cfg.Storage.Driver).Msg("schema up to date")
			return nil
		},
	}
}
