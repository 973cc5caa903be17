package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
)

func schemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Database schema commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Create any missing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := openPool(cmd.Context())
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			if err := db.InstallSchema(cmd.Context(), pool); err != nil {
				return err
			}
			log.Info().Msg("schema installed")
			return nil
		},
	})
	return cmd
}
