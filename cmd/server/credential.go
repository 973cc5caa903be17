package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/internal/repository"
	"github.com/DYArchive/distributed-youtube-tracker/internal/service"
)

func credentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage API credentials",
	}
	cmd.AddCommand(credentialCreateCommand())
	return cmd
}

func credentialCreateCommand() *cobra.Command {
	var (
		application string
		caps        []string
		discordID   int64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a credential and print it",
		Long: "Creates or rotates the credential for an application. Capabilities: " +
			"query_video, query_channel_maintainers, query_channel_videos, submit_contributions, " +
			"create_contributor, issue_credentials, query_stats, or all.",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := model.ParseCapabilities(caps)
			if err != nil {
				return err
			}
			if parsed == 0 {
				return fmt.Errorf("at least one capability is required")
			}
			token, err := credentialCreateRun(cmd.Context(), application, parsed, discordID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&application, "application", "", "application name the credential belongs to")
	cmd.Flags().StringSliceVar(&caps, "caps", nil, "comma separated capabilities")
	cmd.Flags().Int64Var(&discordID, "discord-id", 0, "bind the credential to this contributor")
	_ = cmd.MarkFlagRequired("application")
	_ = cmd.MarkFlagRequired("caps")
	return cmd
}

func credentialCreateRun(ctx context.Context, application string, caps model.Capability, discordID int64) (string, error) {
	pool, err := openPool(ctx)
	if err != nil {
		return "", fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	store := repository.NewStore()
	var contributorID *int64
	if discordID != 0 {
		c, err := service.NewContributorService(pool, store).FindByDiscordID(ctx, discordID)
		if err != nil {
			return "", fmt.Errorf("contributor %d: %w", discordID, err)
		}
		contributorID = &c.ID
	}
	return service.NewAuthService(pool, store).CreateCredential(ctx, application, contributorID, caps)
}
