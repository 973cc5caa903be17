package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/DYArchive/distributed-youtube-tracker/internal/catalog"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/internal/repository"
	"github.com/DYArchive/distributed-youtube-tracker/internal/service"
)

type importOptions struct {
	inFile    string
	discordID int64
	channels  bool
	archive   bool
}

func importCommand() *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Reconcile a catalog file into the ledger for one contributor",
		Long: "Reads a sectioned TSV catalog (or, with --archive, a plain download archive) " +
			"and records it for the contributor. Re-running the same file is safe.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return importRun(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.inFile, "in-file", "i", "", "catalog file to import")
	cmd.Flags().Int64VarP(&opts.discordID, "discord-id", "d", 0, "discord id of the contributor")
	cmd.Flags().BoolVar(&opts.channels, "channels", false, "record every catalog channel as maintained")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "input is a download archive, not a TSV catalog")
	_ = cmd.MarkFlagRequired("in-file")
	_ = cmd.MarkFlagRequired("discord-id")
	cmd.MarkFlagsMutuallyExclusive("channels", "archive")
	return cmd
}

func importRun(ctx context.Context, opts importOptions) error {
	f, err := os.Open(opts.inFile)
	if err != nil {
		return err
	}
	defer f.Close()

	read := catalog.ReadTSV
	if opts.archive {
		read = catalog.ReadArchive
	}
	batch, err := read(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", opts.inFile, err)
	}

	mode := model.ModeVideosAndChannels
	if opts.channels {
		mode = model.ModeChannelsOnly
	}

	pool, err := openPool(ctx)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	store := repository.NewStore()
	contributor, err := service.NewContributorService(pool, store).FindByDiscordID(ctx, opts.discordID)
	if err != nil {
		return fmt.Errorf("contributor %d: %w", opts.discordID, err)
	}

	log.Info().
		Str("file", opts.inFile).
		Int64("contributor", contributor.ID).
		Stringer("mode", mode).
		Int("channels", len(batch.Channels)).
		Int("videos", len(batch.Videos)).
		Msg("importing catalog")

	counts, err := service.NewReconciler(pool, store, cfg.ChunkSize).Reconcile(ctx, batch, mode, contributor.ID)
	if err != nil {
		return err
	}

	log.Info().
		Int("channels_upserted", counts.ChannelsUpserted).
		Int("videos_upserted", counts.VideosUpserted).
		Int64("contributions_inserted", counts.EdgesInserted).
		Int("skipped_channels", counts.SkippedChannels).
		Int("skipped_videos", counts.SkippedVideos).
		Int("invalid_records", counts.InvalidRecords).
		Interface("missing_field_counts", counts.MissingFieldCounts).
		Msg("import finished")
	return nil
}
