package service

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/metrics"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/internal/repository"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/ytid"
)

var tracer = otel.Tracer("github.com/DYArchive/distributed-youtube-tracker/internal/service")

// Pool is the storage handle services run against. *pgxpool.Pool satisfies it.
type Pool interface {
	db.Beginner
	db.Querier
}

// PlannedChannel is a canonical, merged channel ready to write.
type PlannedChannel struct {
	ID    ytid.ChannelID
	Title *string
	Note  *string
}

// PlannedVideo is a canonical, merged video ready to write.
type PlannedVideo struct {
	ID           ytid.VideoID
	ChannelID    *ytid.ChannelID
	Title        *string
	ChannelTitle *string
	Filesize     *int64
	Format       *string
}

// Rejection is a record dropped for failing validation.
type Rejection struct {
	Kind  string
	Input string
	Err   error
}

// Plan is the write set derived from one batch.
type Plan struct {
	Mode     model.Mode
	Channels []PlannedChannel
	Videos   []PlannedVideo
	Counts   model.Counts
	Rejected []Rejection
}

// BuildPlan canonicalizes and merges a batch without touching storage.
//
// The skip set holds the IDs of excluded channel records plus the unset
// channel sentinel when a channel record names it. Videos whose channel is in
// the set are dropped. A video with no channel at all is never dropped by
// skip propagation. Duplicate records merge with later non-null fields winning.
func BuildPlan(batch model.Batch, mode model.Mode) *Plan {
	p := &Plan{Mode: mode}
	p.Counts.MissingFieldCounts = missingFieldCounts(batch, mode)

	skip := make(map[string]struct{})
	channelIdx := make(map[ytid.ChannelID]int)
	var pending []PlannedChannel

	for _, rec := range batch.Channels {
		raw := strings.TrimSpace(rec.ID)
		if raw == model.UnsetChannelID {
			skip[model.UnsetChannelID] = struct{}{}
			p.Counts.SkippedChannels++
			continue
		}
		if raw == "" {
			p.Counts.SkippedChannels++
			continue
		}
		id, err := ytid.Channel(raw)
		if rec.Exclude {
			if err == nil {
				skip[string(id)] = struct{}{}
			}
			p.Counts.SkippedChannels++
			continue
		}
		if err != nil {
			p.reject("channel", raw, err)
			continue
		}
		pending = mergeChannel(pending, channelIdx, PlannedChannel{
			ID:    id,
			Title: nonBlank(rec.Title),
			Note:  nonBlank(rec.Note),
		})
	}

	if mode == model.ModeVideosAndChannels {
		videoIdx := make(map[ytid.VideoID]int)
		for _, rec := range batch.Videos {
			v, ok := p.planVideo(rec, skip)
			if !ok {
				continue
			}
			if i, seen := videoIdx[v.ID]; seen {
				p.Videos[i] = mergeVideo(p.Videos[i], v)
			} else {
				videoIdx[v.ID] = len(p.Videos)
				p.Videos = append(p.Videos, v)
			}
		}
		for _, v := range p.Videos {
			if v.ChannelID != nil {
				pending = mergeChannel(pending, channelIdx, PlannedChannel{ID: *v.ChannelID, Title: v.ChannelTitle})
			}
		}
	}

	// An exclusion anywhere in the batch wins over an inclusion of the same channel.
	for _, c := range pending {
		if _, skipped := skip[string(c.ID)]; skipped {
			continue
		}
		p.Channels = append(p.Channels, c)
	}
	return p
}

func (p *Plan) planVideo(rec model.VideoRecord, skip map[string]struct{}) (PlannedVideo, bool) {
	raw := strings.TrimSpace(rec.ID)
	id, err := ytid.Video(raw)
	if err != nil {
		p.reject("video", raw, err)
		return PlannedVideo{}, false
	}
	if rec.Exclude {
		p.Counts.SkippedVideos++
		return PlannedVideo{}, false
	}

	v := PlannedVideo{
		ID:           id,
		Title:        nonBlank(rec.Title),
		ChannelTitle: nonBlank(rec.ChannelTitle),
		Filesize:     rec.Filesize,
	}
	if f := nonBlank(rec.Format); f != nil {
		truncated := repository.TruncateFormat(*f)
		v.Format = &truncated
	}

	if ch := nonBlank(rec.ChannelID); ch != nil {
		if *ch == model.UnsetChannelID {
			if _, skipped := skip[model.UnsetChannelID]; skipped {
				p.Counts.SkippedVideos++
				return PlannedVideo{}, false
			}
			v.ChannelTitle = nil
			return v, true
		}
		cid, err := ytid.Channel(*ch)
		if err != nil {
			p.reject("video", raw, err)
			return PlannedVideo{}, false
		}
		if _, skipped := skip[string(cid)]; skipped {
			p.Counts.SkippedVideos++
			return PlannedVideo{}, false
		}
		v.ChannelID = &cid
	} else {
		v.ChannelTitle = nil
	}
	return v, true
}

func (p *Plan) reject(kind, input string, err error) {
	p.Counts.InvalidRecords++
	p.Rejected = append(p.Rejected, Rejection{Kind: kind, Input: input, Err: err})
}

func mergeChannel(list []PlannedChannel, idx map[ytid.ChannelID]int, c PlannedChannel) []PlannedChannel {
	i, seen := idx[c.ID]
	if !seen {
		idx[c.ID] = len(list)
		return append(list, c)
	}
	if c.Title != nil {
		list[i].Title = c.Title
	}
	if c.Note != nil {
		list[i].Note = c.Note
	}
	return list
}

func mergeVideo(prev, next PlannedVideo) PlannedVideo {
	if next.ChannelID != nil {
		prev.ChannelID = next.ChannelID
	}
	if next.Title != nil {
		prev.Title = next.Title
	}
	if next.ChannelTitle != nil {
		prev.ChannelTitle = next.ChannelTitle
	}
	if next.Filesize != nil {
		prev.Filesize = next.Filesize
	}
	if next.Format != nil {
		prev.Format = next.Format
	}
	return prev
}

// missingFieldCounts tallies absent optional fields for the records the mode
// writes. Zero counts are omitted; nil means nothing was missing.
func missingFieldCounts(batch model.Batch, mode model.Mode) map[string]int {
	counts := make(map[string]int)
	bump := func(field string, present bool) {
		if !present {
			counts[field]++
		}
	}

	switch mode {
	case model.ModeChannelsOnly:
		for _, c := range batch.Channels {
			bump("title", nonBlank(c.Title) != nil)
			bump("note", nonBlank(c.Note) != nil)
		}
	case model.ModeVideosAndChannels:
		for _, v := range batch.Videos {
			ch := nonBlank(v.ChannelID)
			bump("title", nonBlank(v.Title) != nil)
			bump("channel_id", ch != nil && *ch != model.UnsetChannelID)
			bump("channel_title", nonBlank(v.ChannelTitle) != nil)
			bump("filesize", v.Filesize != nil)
			bump("format_id", nonBlank(v.Format) != nil)
		}
	}

	if len(counts) == 0 {
		return nil
	}
	return counts
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// Reconciler applies plans to the ledger in bounded transactions.
type Reconciler struct {
	pool      Pool
	store     *repository.Store
	chunkSize int
}

func NewReconciler(pool Pool, store *repository.Store, chunkSize int) *Reconciler {
	if chunkSize < 1 || chunkSize > repository.MaxStatementRows {
		chunkSize = repository.MaxStatementRows
	}
	return &Reconciler{pool: pool, store: store, chunkSize: chunkSize}
}

// Reconcile writes batch on behalf of contributorID. Channel chunks commit
// before video chunks. A batch that fits in one chunk of each is applied in
// a single transaction. On a storage failure the counts of already committed
// chunks are returned with the error.
func (r *Reconciler) Reconcile(ctx context.Context, batch model.Batch, mode model.Mode, contributorID int64) (model.Counts, error) {
	return r.reconcile(ctx, batch, mode, contributorID, false)
}

// ReconcileAtomic writes batch in one transaction whatever the chunk size.
// Either every record is applied or none is.
func (r *Reconciler) ReconcileAtomic(ctx context.Context, batch model.Batch, mode model.Mode, contributorID int64) (model.Counts, error) {
	return r.reconcile(ctx, batch, mode, contributorID, true)
}

func (r *Reconciler) reconcile(ctx context.Context, batch model.Batch, mode model.Mode, contributorID int64, atomic bool) (model.Counts, error) {
	ctx, span := tracer.Start(ctx, "reconcile", trace.WithAttributes(
		attribute.String("mode", mode.String()),
		attribute.Int("channels.in", len(batch.Channels)),
		attribute.Int("videos.in", len(batch.Videos)),
		attribute.Bool("atomic", atomic),
	))
	defer span.End()
	start := time.Now()

	plan := BuildPlan(batch, mode)
	for _, rej := range plan.Rejected {
		log.Warn().Str("kind", rej.Kind).Str("input", rej.Input).Err(rej.Err).Msg("reconcile: skipping invalid record")
	}

	counts := plan.Counts
	var err error
	if atomic || (len(plan.Channels) <= r.chunkSize && len(plan.Videos) <= r.chunkSize) {
		err = r.applyAtomic(ctx, plan, contributorID, &counts)
	} else {
		err = r.applyChunked(ctx, plan, contributorID, &counts)
	}

	span.SetAttributes(
		attribute.Int("channels.upserted", counts.ChannelsUpserted),
		attribute.Int("videos.upserted", counts.VideosUpserted),
		attribute.Int64("edges.inserted", counts.EdgesInserted),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		log.Error().Err(err).Int64("contributor", contributorID).Str("mode", mode.String()).Msg("reconcile: aborted")
		return counts, storageErr(err)
	}

	metrics.ReconcileDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
	log.Info().
		Int64("contributor", contributorID).
		Str("mode", mode.String()).
		Int("channels", counts.ChannelsUpserted).
		Int("videos", counts.VideosUpserted).
		Int64("edges", counts.EdgesInserted).
		Int("skipped_channels", counts.SkippedChannels).
		Int("skipped_videos", counts.SkippedVideos).
		Int("invalid", counts.InvalidRecords).
		Dur("took", time.Since(start)).
		Msg("reconcile: done")
	return counts, nil
}

func (r *Reconciler) applyAtomic(ctx context.Context, plan *Plan, contributorID int64, counts *model.Counts) error {
	var c model.Counts
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		c = model.Counts{}
		for _, chunk := range repository.Chunk(plan.Channels, repository.MaxStatementRows) {
			if err := r.applyChannels(ctx, tx, plan.Mode, chunk, contributorID, &c); err != nil {
				return err
			}
		}
		for _, chunk := range repository.Chunk(plan.Videos, repository.MaxStatementRows) {
			if err := r.applyVideos(ctx, tx, chunk, contributorID, &c); err != nil {
				return err
			}
		}
		return r.touch(ctx, tx, plan, contributorID)
	})
	if err != nil {
		return err
	}
	r.commit(plan.Mode, c, counts)
	return nil
}

func (r *Reconciler) applyChunked(ctx context.Context, plan *Plan, contributorID int64, counts *model.Counts) error {
	chCtx, chSpan := tracer.Start(ctx, "reconcile.channels")
	for _, chunk := range repository.Chunk(plan.Channels, r.chunkSize) {
		var c model.Counts
		err := db.WithTx(chCtx, r.pool, func(tx pgx.Tx) error {
			c = model.Counts{}
			return r.applyChannels(chCtx, tx, plan.Mode, chunk, contributorID, &c)
		})
		if err != nil {
			chSpan.RecordError(err)
			chSpan.End()
			return err
		}
		r.commit(plan.Mode, c, counts)
	}
	chSpan.End()

	vCtx, vSpan := tracer.Start(ctx, "reconcile.videos")
	defer vSpan.End()
	for _, chunk := range repository.Chunk(plan.Videos, r.chunkSize) {
		var c model.Counts
		err := db.WithTx(vCtx, r.pool, func(tx pgx.Tx) error {
			c = model.Counts{}
			return r.applyVideos(vCtx, tx, chunk, contributorID, &c)
		})
		if err != nil {
			vSpan.RecordError(err)
			return err
		}
		r.commit(plan.Mode, c, counts)
	}

	// Every chunk is committed; a failed timestamp does not undo them.
	if err := r.touch(ctx, r.pool, plan, contributorID); err != nil {
		log.Warn().Err(err).Int64("contributor", contributorID).Msg("reconcile: last updated not stamped")
	}
	return nil
}

func (r *Reconciler) touch(ctx context.Context, q db.Querier, plan *Plan, contributorID int64) error {
	if len(plan.Channels) == 0 && len(plan.Videos) == 0 {
		return nil
	}
	return r.store.Contributors.TouchLastUpdated(ctx, q, contributorID, plan.Mode)
}

// commit folds a committed chunk's counts into the running total.
func (r *Reconciler) commit(mode model.Mode, c model.Counts, total *model.Counts) {
	total.Add(c)
	if c.EdgesInserted == 0 {
		return
	}
	kind := "video"
	if mode == model.ModeChannelsOnly {
		kind = "channel"
	}
	metrics.ContributionsInserted.WithLabelValues(kind).Add(float64(c.EdgesInserted))
}

func (r *Reconciler) applyChannels(ctx context.Context, q db.Querier, mode model.Mode, chunk []PlannedChannel, contributorID int64, c *model.Counts) error {
	if len(chunk) == 0 {
		return nil
	}
	ids := make([]ytid.ChannelID, len(chunk))
	for i, ch := range chunk {
		ids[i] = ch.ID
	}
	keys, err := r.store.Channels.Upsert(ctx, q, ids)
	if err != nil {
		return err
	}

	var titles []model.TitleRow
	var edges []model.ChannelEdge
	for _, ch := range chunk {
		key := keys[ch.ID]
		if ch.Title != nil {
			titles = append(titles, model.TitleRow{TargetID: key, Title: *ch.Title})
		}
		if mode == model.ModeChannelsOnly {
			edges = append(edges, model.ChannelEdge{ChannelID: key, Note: ch.Note})
		}
	}

	if _, err := r.store.Titles.AppendChannelTitles(ctx, q, contributorID, titles); err != nil {
		return err
	}
	inserted, err := r.store.Contributions.AddChannelContributions(ctx, q, contributorID, edges)
	if err != nil {
		return err
	}
	if err := repository.NotifyLedgerChanges(ctx, q, repository.ChannelKeys(ytid.ChannelStrings(ids)...)); err != nil {
		return err
	}

	c.ChannelsUpserted += len(chunk)
	c.EdgesInserted += inserted
	return nil
}

func (r *Reconciler) applyVideos(ctx context.Context, q db.Querier, chunk []PlannedVideo, contributorID int64, c *model.Counts) error {
	if len(chunk) == 0 {
		return nil
	}

	var channelIDs []ytid.ChannelID
	var formats []string
	for _, v := range chunk {
		if v.ChannelID != nil {
			channelIDs = append(channelIDs, *v.ChannelID)
		}
		if v.Format != nil {
			formats = append(formats, *v.Format)
		}
	}

	channelKeys, err := r.store.Channels.Upsert(ctx, q, channelIDs)
	if err != nil {
		return err
	}

	rows := make([]repository.VideoRow, len(chunk))
	videoIDs := make([]ytid.VideoID, len(chunk))
	for i, v := range chunk {
		rows[i] = repository.VideoRow{VideoID: v.ID}
		if v.ChannelID != nil {
			key := channelKeys[*v.ChannelID]
			rows[i].ChannelRef = &key
		}
		videoIDs[i] = v.ID
	}
	videoKeys, err := r.store.Videos.Upsert(ctx, q, rows)
	if err != nil {
		return err
	}

	formatKeys, err := r.store.Formats.Upsert(ctx, q, formats)
	if err != nil {
		return err
	}

	edges := make([]model.VideoEdge, len(chunk))
	var titles []model.TitleRow
	for i, v := range chunk {
		edges[i] = model.VideoEdge{VideoID: videoKeys[v.ID], Filesize: v.Filesize}
		if v.Format != nil {
			key := formatKeys[*v.Format]
			edges[i].FormatID = &key
		}
		if v.Title != nil {
			titles = append(titles, model.TitleRow{TargetID: videoKeys[v.ID], Title: *v.Title})
		}
	}

	inserted, err := r.store.Contributions.AddVideoContributions(ctx, q, contributorID, edges)
	if err != nil {
		return err
	}
	if _, err := r.store.Titles.AppendVideoTitles(ctx, q, contributorID, titles); err != nil {
		return err
	}

	keys := repository.VideoKeys(ytid.VideoStrings(videoIDs)...)
	keys = append(keys, repository.ChannelKeys(ytid.ChannelStrings(channelIDs)...)...)
	if err := repository.NotifyLedgerChanges(ctx, q, keys); err != nil {
		return err
	}

	c.VideosUpserted += len(chunk)
	c.EdgesInserted += inserted
	return nil
}
