package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/internal/testutil/pgtest"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/ytid"
)

const (
	chanA = ytid.ChannelID("uAXFkgsw1L7xaCfnd5JJOw")
	vidA  = ytid.VideoID("dQw4w9WgXcQ")
	vidB  = ytid.VideoID("9bZkp7q19f0")
)

// videoN returns a distinct valid video ID.
func videoN(n int) ytid.VideoID {
	return ytid.VideoID(fmt.Sprintf("vid%07dA", n))
}

func TestChannelRepo_UpsertIdempotent(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	repo := NewChannelRepo()

	first, err := repo.Upsert(ctx, pool, []ytid.ChannelID{chanA, chanA})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := repo.Upsert(ctx, pool, []ytid.ChannelID{chanA})
	require.NoError(t, err)
	assert.Equal(t, first[chanA], second[chanA], "surrogate key is stable")

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM channels`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestVideoRepo_NullNeverErasesChannel(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()

	chans, err := NewChannelRepo().Upsert(ctx, pool, []ytid.ChannelID{chanA})
	require.NoError(t, err)
	ref := chans[chanA]

	videos := NewVideoRepo()
	_, err = videos.Upsert(ctx, pool, []VideoRow{{VideoID: vidA, ChannelRef: &ref}})
	require.NoError(t, err)
	_, err = videos.Upsert(ctx, pool, []VideoRow{{VideoID: vidA}})
	require.NoError(t, err)

	var got *int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT channel_id FROM videos WHERE video_id = $1`, string(vidA)).Scan(&got))
	require.NotNil(t, got)
	assert.Equal(t, ref, *got)
}

func TestVideoRepo_LaterSubmissionFillsChannel(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	videos := NewVideoRepo()

	keys, err := videos.Upsert(ctx, pool, []VideoRow{{VideoID: vidB}})
	require.NoError(t, err)

	chans, err := NewChannelRepo().Upsert(ctx, pool, []ytid.ChannelID{chanA})
	require.NoError(t, err)
	ref := chans[chanA]

	again, err := videos.Upsert(ctx, pool, []VideoRow{{VideoID: vidB, ChannelRef: &ref}})
	require.NoError(t, err)
	assert.Equal(t, keys[vidB], again[vidB])

	var got *int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT channel_id FROM videos WHERE video_id = $1`, string(vidB)).Scan(&got))
	require.NotNil(t, got)
	assert.Equal(t, ref, *got)
}

func TestFormatRepo_Upsert(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	repo := NewFormatRepo()

	got, err := repo.Upsert(ctx, pool, []string{"137+140", "137+140", "", "22"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	again, err := repo.Upsert(ctx, pool, []string{"22"})
	require.NoError(t, err)
	assert.Equal(t, got["22"], again["22"])
}

func TestContributionRepo_AddIsNoOpOnReplay(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	alice := pgtest.Contributor(t, pool, "alice", 1, true)

	keys, err := NewVideoRepo().Upsert(ctx, pool, []VideoRow{{VideoID: vidA}})
	require.NoError(t, err)
	size := int64(1024)
	edges := []model.VideoEdge{{VideoID: keys[vidA], Filesize: &size}}

	repo := NewContributionRepo()
	n, err := repo.AddVideoContributions(ctx, pool, alice, edges)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.AddVideoContributions(ctx, pool, alice, edges)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestContributionRepo_RemoveIsSelfScoped(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	alice := pgtest.Contributor(t, pool, "alice", 1, true)
	bob := pgtest.Contributor(t, pool, "bob", 2, true)

	keys, err := NewVideoRepo().Upsert(ctx, pool, []VideoRow{{VideoID: vidA}})
	require.NoError(t, err)
	repo := NewContributionRepo()
	_, err = repo.AddVideoContributions(ctx, pool, alice, []model.VideoEdge{{VideoID: keys[vidA]}})
	require.NoError(t, err)

	removed, err := repo.RemoveVideoContribution(ctx, pool, vidA, bob)
	require.NoError(t, err)
	assert.False(t, removed, "bob cannot remove alice's edge")

	removed, err = repo.RemoveVideoContribution(ctx, pool, vidA, alice)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestContributionRepo_Purge(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	alice := pgtest.Contributor(t, pool, "alice", 1, true)
	bob := pgtest.Contributor(t, pool, "bob", 2, true)

	vkeys, err := NewVideoRepo().Upsert(ctx, pool, []VideoRow{{VideoID: vidA}, {VideoID: vidB}})
	require.NoError(t, err)
	ckeys, err := NewChannelRepo().Upsert(ctx, pool, []ytid.ChannelID{chanA})
	require.NoError(t, err)

	repo := NewContributionRepo()
	for _, who := range []int64{alice, bob} {
		_, err = repo.AddVideoContributions(ctx, pool, who, []model.VideoEdge{{VideoID: vkeys[vidA]}, {VideoID: vkeys[vidB]}})
		require.NoError(t, err)
		_, err = repo.AddChannelContributions(ctx, pool, who, []model.ChannelEdge{{ChannelID: ckeys[chanA]}})
		require.NoError(t, err)
	}

	var res model.PurgeResult
	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		var err error
		res, err = repo.PurgeContributor(ctx, tx, alice)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.VideoEdges)
	assert.Equal(t, int64(1), res.ChannelEdges)
	assert.ElementsMatch(t, []string{string(vidA), string(vidB)}, res.Videos)

	var remaining int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM video_contributions WHERE contributor_id = $1`, bob).Scan(&remaining))
	assert.Equal(t, 2, remaining, "other contributors keep their edges")

	var videos int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM videos`).Scan(&videos))
	assert.Equal(t, 2, videos, "shared entities are never deleted")
}

func TestTitleRepo_LatestWins(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	alice := pgtest.Contributor(t, pool, "alice", 1, true)

	keys, err := NewVideoRepo().Upsert(ctx, pool, []VideoRow{{VideoID: vidA}})
	require.NoError(t, err)
	titles := NewTitleRepo()

	// Separate transactions get separate timestamps.
	for _, title := range []string{"first", "second"} {
		err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			_, err := titles.AppendVideoTitles(ctx, tx, alice, []model.TitleRow{{TargetID: keys[vidA], Title: title}})
			return err
		})
		require.NoError(t, err)
	}

	_, summary, err := NewQueryRepo().VideoSummary(ctx, pool, vidA)
	require.NoError(t, err)
	require.NotNil(t, summary.Title)
	assert.Equal(t, "second", *summary.Title)

	var history int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM video_titles`).Scan(&history))
	assert.Equal(t, 2, history)
}

func TestQueryRepo_VisibilityAndPagination(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	visible := pgtest.Contributor(t, pool, "visible", 1, true)
	hidden := pgtest.Contributor(t, pool, "hidden", 2, false)

	ckeys, err := NewChannelRepo().Upsert(ctx, pool, []ytid.ChannelID{chanA})
	require.NoError(t, err)
	ref := ckeys[chanA]

	var rows []VideoRow
	for i := range 6 {
		rows = append(rows, VideoRow{VideoID: videoN(i), ChannelRef: &ref})
	}
	vkeys, err := NewVideoRepo().Upsert(ctx, pool, rows)
	require.NoError(t, err)

	ledger := NewContributionRepo()
	var visibleEdges []model.VideoEdge
	for i := range 5 {
		visibleEdges = append(visibleEdges, model.VideoEdge{VideoID: vkeys[videoN(i)]})
	}
	_, err = ledger.AddVideoContributions(ctx, pool, visible, visibleEdges)
	require.NoError(t, err)
	// video 5 is held only by the hidden contributor; video 0 by both.
	_, err = ledger.AddVideoContributions(ctx, pool, hidden, []model.VideoEdge{
		{VideoID: vkeys[videoN(5)]}, {VideoID: vkeys[videoN(0)]},
	})
	require.NoError(t, err)
	_, err = ledger.AddChannelContributions(ctx, pool, hidden, []model.ChannelEdge{{ChannelID: ref}})
	require.NoError(t, err)

	q := NewQueryRepo()

	page := model.NewPage(2, 0)
	got, err := q.ChannelVideos(ctx, pool, ref, page)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, string(videoN(0)), got[0].ID)
	assert.Equal(t, []model.ContributorRef{{Name: "visible", DiscordID: 1}}, got[0].Contributors)
	require.NotNil(t, page.NextOffset(len(got)))
	assert.Equal(t, 2, *page.NextOffset(len(got)))

	page = model.NewPage(2, 4)
	got, err = q.ChannelVideos(ctx, pool, ref, page)
	require.NoError(t, err)
	require.Len(t, got, 1, "the hidden-only video never takes a slot")
	assert.Nil(t, page.NextOffset(len(got)))

	maint, err := q.VisibleMaintainers(ctx, pool, ref)
	require.NoError(t, err)
	assert.Empty(t, maint)

	contribs, err := q.VisibleVideoContributions(ctx, pool, vkeys[videoN(5)])
	require.NoError(t, err)
	assert.Empty(t, contribs)

	mine, err := q.MyVideos(ctx, pool, hidden, model.NewPage(10, 0))
	require.NoError(t, err)
	assert.Len(t, mine, 2, "own listing ignores the visibility flag")

	myChannels, err := q.MyChannels(ctx, pool, hidden, model.NewPage(10, 0))
	require.NoError(t, err)
	require.Len(t, myChannels, 1)
	assert.Equal(t, string(chanA), myChannels[0].ChannelID)
}

func TestCredentialRepo_EnsureForContributorIsIdempotent(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	alice := pgtest.Contributor(t, pool, "alice", 1, true)
	repo := NewCredentialRepo()

	tok1 := fmt.Sprintf("%064d", 1)
	tok2 := fmt.Sprintf("%064d", 2)

	got, err := repo.EnsureForContributor(ctx, pool, "discord_user_1", tok1, alice, model.ContributorCaps)
	require.NoError(t, err)
	assert.Equal(t, tok1, got)

	got, err = repo.EnsureForContributor(ctx, pool, "discord_user_1", tok2, alice, model.ContributorCaps)
	require.NoError(t, err)
	assert.Equal(t, tok1, got, "existing credential is returned")

	p, err := repo.Resolve(ctx, pool, tok1)
	require.NoError(t, err)
	id, ok := p.Contributor()
	require.True(t, ok)
	assert.Equal(t, alice, id)
	assert.True(t, p.Caps.Has(model.ContributorCaps))

	_, err = repo.Resolve(ctx, pool, tok2)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestStatsRepo_CountsOnlyOptedIn(t *testing.T) {
	pool := pgtest.Pool(t)
	ctx := context.Background()
	open := pgtest.Contributor(t, pool, "open", 1, true)
	private := pgtest.Contributor(t, pool, "private", 2, false)

	keys, err := NewVideoRepo().Upsert(ctx, pool, []VideoRow{{VideoID: vidA}})
	require.NoError(t, err)
	size := int64(100)
	ledger := NewContributionRepo()
	for _, who := range []int64{open, private} {
		_, err := ledger.AddVideoContributions(ctx, pool, who, []model.VideoEdge{{VideoID: keys[vidA], Filesize: &size}})
		require.NoError(t, err)
	}

	s, err := NewStatsRepo().Compute(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Videos)
	assert.Equal(t, int64(1), s.Contributors)
	assert.Equal(t, int64(1), s.VideoContributions)
	assert.Equal(t, int64(100), s.TotalFilesize)
}
