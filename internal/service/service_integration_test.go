package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/internal/repository"
	"github.com/DYArchive/distributed-youtube-tracker/internal/testutil/pgtest"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
)

type fixture struct {
	pool       *pgxpool.Pool
	store      *repository.Store
	reconciler *Reconciler
	queries    *QueryService
	ledger     *LedgerService
	auth       *AuthService
	people     *ContributorService
}

func newFixture(t *testing.T, chunkSize int) *fixture {
	t.Helper()
	pool := pgtest.Pool(t)
	store := repository.NewStore()
	cache := NewCacheServiceWithClient(nil)
	return &fixture{
		pool:       pool,
		store:      store,
		reconciler: NewReconciler(pool, store, chunkSize),
		queries:    NewQueryService(pool, store, cache),
		ledger:     NewLedgerService(pool, store, cache),
		auth:       NewAuthService(pool, store),
		people:     NewContributorService(pool, store),
	}
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func videoN(n int) string {
	return fmt.Sprintf("vid%07dA", n)
}

func TestReconcile_SkipPropagationWritesNothingForSkippedVideos(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	alice := pgtest.Contributor(t, f.pool, "alice", 1, true)

	counts, err := f.reconciler.Reconcile(ctx, model.Batch{
		Channels: []model.ChannelRecord{{ID: chanC, Exclude: true}},
		Videos: []model.VideoRecord{
			{ID: vidX, ChannelID: str(chanC), Title: str("one")},
			{ID: vidY, ChannelID: str(chanC), Title: str("two")},
		},
	}, model.ModeVideosAndChannels, alice)
	require.NoError(t, err)

	assert.Equal(t, 2, counts.SkippedVideos)
	assert.Equal(t, 1, counts.SkippedChannels)
	assert.Zero(t, counts.VideosUpserted)
	assert.Zero(t, f.count(t, "videos"))
	assert.Zero(t, f.count(t, "video_contributions"))
	assert.Zero(t, f.count(t, "channels"))
}

func TestReconcile_IdempotentAndNeverErases(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	alice := pgtest.Contributor(t, f.pool, "alice", 1, true)

	full := model.Batch{Videos: []model.VideoRecord{{
		ID: vidX, Title: str("A"), ChannelID: str(chanC), ChannelTitle: str("Chan"),
		Filesize: i64(42), Format: str("22"),
	}}}
	for range 3 {
		_, err := f.reconciler.Reconcile(ctx, full, model.ModeVideosAndChannels, alice)
		require.NoError(t, err)
	}
	sparse := model.Batch{Videos: []model.VideoRecord{{ID: vidX}}}
	counts, err := f.reconciler.Reconcile(ctx, sparse, model.ModeVideosAndChannels, alice)
	require.NoError(t, err)
	assert.Zero(t, counts.EdgesInserted, "replayed edge is a no-op")

	got, err := f.queries.Video(ctx, vidX)
	require.NoError(t, err)
	require.NotNil(t, got.Video.Title)
	assert.Equal(t, "A", *got.Video.Title)
	require.NotNil(t, got.Video.ChannelID)
	assert.Equal(t, chanC, *got.Video.ChannelID)
	require.Len(t, got.Contributions, 1)
	assert.Equal(t, int64(42), *got.Contributions[0].Filesize)
	assert.Equal(t, "22", *got.Contributions[0].FormatString)

	assert.Equal(t, 1, f.count(t, "videos"))
	assert.Equal(t, 1, f.count(t, "video_contributions"))

	var touched bool
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT videos_last_updated IS NOT NULL FROM contributors WHERE id = $1`, alice).Scan(&touched))
	assert.True(t, touched)
}

func TestReconcile_Commutative(t *testing.T) {
	s1 := model.Batch{Videos: []model.VideoRecord{
		{ID: vidX, Title: str("X"), ChannelID: str(chanC)},
	}}
	s2 := model.Batch{Videos: []model.VideoRecord{
		{ID: vidX, Filesize: i64(7)},
		{ID: vidY, ChannelID: str(chanC), ChannelTitle: str("Chan")},
	}}

	snapshot := func(order ...model.Batch) []any {
		f := newFixture(t, 500)
		ctx := context.Background()
		alice := pgtest.Contributor(t, f.pool, "alice", 1, true)
		bob := pgtest.Contributor(t, f.pool, "bob", 2, true)
		who := []int64{alice, bob}
		for i, b := range order {
			_, err := f.reconciler.Reconcile(ctx, b, model.ModeVideosAndChannels, who[i])
			require.NoError(t, err)
		}

		var out []any
		for _, id := range []string{vidX, vidY} {
			v, err := f.queries.Video(ctx, id)
			require.NoError(t, err)
			out = append(out, v.Video, len(v.Contributions))
		}
		cv, err := f.queries.ChannelVideos(ctx, chanC, model.NewPage(10, 0))
		require.NoError(t, err)
		out = append(out, cv.Count, cv.Channel)
		return out
	}

	assert.Equal(t, snapshot(s1, s2), snapshot(s2, s1))
}

func TestReconcile_ChunkedMatchesAtomic(t *testing.T) {
	var batch model.Batch
	for i := range 7 {
		batch.Videos = append(batch.Videos, model.VideoRecord{ID: videoN(i), ChannelID: str(chanC), Format: str(fmt.Sprintf("f%d", i%3))})
	}

	run := func(chunk int) model.Counts {
		f := newFixture(t, chunk)
		alice := pgtest.Contributor(t, f.pool, "alice", 1, true)
		counts, err := f.reconciler.Reconcile(context.Background(), batch, model.ModeVideosAndChannels, alice)
		require.NoError(t, err)
		assert.Equal(t, 7, f.count(t, "videos"))
		assert.Equal(t, 3, f.count(t, "formats"))
		return counts
	}

	chunked, atomic := run(2), run(500)
	assert.Equal(t, atomic.VideosUpserted, chunked.VideosUpserted)
	assert.Equal(t, atomic.EdgesInserted, chunked.EdgesInserted)
	assert.Equal(t, int64(7), chunked.EdgesInserted)
}

func TestQueryService_VisibilityAndPagination(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	visible := pgtest.Contributor(t, f.pool, "visible", 1, true)
	hidden := pgtest.Contributor(t, f.pool, "hidden", 2, false)

	var shared model.Batch
	for i := range 5 {
		shared.Videos = append(shared.Videos, model.VideoRecord{ID: videoN(i), ChannelID: str(chanC), Title: str(fmt.Sprint(i))})
	}
	_, err := f.reconciler.Reconcile(ctx, shared, model.ModeVideosAndChannels, visible)
	require.NoError(t, err)

	secret := model.Batch{Videos: []model.VideoRecord{{ID: videoN(9), ChannelID: str(chanC), Title: str("secret")}}}
	_, err = f.reconciler.Reconcile(ctx, secret, model.ModeVideosAndChannels, hidden)
	require.NoError(t, err)
	_, err = f.reconciler.Reconcile(ctx, model.Batch{Channels: []model.ChannelRecord{{ID: chanC, Note: str("hidden note")}}}, model.ModeChannelsOnly, hidden)
	require.NoError(t, err)

	page, err := f.queries.ChannelVideos(ctx, chanC, model.NewPage(2, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)
	require.NotNil(t, page.NextOffset)
	assert.Equal(t, 2, *page.NextOffset)

	page, err = f.queries.ChannelVideos(ctx, chanC, model.NewPage(2, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)
	assert.Nil(t, page.NextOffset)
	for _, v := range page.Videos {
		assert.NotEqual(t, videoN(9), v.ID)
	}

	maint, err := f.queries.ChannelMaintainers(ctx, chanC)
	require.NoError(t, err)
	assert.Empty(t, maint.Contributions)

	mine, err := f.queries.MyChannels(ctx, hidden, model.NewPage(10, 0))
	require.NoError(t, err)
	require.Len(t, mine.Channels, 1)
	assert.Equal(t, "hidden note", *mine.Channels[0].Note)

	myVideos, err := f.queries.MyVideos(ctx, hidden, model.NewPage(10, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, myVideos.Count)

	secretView, err := f.queries.Video(ctx, videoN(9))
	require.NoError(t, err)
	assert.Empty(t, secretView.Contributions)
}

func TestQueryService_ErrorsAreTyped(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()

	_, err := f.queries.Video(ctx, "garbage")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidIdentifier))

	_, err = f.queries.Video(ctx, vidX)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = f.queries.ChannelVideos(ctx, chanC, model.NewPage(10, 0))
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestLedgerService_RemovalIsSelfScoped(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	alice := pgtest.Contributor(t, f.pool, "alice", 1, true)
	bob := pgtest.Contributor(t, f.pool, "bob", 2, true)

	_, err := f.reconciler.Reconcile(ctx, model.Batch{Videos: []model.VideoRecord{{ID: vidX}}}, model.ModeVideosAndChannels, alice)
	require.NoError(t, err)

	removed, err := f.ledger.RemoveVideo(ctx, bob, vidX)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, f.count(t, "video_contributions"))

	removed, err = f.ledger.RemoveVideo(ctx, alice, "https://youtu.be/"+vidX)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Zero(t, f.count(t, "video_contributions"))
}

func TestLedgerService_PurgeRequiresConfirmation(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	alice := pgtest.Contributor(t, f.pool, "alice", 1, true)

	_, err := f.reconciler.Reconcile(ctx, model.Batch{Videos: []model.VideoRecord{{ID: vidX}, {ID: vidY}}}, model.ModeVideosAndChannels, alice)
	require.NoError(t, err)
	_, err = f.reconciler.Reconcile(ctx, model.Batch{Channels: []model.ChannelRecord{{ID: chanC}}}, model.ModeChannelsOnly, alice)
	require.NoError(t, err)

	_, err = f.ledger.Purge(ctx, alice, false)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))
	assert.Equal(t, 2, f.count(t, "video_contributions"))

	res, err := f.ledger.Purge(ctx, alice, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.VideoEdges)
	assert.Equal(t, int64(1), res.ChannelEdges)
	assert.Zero(t, f.count(t, "video_contributions"))
	assert.Zero(t, f.count(t, "channel_contributions"))
	assert.Equal(t, 2, f.count(t, "videos"), "entities outlive their edges")
}

type recordingCache struct {
	videos   []string
	channels []string
}

func (r *recordingCache) InvalidateVideos(_ context.Context, ids ...string) error {
	r.videos = append(r.videos, ids...)
	return nil
}

func (r *recordingCache) InvalidateChannels(_ context.Context, ids ...string) error {
	r.channels = append(r.channels, ids...)
	return nil
}

func TestLedgerService_RemovalDropsCachedViews(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	alice := pgtest.Contributor(t, f.pool, "alice", 1, true)

	_, err := f.reconciler.Reconcile(ctx, model.Batch{Videos: []model.VideoRecord{
		{ID: vidX, ChannelID: str(chanC)},
		{ID: vidY, ChannelID: str(chanD)},
	}}, model.ModeVideosAndChannels, alice)
	require.NoError(t, err)

	rec := &recordingCache{}
	ledger := &LedgerService{pool: f.pool, store: f.store, cache: rec}

	removed, err := ledger.RemoveVideo(ctx, alice, vidX)
	require.NoError(t, err)
	require.True(t, removed)
	assert.Equal(t, []string{vidX}, rec.videos)
	assert.Equal(t, []string{chanC}, rec.channels, "channel listings embed the video")

	rec = &recordingCache{}
	ledger.cache = rec
	_, err = ledger.Purge(ctx, alice, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{vidY}, rec.videos)
	assert.Contains(t, rec.channels, chanD)
}

func TestContributorAndAuth_SignupAuthorizeResolve(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()

	c, err := f.people.Signup(ctx, validSignup())
	require.NoError(t, err)
	assert.Equal(t, "archivist", c.Name)

	_, err = f.people.Signup(ctx, validSignup())
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	_, err = f.auth.Authorize(ctx, 999)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	first, err := f.auth.Authorize(ctx, *validSignup().DiscordID)
	require.NoError(t, err)
	assert.Len(t, first.Key, 64)
	assert.Contains(t, first.Scope, "/api/submit_videos")

	again, err := f.auth.Authorize(ctx, *validSignup().DiscordID)
	require.NoError(t, err)
	assert.Equal(t, first.Key, again.Key)

	p, err := f.auth.Resolve(ctx, first.Key)
	require.NoError(t, err)
	id, ok := p.Contributor()
	require.True(t, ok)
	assert.Equal(t, c.ID, id)
	assert.True(t, p.Caps.Has(model.CapSubmitContributions))
	assert.False(t, p.Caps.Has(model.CapIssueCredentials))

	_, err = f.auth.Resolve(ctx, "")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
	_, err = f.auth.Resolve(ctx, "unknown")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func TestAuthService_CreateCredentialRotates(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()

	tok1, err := f.auth.CreateCredential(ctx, "bot", nil, model.CapCreateContributor|model.CapIssueCredentials)
	require.NoError(t, err)
	tok2, err := f.auth.CreateCredential(ctx, "bot", nil, model.CapCreateContributor)
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok2)

	_, err = f.auth.Resolve(ctx, tok1)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized), "rotated token is revoked")

	p, err := f.auth.Resolve(ctx, tok2)
	require.NoError(t, err)
	assert.Equal(t, model.CapCreateContributor, p.Caps)
	_, ok := p.Contributor()
	assert.False(t, ok)
}

func TestSubmissionService_Warning(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	alice := pgtest.Contributor(t, f.pool, "alice", 1, true)
	svc := NewSubmissionService(f.reconciler)

	resp, err := svc.SubmitChannels(ctx, alice, []byte(`{"channels": [{"id": "`+chanC+`", "title": "T"}]}`))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Warning)
	assert.Equal(t, map[string]int{"note": 1}, resp.Warning.MissingFieldCounts)

	resp, err = svc.SubmitChannels(ctx, alice, []byte(`{"channels": [{"id": "`+chanC+`", "title": "T", "note": "n"}]}`))
	require.NoError(t, err)
	assert.Nil(t, resp.Warning)
	assert.Equal(t, 1, f.count(t, "channel_contributions"))
}

func TestSubmissionService_NullFieldIsNotMissing(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	alice := pgtest.Contributor(t, f.pool, "alice", 1, true)
	svc := NewSubmissionService(f.reconciler)

	resp, err := svc.SubmitChannels(ctx, alice, []byte(`{"channels": [{"id": "`+chanC+`", "title": null, "note": ""}]}`))
	require.NoError(t, err)
	assert.Nil(t, resp.Warning)
}

func TestSubmissionService_AtomicWithSmallChunkSize(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	alice := pgtest.Contributor(t, f.pool, "alice", 1, true)
	svc := NewSubmissionService(f.reconciler)

	// Postgres rejects NUL in text, so the second video fails after the
	// first one has been written.
	body := `{"videos": [
		{"id": "` + vidX + `", "title": "fine"},
		{"id": "` + vidY + `", "title": "bad\u0000title"}
	]}`
	_, err := svc.SubmitVideos(ctx, alice, []byte(body))
	require.Error(t, err)
	assert.Zero(t, f.count(t, "videos"))
	assert.Zero(t, f.count(t, "video_contributions"))

	body = `{"videos": [{"id": "` + vidX + `"}, {"id": "` + vidY + `"}, {"id": "` + vidZ + `"}]}`
	resp, err := svc.SubmitVideos(ctx, alice, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Counts.VideosUpserted)
	assert.Equal(t, 3, f.count(t, "video_contributions"))
}

func TestReconcile_StampsLastUpdated(t *testing.T) {
	for _, chunkSize := range []int{1, 500} {
		t.Run(fmt.Sprintf("chunk %d", chunkSize), func(t *testing.T) {
			f := newFixture(t, chunkSize)
			ctx := context.Background()
			alice := pgtest.Contributor(t, f.pool, "alice", 1, true)

			_, err := f.reconciler.Reconcile(ctx, model.Batch{Videos: []model.VideoRecord{{ID: vidX}, {ID: vidY}}}, model.ModeVideosAndChannels, alice)
			require.NoError(t, err)

			var stamped bool
			require.NoError(t, f.pool.QueryRow(ctx,
				`SELECT videos_last_updated IS NOT NULL FROM contributors WHERE id = $1`, alice).Scan(&stamped))
			assert.True(t, stamped)
		})
	}
}

func TestQueryService_StatsComputedLiveWithoutCache(t *testing.T) {
	f := newFixture(t, 500)
	stats, err := f.queries.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Videos)
	assert.False(t, stats.GeneratedAt.IsZero())
}
