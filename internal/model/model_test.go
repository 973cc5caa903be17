package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPage_Clamps(t *testing.T) {
	tests := []struct {
		name          string
		limit, offset int
		want          Page
	}{
		{"default", DefaultPageLimit, 0, Page{500, 0}},
		{"zero limit", 0, 0, Page{1, 0}},
		{"negative limit", -5, 3, Page{1, 3}},
		{"over max", 10000, 0, Page{500, 0}},
		{"negative offset", 20, -1, Page{20, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPage(tt.limit, tt.offset))
		})
	}
}

func TestPage_NextOffset(t *testing.T) {
	// 5 visible rows, limit 2
	first := NewPage(2, 0)
	require.NotNil(t, first.NextOffset(2))
	assert.Equal(t, 2, *first.NextOffset(2))

	last := NewPage(2, 4)
	assert.Nil(t, last.NextOffset(1))

	// A full final page still advertises a continuation.
	exact := NewPage(2, 2)
	require.NotNil(t, exact.NextOffset(2))
	assert.Equal(t, 4, *exact.NextOffset(2))
}

func TestCapability_HasAndNames(t *testing.T) {
	c := CapQueryVideo | CapSubmitContributions
	assert.True(t, c.Has(CapQueryVideo))
	assert.True(t, c.Has(CapQueryVideo|CapSubmitContributions))
	assert.False(t, c.Has(CapQueryStats))
	assert.False(t, c.Has(0))
	assert.Equal(t, []string{"query_video", "submit_contributions"}, c.Names())
}

func TestParseCapabilities(t *testing.T) {
	c, err := ParseCapabilities([]string{"create_contributor", " ISSUE_CREDENTIALS ", ""})
	require.NoError(t, err)
	assert.Equal(t, CapCreateContributor|CapIssueCredentials, c)

	all, err := ParseCapabilities([]string{"all"})
	require.NoError(t, err)
	assert.True(t, all.Has(ContributorCaps|CapQueryStats|CapIssueCredentials|CapCreateContributor))

	_, err = ParseCapabilities([]string{"root"})
	assert.Error(t, err)
}

func TestContributorCaps_Scope(t *testing.T) {
	scope := ContributorCaps.Scope()
	assert.Contains(t, scope, "/api/submit_videos")
	assert.Contains(t, scope, "/api/delete_all")
	assert.NotContains(t, scope, "/api/signup")
}

func TestCounts_Add(t *testing.T) {
	var total Counts
	total.Add(Counts{VideosUpserted: 2, EdgesInserted: 2, MissingFieldCounts: map[string]int{"title": 1}})
	total.Add(Counts{VideosUpserted: 1, SkippedVideos: 3, MissingFieldCounts: map[string]int{"title": 2, "filesize": 1}})

	assert.Equal(t, 3, total.VideosUpserted)
	assert.Equal(t, int64(2), total.EdgesInserted)
	assert.Equal(t, 3, total.SkippedVideos)
	assert.Equal(t, map[string]int{"title": 3, "filesize": 1}, total.MissingFieldCounts)
}

func TestPrincipal_Contributor(t *testing.T) {
	_, ok := Principal{}.Contributor()
	assert.False(t, ok)

	id := int64(7)
	got, ok := Principal{ContributorID: &id}.Contributor()
	assert.True(t, ok)
	assert.Equal(t, int64(7), got)
}
