package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidationWorker_RecordSortsPayloads(t *testing.T) {
	w := NewInvalidationWorker(nil, nil, NewCacheServiceWithClient(nil))

	w.Record("v:" + vidX)
	w.Record("v:" + vidX)
	w.Record("c:" + chanC)
	w.Record("garbage")

	assert.Equal(t, map[string]struct{}{vidX: {}}, w.videos)
	assert.Equal(t, map[string]struct{}{chanC: {}}, w.channels)
}

func TestCacheService_DisabledIsNoOp(t *testing.T) {
	c := NewCacheServiceWithClient(nil)
	var dst map[string]any

	assert.False(t, c.Enabled())
	assert.False(t, c.GetVideo(t.Context(), vidX, &dst))
	c.SetVideo(t.Context(), vidX, map[string]any{"a": 1})
	assert.NoError(t, c.InvalidateChannels(t.Context(), chanC))
	assert.NoError(t, c.Close())
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "video:"+vidX, videoKey(vidX))
	assert.Equal(t, "maintainers:"+chanC, maintainersKey(chanC))
	assert.Equal(t, "channelvideos:"+chanC, channelVideosKey(chanC))
	assert.Equal(t, "50:100", pageField(50, 100))
}
