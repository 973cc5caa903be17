package ytid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
)

const base64URL = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestVideo_AcceptedShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bare", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ"},
		{"short link no scheme", "youtu.be/dQw4w9WgXcQ"},
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"watch url http", "http://youtube.com/watch?v=dQw4w9WgXcQ"},
		{"bracketed", "<dQw4w9WgXcQ>"},
		{"bracketed url", "<https://youtu.be/dQw4w9WgXcQ>"},
		{"surrounding space", "  dQw4w9WgXcQ \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Video(tt.input)
			require.NoError(t, err)
			assert.Equal(t, VideoID("dQw4w9WgXcQ"), got)
		})
	}
}

func TestVideo_URLSafeCharacters(t *testing.T) {
	tests := []struct {
		input string
		want  VideoID
	}{
		{"not-a-video", "not-a-video"},
		{"a_b-c_d-e_w", "a_b-c_d-e_w"},
		{"https://youtu.be/--_-_-_-_-0", "--_-_-_-_-0"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Video(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVideo_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "dQw4w9WgXc"},
		{"too long", "dQw4w9WgXcQQ"},
		{"bad char", "dQw4w9WgX!Q"},
		{"trailing query", "https://youtu.be/dQw4w9WgXcQ?t=10"},
		{"other host", "https://vimeo.com/dQw4w9WgXcQ"},
		{"sql", "a'; DROP--xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Video(tt.input)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.CodeInvalidIdentifier))
		})
	}
}

func TestVideo_LastCharacterAlphabet(t *testing.T) {
	for _, c := range base64URL {
		input := "dQw4w9WgXc" + string(c)
		_, err := Video(input)
		if strings.ContainsRune(videoTail, c) {
			assert.NoError(t, err, "tail %q should be accepted", c)
		} else {
			assert.Error(t, err, "tail %q should be rejected", c)
		}
	}
}

func TestChannel_AcceptedShapes(t *testing.T) {
	const want = ChannelID("uAXFkgsw1L7xaCfnd5JJOw")
	tests := []struct {
		name  string
		input string
	}{
		{"with UC", "UCuAXFkgsw1L7xaCfnd5JJOw"},
		{"without UC", "uAXFkgsw1L7xaCfnd5JJOw"},
		{"channel url", "https://www.youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw"},
		{"bracketed", "<https://youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Channel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestChannel_LastCharacterAlphabet(t *testing.T) {
	for _, c := range base64URL {
		input := "UCuAXFkgsw1L7xaCfnd5JJO" + string(c)
		_, err := Channel(input)
		if strings.ContainsRune(channelTail, c) {
			assert.NoError(t, err, "tail %q should be accepted", c)
		} else {
			assert.Error(t, err, "tail %q should be rejected", c)
		}
	}
}

func TestChannel_Rejects(t *testing.T) {
	for _, input := range []string{"", "UC", "UCuAXFkgsw1L7xaCfnd5JJO", "@handle", "https://youtube.com/c/SomeName"} {
		_, err := Channel(input)
		assert.Error(t, err, input)
	}
}

func TestStrings(t *testing.T) {
	assert.Equal(t, []string{"dQw4w9WgXcQ"}, VideoStrings([]VideoID{"dQw4w9WgXcQ"}))
	assert.Equal(t, []string{"uAXFkgsw1L7xaCfnd5JJOw"}, ChannelStrings([]ChannelID{"uAXFkgsw1L7xaCfnd5JJOw"}))
}
