// Package ytid validates and normalizes YouTube video and channel references.
//
// Accepted forms, each wrapper optional: `<` ... `>` brackets, an http(s)
// scheme, `www.`, then `youtu.be/` or `youtube.com/watch?v=` for videos and
// `youtube.com/channel/` plus a leading `UC` for channels.
package ytid

import (
	"regexp"
	"strings"

	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
)

// VideoID is a canonical 11 character video identifier.
type VideoID string

// ChannelID is a canonical 22 character channel identifier without the UC prefix.
type ChannelID string

const (
	VideoIDLen   = 11
	ChannelIDLen = 22

	// Last-character alphabets. YouTube IDs encode a fixed number of bits,
	// so the final base64 character only takes these values.
	videoTail   = "AEIMQUYcgkosw048"
	channelTail = "AQgw"
)

var (
	videoRe   = regexp.MustCompile(`^<?(?:https?://)?(?:www\.)?(?:youtu\.be/)?(?:youtube\.com/watch\?v=)?([A-Za-z0-9_-]{10}[` + videoTail + `])>?$`)
	channelRe = regexp.MustCompile(`^<?(?:https?://)?(?:www\.)?(?:youtube\.com/channel/)?(?:UC)?([A-Za-z0-9_-]{21}[` + channelTail + `])>?$`)
)

// Video canonicalizes a video reference. It never touches storage.
func Video(input string) (VideoID, error) {
	m := videoRe.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", apperr.InvalidIdentifier("invalid video id")
	}
	return VideoID(m[1]), nil
}

// Channel canonicalizes a channel reference.
func Channel(input string) (ChannelID, error) {
	m := channelRe.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", apperr.InvalidIdentifier("invalid channel id")
	}
	return ChannelID(m[1]), nil
}

func (id VideoID) String() string { return string(id) }

func (id ChannelID) String() string { return string(id) }

// VideoStrings converts ids for use as a text[] query argument.
func VideoStrings(ids []VideoID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// ChannelStrings converts ids for use as a text[] query argument.
func ChannelStrings(ids []ChannelID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
