package model

// UnsetChannelID marks catalog rows whose channel is unknown. Videos without
// a channel are checked against the skip set under this key.
const UnsetChannelID = "UNSET_CHANNEL_ID"

// MaxSubmissionItems caps records per API submission.
const MaxSubmissionItems = 500

// Mode selects which parts of a batch are reconciled.
type Mode int

const (
	// ModeChannelsOnly writes channels, their titles and channel contributions.
	ModeChannelsOnly Mode = iota
	// ModeVideosAndChannels writes channels and titles, then videos, formats,
	// video contributions and video titles. No channel contributions are made.
	ModeVideosAndChannels
)

func (m Mode) String() string {
	switch m {
	case ModeChannelsOnly:
		return "channels_only"
	case ModeVideosAndChannels:
		return "videos_and_channels"
	default:
		return "unknown"
	}
}

// ChannelRecord is a raw channel entry from a submission or catalog.
// ID is not yet canonicalized.
type ChannelRecord struct {
	ID      string
	Title   *string
	Note    *string
	Exclude bool
}

// VideoRecord is a raw video entry. A sparse catalog sets only ID.
type VideoRecord struct {
	ID           string
	Exclude      bool
	Title        *string
	ChannelID    *string
	ChannelTitle *string
	Filesize     *int64
	Format       *string
}

// Batch is one reconciliation input.
type Batch struct {
	Channels []ChannelRecord
	Videos   []VideoRecord
}

// Counts reports what a reconciliation did.
type Counts struct {
	ChannelsUpserted   int            `json:"channels_upserted"`
	VideosUpserted     int            `json:"videos_upserted"`
	EdgesInserted      int64          `json:"contributions_inserted"`
	SkippedChannels    int            `json:"skipped_channels"`
	SkippedVideos      int            `json:"skipped_videos"`
	InvalidRecords     int            `json:"invalid_records"`
	MissingFieldCounts map[string]int `json:"missing_field_counts,omitempty"`
}

// Add folds o into c.
func (c *Counts) Add(o Counts) {
	c.ChannelsUpserted += o.ChannelsUpserted
	c.VideosUpserted += o.VideosUpserted
	c.EdgesInserted += o.EdgesInserted
	c.SkippedChannels += o.SkippedChannels
	c.SkippedVideos += o.SkippedVideos
	c.InvalidRecords += o.InvalidRecords
	for k, v := range o.MissingFieldCounts {
		if c.MissingFieldCounts == nil {
			c.MissingFieldCounts = make(map[string]int)
		}
		c.MissingFieldCounts[k] += v
	}
}

// SubmitResponse is the API response for submit_channels and submit_videos.
type SubmitResponse struct {
	Success bool           `json:"success"`
	Warning *SubmitWarning `json:"warning,omitempty"`
	Counts  *Counts        `json:"counts,omitempty"`
}

type SubmitWarning struct {
	MissingFieldCounts map[string]int `json:"missing_field_counts"`
}
