package model

// VideoEdge is a video contribution ready for insertion.
type VideoEdge struct {
	VideoID  int64
	FormatID *int64
	Filesize *int64
}

// ChannelEdge is a channel contribution ready for insertion.
type ChannelEdge struct {
	ChannelID int64
	Note      *string
}

// TitleRow is a title append for a video or channel surrogate key.
type TitleRow struct {
	TargetID int64
	Title    string
}

// MyVideo is one row of a contributor's own video listing.
type MyVideo struct {
	ID           string  `json:"id"`
	Title        *string `json:"title"`
	ChannelID    *string `json:"channel_id"`
	ChannelTitle *string `json:"channel_title"`
	FormatID     *string `json:"format_id"`
	Filesize     *int64  `json:"filesize"`
}

// MyChannel is one row of a contributor's own channel listing.
type MyChannel struct {
	ChannelID    string  `json:"channel_id"`
	ChannelTitle *string `json:"channel_title"`
	Note         *string `json:"note"`
}

type MyVideosResponse struct {
	Count      int       `json:"count"`
	NextOffset *int      `json:"nextOffset"`
	Videos     []MyVideo `json:"videos"`
}

type MyChannelsResponse struct {
	Count      int         `json:"count"`
	NextOffset *int        `json:"nextOffset"`
	Channels   []MyChannel `json:"channels"`
}

// PurgeResult lists what a full purge removed.
type PurgeResult struct {
	VideoEdges   int64    `json:"video_contributions_removed"`
	ChannelEdges int64    `json:"channel_contributions_removed"`
	Videos       []string `json:"-"`
	Channels     []string `json:"-"`
}

// RemovalResponse is the API response for self-scoped edge removal.
type RemovalResponse struct {
	Success bool `json:"success"`
	Removed bool `json:"removed"`
}
