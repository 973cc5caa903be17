package model

// VideoSummary is the public view of a video with its current titles.
type VideoSummary struct {
	ID           string  `json:"id"`
	Title        *string `json:"title"`
	ChannelID    *string `json:"channel_id"`
	ChannelTitle *string `json:"channel_title"`
}

// VideoContributionView is one visible video contribution.
type VideoContributionView struct {
	FormatString *string        `json:"format_string"`
	Filesize     *int64         `json:"filesize"`
	Contributor  ContributorRef `json:"contributor"`
}

// VideoResponse is the API response for GET /api/video.
type VideoResponse struct {
	Video         VideoSummary            `json:"video"`
	Contributions []VideoContributionView `json:"contributions"`
}
