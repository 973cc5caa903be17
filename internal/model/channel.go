package model

// ChannelSummary is the public view of a channel and its current title.
type ChannelSummary struct {
	ID    string  `json:"id"`
	Title *string `json:"title"`
}

// MaintainerView is one visible channel contribution.
type MaintainerView struct {
	Note        *string        `json:"note"`
	Contributor ContributorRef `json:"contributor"`
}

// ChannelMaintainersResponse is the API response for GET /api/channelmaintainers.
type ChannelMaintainersResponse struct {
	Channel       ChannelSummary   `json:"channel"`
	Contributions []MaintainerView `json:"contributions"`
}

// ChannelVideo is one entry of a channel video listing.
type ChannelVideo struct {
	ID           string           `json:"id"`
	Title        *string          `json:"title"`
	Contributors []ContributorRef `json:"contributors"`
}

// ChannelVideosResponse is the API response for GET /api/channelvideos.
type ChannelVideosResponse struct {
	Channel    ChannelSummary `json:"channel"`
	Count      int            `json:"count"`
	NextOffset *int           `json:"nextOffset"`
	Videos     []ChannelVideo `json:"videos"`
}
