package model

import (
	"encoding/json"
	"time"
)

// MaxContributorNameLen matches contributors.name VARCHAR(60).
const MaxContributorNameLen = 60

// Contributor is a registered archivist.
type Contributor struct {
	ID                  int64           `json:"-"`
	Name                string          `json:"name"`
	DiscordID           int64           `json:"discord_id"`
	AllowChannelQueries bool            `json:"allow_channel_queries"`
	AllowStatsQueries   bool            `json:"allow_stats_queries"`
	Verified            bool            `json:"verified"`
	ContactInfo         json.RawMessage `json:"contact_info,omitempty"`
	VideosLastUpdated   *time.Time      `json:"videos_last_updated,omitempty"`
	ChannelsLastUpdated *time.Time      `json:"channels_last_updated,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ContributorRef is how a contributor appears in third-party listings.
type ContributorRef struct {
	Name      string `json:"name"`
	DiscordID int64  `json:"discord_id"`
}

// SignupRequest is the API request body for POST /api/signup. Pointers
// distinguish an absent field from a zero value.
type SignupRequest struct {
	Name                *string         `json:"name"`
	DiscordID           *int64          `json:"discord_id"`
	AllowChannelQueries *bool           `json:"allow_channel_queries"`
	AllowStatsQueries   *bool           `json:"allow_stats_queries"`
	ContactInfo         json.RawMessage `json:"contact_info,omitempty"`
}

// NewContributor is a validated signup.
type NewContributor struct {
	Name                string
	DiscordID           int64
	AllowChannelQueries bool
	AllowStatsQueries   bool
	ContactInfo         json.RawMessage
}

// AuthorizeResponse is the API response for GET /api/authorize.
type AuthorizeResponse struct {
	Key   string   `json:"key"`
	Scope []string `json:"scope"`
}
