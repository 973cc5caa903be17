package model

import "time"

// Stats counts rows visible to statistics. Contributions count only when
// the contributor allows stats queries.
type Stats struct {
	Channels             int64     `json:"channels"`
	Videos               int64     `json:"videos"`
	Contributors         int64     `json:"contributors"`
	VideoContributions   int64     `json:"video_contributions"`
	ChannelContributions int64     `json:"channel_contributions"`
	TotalFilesize        int64     `json:"total_filesize"`
	GeneratedAt          time.Time `json:"generated_at"`
}
