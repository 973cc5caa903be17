package repository

// Store bundles the stateless repositories. Each method takes its storage
// handle explicitly, so one Store serves pools and transactions alike.
type Store struct {
	Channels      *ChannelRepo
	Videos        *VideoRepo
	Formats       *FormatRepo
	Titles        *TitleRepo
	Contributions *ContributionRepo
	Contributors  *ContributorRepo
	Credentials   *CredentialRepo
	Queries       *QueryRepo
	Stats         *StatsRepo
}

func NewStore() *Store {
	return &Store{
		Channels:      NewChannelRepo(),
		Videos:        NewVideoRepo(),
		Formats:       NewFormatRepo(),
		Titles:        NewTitleRepo(),
		Contributions: NewContributionRepo(),
		Contributors:  NewContributorRepo(),
		Credentials:   NewCredentialRepo(),
		Queries:       NewQueryRepo(),
		Stats:         NewStatsRepo(),
	}
}
