package model

import (
	"fmt"
	"strings"
)

// Capability is a bitset of operations a credential may perform.
type Capability uint32

const (
	CapQueryVideo Capability = 1 << iota
	CapQueryChannelMaintainers
	CapQueryChannelVideos
	CapSubmitContributions
	CapCreateContributor
	CapIssueCredentials
	CapQueryStats
)

// ContributorCaps is the fixed set issued to a contributor by authorize.
const ContributorCaps = CapQueryVideo | CapQueryChannelMaintainers | CapQueryChannelVideos | CapSubmitContributions

var capabilities = []struct {
	cap    Capability
	name   string
	routes []string
}{
	{CapQueryVideo, "query_video", []string{"/api/video/{ref}"}},
	{CapQueryChannelMaintainers, "query_channel_maintainers", []string{"/api/channelmaintainers/{ref}"}},
	{CapQueryChannelVideos, "query_channel_videos", []string{"/api/channelvideos/{ref}"}},
	{CapSubmitContributions, "submit_contributions", []string{
		"/api/submit_channels", "/api/submit_videos",
		"/api/my_videos", "/api/my_channels",
		"/api/my_videos/{ref}", "/api/my_channels/{ref}",
		"/api/delete_all",
	}},
	{CapCreateContributor, "create_contributor", []string{"/api/signup"}},
	{CapIssueCredentials, "issue_credentials", []string{"/api/authorize/{discord_id}"}},
	{CapQueryStats, "query_stats", []string{"/api/stats"}},
}

// Has reports whether every bit of want is set.
func (c Capability) Has(want Capability) bool {
	return want != 0 && c&want == want
}

// Names lists the capability names in bit order.
func (c Capability) Names() []string {
	var out []string
	for _, d := range capabilities {
		if c.Has(d.cap) {
			out = append(out, d.name)
		}
	}
	return out
}

// Scope lists the routes the capability set unlocks.
func (c Capability) Scope() []string {
	var out []string
	for _, d := range capabilities {
		if c.Has(d.cap) {
			out = append(out, d.routes...)
		}
	}
	return out
}

func (c Capability) String() string {
	return strings.Join(c.Names(), ",")
}

// ParseCapabilities turns names into a bitset. "all" grants everything.
func ParseCapabilities(names []string) (Capability, error) {
	var c Capability
	for _, raw := range names {
		name := strings.TrimSpace(strings.ToLower(raw))
		if name == "" {
			continue
		}
		if name == "all" {
			for _, d := range capabilities {
				c |= d.cap
			}
			continue
		}
		found := false
		for _, d := range capabilities {
			if d.name == name {
				c |= d.cap
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown capability %q", raw)
		}
	}
	return c, nil
}

// Principal is a resolved credential. ContributorID is nil for application
// credentials that do not act for a contributor.
type Principal struct {
	CredentialID  int64
	Application   string
	ContributorID *int64
	Caps          Capability
}

// Contributor returns the contributor the principal acts for.
func (p Principal) Contributor() (int64, bool) {
	if p.ContributorID == nil {
		return 0, false
	}
	return *p.ContributorID, true
}
