package participant

import "fmt"

// Participant is a channel member who can take part in a session.
type Participant struct {
	ChannelID      string
	DisplayName    string
	ExternalGameID string
	Affiliation    string
}

// Registered reports whether the participant can be placed in a team or session.
func (p Participant) Registered() bool {
	return p.ExternalGameID != ""
}

func (p Participant) Validate() error {
	if p.ChannelID == "" {
		return fmt.Errorf("participant channel id is required")
	}
	return nil
}

// Mention renders the channel handle used in notices.
func (p Participant) Mention() string {
	return "<@" + p.ChannelID + ">"
}

// SplitRegistered keeps input order in both outputs and drops repeated channel ids.
func SplitRegistered(items []Participant) (registered, unregistered []Participant) {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ChannelID]; dup {
			continue
		}
		seen[item.ChannelID] = struct{}{}
		if item.Registered() {
			registered = append(registered, item)
		} else {
			unregistered = append(unregistered, item)
		}
	}
	return registered, unregistered
}

func ChannelIDs(items []Participant) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ChannelID)
	}
	return out
}

func ExternalGameIDs(items []Participant) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ExternalGameID)
	}
	return out
}
