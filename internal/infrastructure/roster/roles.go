package roster

import (
	"strconv"
	"strings"
)

// RoleParser derives affiliation and external game id from channel role names.
type RoleParser struct {
	Labels     []string
	MainSuffix string
	IDPrefix   string
}

// Affiliation returns the label of a "<label><MainSuffix>" role when the member holds
// one, else the first configured label they hold, else "".
func (p RoleParser) Affiliation(roles []string) string {
	held := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		held[strings.TrimSpace(role)] = struct{}{}
	}

	if p.MainSuffix != "" {
		for _, label := range p.Labels {
			if _, ok := held[label+p.MainSuffix]; ok {
				return label
			}
		}
	}
	for _, label := range p.Labels {
		if _, ok := held[label]; ok {
			return label
		}
	}
	return ""
}

// ExternalID returns n from the first "<IDPrefix><n>" role with a numeric suffix.
func (p RoleParser) ExternalID(roles []string) string {
	if p.IDPrefix == "" {
		return ""
	}
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if !strings.HasPrefix(role, p.IDPrefix) {
			continue
		}
		suffix := strings.TrimPrefix(role, p.IDPrefix)
		if suffix == "" {
			continue
		}
		if _, err := strconv.ParseUint(suffix, 10, 64); err != nil {
			continue
		}
		return suffix
	}
	return ""
}
