package round

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSpec = errors.New("invalid match spec")

// WildcardSuffix marks a match spec that expands to every map of a category.
const WildcardSuffix = "-All"

// Category returns the category of a wildcard spec such as "4-All".
func Category(matchSpec string) (string, bool) {
	if !strings.HasSuffix(matchSpec, WildcardSuffix) {
		return "", false
	}
	category := strings.TrimSuffix(matchSpec, WildcardSuffix)
	return category, category != ""
}

// Expand turns a match spec into the ordered list of map references to play.
// A wildcard repeats each map of its category roundsPerMap times in catalog order;
// the wildcard entry itself is never played.
func Expand(matchSpec string, roundsPerMap int, catalog *Catalog) ([]string, error) {
	matchSpec = strings.TrimSpace(matchSpec)
	if roundsPerMap < 1 {
		return nil, fmt.Errorf("%w: rounds per map must be >= 1, got %d", ErrInvalidSpec, roundsPerMap)
	}
	if matchSpec == "" {
		return nil, fmt.Errorf("%w: match spec is empty", ErrInvalidSpec)
	}

	category, wildcard := Category(matchSpec)
	if !wildcard {
		out := make([]string, roundsPerMap)
		for i := range out {
			out[i] = matchSpec
		}
		return out, nil
	}

	maps := catalog.Maps(category)
	out := make([]string, 0, len(maps)*roundsPerMap)
	for _, m := range maps {
		if m.Value == "" || m.Value == matchSpec {
			continue
		}
		for i := 0; i < roundsPerMap; i++ {
			out = append(out, m.Value)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no maps found for category %q", ErrInvalidSpec, category)
	}
	return out, nil
}

// Sequence tracks progress through the expanded rounds of a session.
type Sequence struct {
	Rounds  []string
	Current int
}

func NewSequence(rounds []string) Sequence {
	return Sequence{Rounds: append([]string(nil), rounds...)}
}

func (s Sequence) Len() int {
	return len(s.Rounds)
}

// CurrentMap returns the map of the round in play, or "" once complete.
func (s Sequence) CurrentMap() string {
	if s.Complete() {
		return ""
	}
	return s.Rounds[s.Current]
}

func (s Sequence) Complete() bool {
	return s.Current >= len(s.Rounds)
}

// Advance moves to the next round and returns its map. complete is true when
// the sequence has no round left.
func (s *Sequence) Advance() (next string, complete bool) {
	if s.Current < len(s.Rounds) {
		s.Current++
	}
	if s.Complete() {
		return "", true
	}
	return s.Rounds[s.Current], false
}
