package cue

import "strings"

// Maneuver is a parsed instruction with a stable icon token for the
// rendering collaborator.
type Maneuver struct {
	Phrase string
	Icon   string
}

// maneuverPatterns maps instruction keywords to maneuvers, in priority
// order. Longer, more specific phrases come first so "slight left" wins
// over "left".
var maneuverPatterns = []struct {
	keyword  string
	maneuver Maneuver
}{
	{"roundabout", Maneuver{Phrase: "Take the roundabout", Icon: "roundabout"}},
	{"u-turn", Maneuver{Phrase: "Make a U-turn", Icon: "uturn"}},
	{"uturn", Maneuver{Phrase: "Make a U-turn", Icon: "uturn"}},
	{"merge", Maneuver{Phrase: "Merge", Icon: "merge"}},
	{"exit", Maneuver{Phrase: "Take the exit", Icon: "exit"}},
	{"slight left", Maneuver{Phrase: "Bear slightly left", Icon: "slight-left"}},
	{"slight right", Maneuver{Phrase: "Bear slightly right", Icon: "slight-right"}},
	{"left", Maneuver{Phrase: "Turn left", Icon: "turn-left"}},
	{"right", Maneuver{Phrase: "Turn right", Icon: "turn-right"}},
	{"arrive", Maneuver{Phrase: "Arrive at your destination", Icon: "arrive"}},
	{"destination", Maneuver{Phrase: "Arrive at your destination", Icon: "arrive"}},
	{"continue", Maneuver{Phrase: "Continue straight", Icon: "continue"}},
	{"straight", Maneuver{Phrase: "Continue straight", Icon: "continue"}},
}

// ParseManeuver heuristically extracts a maneuver from free-text directions.
// Unrecognized instructions fall back to a generic continue.
func ParseManeuver(instruction string) Maneuver {
	lower := strings.ToLower(instruction)
	for _, p := range maneuverPatterns {
		if strings.Contains(lower, p.keyword) {
			return p.maneuver
		}
	}
	return Maneuver{Phrase: "Continue", Icon: "continue"}
}

// lowerFirst lowercases the first rune of a phrase for mid-sentence use.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
