// Package clean normalizes the free text labels of a feed (headsigns,
// stop names, route short names) for display.
package clean

import (
	"regexp"
	"strings"
)

var (
	// "St. Joseph" -> "St Joseph", "U.S.A." -> "USA"
	abbrevPoints = regexp.MustCompile(`\b([A-Za-z])\.`)
	trailingDot  = regexp.MustCompile(`\b([A-Za-z]{2,4})\.(\s|$)`)

	numberSign  = regexp.MustCompile(`(?i)(^|\s)(?:#|no\.?|number)\s*(\d+)\b`)
	ordinalCase = regexp.MustCompile(`(?i)\b(\d+)(ST|ND|RD|TH)\b`)

	spaces     = regexp.MustCompile(`\s+`)
	parenOpen  = regexp.MustCompile(`\(\s+`)
	parenClose = regexp.MustCompile(`\s+\)`)
	emptyParen = regexp.MustCompile(`\(\s*\)`)

	routePrefix = regexp.MustCompile(`(?i)^route\s+`)
)

type streetType struct {
	re    *regexp.Regexp
	short string
}

func word(long, short string) streetType {
	return streetType{regexp.MustCompile(`(?i)\b(?:` + long + `)\b`), short}
}

var streetTypes = []streetType{
	word("avenue", "Ave"),
	word("boulevard", "Blvd"),
	word("centre|center", "Ctr"),
	word("circle", "Cir"),
	word("court", "Ct"),
	word("crescent", "Cres"),
	word("drive", "Dr"),
	word("highway", "Hwy"),
	word("lane", "Ln"),
	word("place", "Pl"),
	word("road", "Rd"),
	word("street", "St"),
	word("terrace", "Ter"),
}

// Used on headsigns on top of streetTypes.
var frenchStreetTypes = []streetType{
	word("autoroute", "Aut"),
	word("chemin", "Ch"),
	word("promenade", "Prom"),
}

func removePoints(s string) string {
	s = abbrevPoints.ReplaceAllString(s, "$1")
	return trailingDot.ReplaceAllString(s, "$1$2")
}

func cleanNumbers(s string) string {
	s = numberSign.ReplaceAllString(s, "$1#$2")
	return ordinalCase.ReplaceAllStringFunc(s, strings.ToLower)
}

func cleanStreetTypes(s string, types ...[]streetType) string {
	for _, list := range types {
		for _, st := range list {
			s = st.re.ReplaceAllString(s, st.short)
		}
	}
	return s
}

func cleanLabel(s string) string {
	s = emptyParen.ReplaceAllString(s, "")
	s = parenOpen.ReplaceAllString(s, "(")
	s = parenClose.ReplaceAllString(s, ")")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Like StopName, also shortening French street types.
func TripHeadsign(s string) string {
	s = removePoints(s)
	s = cleanNumbers(s)
	s = cleanStreetTypes(s, streetTypes, frenchStreetTypes)
	return cleanLabel(s)
}

func StopName(s string) string {
	s = removePoints(s)
	s = cleanNumbers(s)
	s = cleanStreetTypes(s, streetTypes)
	return cleanLabel(s)
}

// Strips a leading "Route ", so "Route 7" becomes "7".
func RouteShortName(s string) string {
	return cleanLabel(routePrefix.ReplaceAllString(strings.TrimSpace(s), ""))
}
