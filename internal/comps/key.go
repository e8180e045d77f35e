package comps

import (
	"regexp"
	"strings"
)

var rePunct = regexp.MustCompile(`[^A-Za-z0-9\s]`)

var suffixes = map[string]string{
	" STREET": " ST", " ROAD": " RD", " AVENUE": " AVE", " BOULEVARD": " BLVD",
	" DRIVE": " DR", " LANE": " LN", " COURT": " CT", " CIRCLE": " CIR",
	" PLACE": " PL", " PARKWAY": " PKWY", " HIGHWAY": " HWY",
}

// PropertyKey computes a stable cache identity for a property address.
// Punctuation, case and common USPS suffix spellings are normalized so minor
// formatting differences hit the same cache entry.
func PropertyKey(line1, city, state, zip string) string {
	n1 := strings.ToUpper(strings.TrimSpace(line1))
	n1 = rePunct.ReplaceAllString(n1, " ")
	for long, short := range suffixes {
		n1 = strings.ReplaceAll(n1, long, short)
	}
	n1 = strings.Join(strings.Fields(n1), " ")

	c := strings.Join(strings.Fields(rePunct.ReplaceAllString(strings.ToUpper(strings.TrimSpace(city)), " ")), " ")
	st := strings.ToUpper(strings.TrimSpace(state))
	z := strings.TrimSpace(zip)
	if len(z) > 5 {
		z = z[:5]
	}
	return strings.ToLower(n1 + "|" + c + "|" + st + "|" + z)
}
