// Package dates normalizes the free-form date strings found in policy
// documents ("15th June 2024", "2024/06/15") into the DD-MM-YYYY display
// format used everywhere in stored records.
package dates

import (
	"strings"

	"github.com/araddon/dateparse"
)

// DisplayLayout is the stored/display date format.
const DisplayLayout = "02-01-2006"

// ordinalReplacer strips English ordinal suffixes so "15th June 2024"
// parses the same as "15 June 2024".
var ordinalReplacer = strings.NewReplacer(
	"1st", "1", "2nd", "2", "3rd", "3",
	"th ", " ",
)

// Format fuzzy-parses a date string and reformats it as DD-MM-YYYY.
// Returns the formatted date and true, or ("", false) when the string
// cannot be parsed. Date parse failures are always non-fatal upstream:
// callers keep the original string and log a warning.
func Format(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		t, err = dateparse.ParseAny(ordinalReplacer.Replace(s))
		if err != nil {
			return "", false
		}
	}
	return t.Format(DisplayLayout), true
}
