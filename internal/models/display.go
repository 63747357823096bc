package models

import (
	"strings"
	"unicode"
)

// DayAbbr maps weekday indices (0 = Sunday) to short labels.
var DayAbbr = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Humanize turns an enumeration value such as "clean_and_jerk" into
// "Clean And Jerk". Letters following a non-alphanumeric rune are capitalised.
func Humanize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	boundary := true
	for _, r := range strings.ReplaceAll(s, "_", " ") {
		if boundary && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(r)
		}
		boundary = !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}
	return b.String()
}

// Summary lists the set's days as short labels, e.g. "Mon, Wed, Fri".
func (s DaySet) Summary() string {
	labels := make([]string, 0, len(s))
	for _, d := range NewDaySet(s...) {
		labels = append(labels, DayAbbr[d])
	}
	return strings.Join(labels, ", ")
}
