package util

import (
	"strings"
	"time"
)

var dateTokens = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MM", "01",
	"DD", "02",
	"hh", "15",
	"mm", "04",
	"ss", "05",
)

// FormatDate formats t with a template of placeholders:
// YYYY, YY, MM, DD, hh, mm, ss. A zero time formats as "".
//
//	FormatDate(t, "YYYY-MM-DD hh:mm") // "2023-11-10 00:00"
func FormatDate(t time.Time, tpl string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTokens.Replace(tpl))
}
