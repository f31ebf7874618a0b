package normalize

import (
	"strings"
	"unicode/utf8"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// TextOptions selects optional character stripping in CleanText.
type TextOptions struct {
	StripQuotes   bool
	StripCommas   bool
	StripCurrency bool
}

var (
	quoteReplacer    = strings.NewReplacer(`"`, "", "'", "", "“", "", "”", "", "‘", "", "’", "")
	currencyStripper = strings.NewReplacer("$", "", "€", "", "£", "")
)

// CleanText trims s, collapses internal whitespace runs to single spaces and
// applies the requested stripping.
func CleanText(s string, opts TextOptions) string {
	if opts.StripQuotes {
		s = quoteReplacer.Replace(s)
	}
	if opts.StripCommas {
		s = strings.ReplaceAll(s, ",", "")
	}
	if opts.StripCurrency {
		s = currencyStripper.Replace(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns s unchanged when it fits in maxLen bytes. Otherwise it cuts
// at a rune boundary and appends Ellipsis so the result, marker included, is
// at most maxLen bytes and still valid UTF-8.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(Ellipsis) {
		return cutAtRune(s, maxLen)
	}
	return strings.TrimRight(cutAtRune(s, maxLen-len(Ellipsis)), " ") + Ellipsis
}

func cutAtRune(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
