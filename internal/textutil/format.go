package textutil

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// DaySegment returns "morning", "afternoon" or "evening" for the local hour.
func DaySegment(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "morning"
	case h < 17:
		return "afternoon"
	default:
		return "evening"
	}
}

// TodayTonight switches from "today" to "tonight" at 17:00.
func TodayTonight(t time.Time) string {
	if t.Hour() >= 17 {
		return "tonight"
	}
	return "today"
}

// FormatResponse fills a canned response: {0} becomes the first name of
// the recipient and {1} the current day segment.
func FormatResponse(text, recipientName string, now time.Time) string {
	return strings.NewReplacer(
		"{0}", FirstName(recipientName),
		"{1}", DaySegment(now),
	).Replace(text)
}

// StripName removes whole-word, case-insensitive mentions of name from text.
// The second result reports whether anything was removed.
func StripName(text, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return text, false
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return text, false
	}
	out := re.ReplaceAllString(text, "")
	if out == text {
		return text, false
	}
	out = strings.TrimSpace(out)
	out = strings.TrimLeft(out, ",:;")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(out, " ")), true
}

// Words splits a sentence into its words, dropping punctuation.
func Words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
