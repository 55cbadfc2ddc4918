// Package textutil holds the pure name and text rules used by the bot:
// participant name normalization, device-name cleanup, first names,
// day segments and chat response formatting.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RoleSuffixes are bracketed role tags stripped from the end of a name
// before directory comparison, e.g. "Chris M. (Usher)".
var RoleSuffixes = []string{"Usher", "DL", "Chair", "Speaker"}

// DeviceSuffixPatterns remove default device names such as "Bob's iPhone".
// They are applied in order; a name consisting only of the device name is
// left unchanged.
var DeviceSuffixPatterns = []string{
	`’s iPhone`,
	`â€™s iPhone`,
	`\x{FFFD}s iPhone`,
	`'s iPhone`,
	`\s*iPhone\s*`,
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	roleSuffix    = compileRoleSuffix(RoleSuffixes)
	deviceSuffix  = compileAll(DeviceSuffixPatterns)
)

func compileRoleSuffix(roles []string) *regexp.Regexp {
	quoted := make([]string, len(roles))
	for i, r := range roles {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(r))
	}
	return regexp.MustCompile(`\s*\((?:` + strings.Join(quoted, "|") + `)\)\s*$`)
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// NormalizeName produces the directory key for a display name: lower case,
// periods removed, whitespace runs collapsed, role suffix stripped.
func NormalizeName(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, ".", "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = roleSuffix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// StripDeviceSuffix removes default device names from a display name.
func StripDeviceSuffix(name string) string {
	if name == "" {
		return name
	}
	s := name
	for _, re := range deviceSuffix {
		s = re.ReplaceAllString(s, "")
	}
	if s == "" {
		return name
	}
	return s
}

// FirstName derives a friendly first name from a display name. Names that
// are all upper or all lower case are title cased.
func FirstName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.TrimSpace(StripDeviceSuffix(name))
	first := strings.Fields(name)
	if len(first) == 0 {
		return ""
	}
	word := first[0]
	r, _ := utf8.DecodeRuneInString(word)
	if unicode.IsUpper(r) && word != strings.ToUpper(word) {
		return word
	}
	return TitleCase(word)
}

// TitleCase upper cases the first rune and lower cases the rest.
func TitleCase(word string) string {
	if word == "" {
		return word
	}
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}

// UppercaseFirst upper cases only the first rune.
func UppercaseFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
