package nutrition

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// phoneNoiseRegex matches the separators people type inside phone numbers.
var phoneNoiseRegex = regexp.MustCompile(`[\s\-().]`)

// CollapseSpace trims s and collapses internal whitespace to single spaces.
func CollapseSpace(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// NormalizeTitle returns the canonical form of a food title:
// 1. Trim leading/trailing whitespace
// 2. Collapse internal whitespace to single spaces
// 3. Title Case every word (English rules)
//
// Identical foods therefore compare equal regardless of how the analyzer cased them.
func NormalizeTitle(s string) string {
	s = CollapseSpace(s)
	if s == "" {
		return ""
	}
	// A Caser keeps state between calls, so each call gets its own.
	return cases.Title(language.English).String(strings.ToLower(s))
}

// NormalizePhone strips channel prefixes and formatting from a phone number.
// "whatsapp:+1 (555) 010-0100" → "+15550100100"
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	return phoneNoiseRegex.ReplaceAllString(s, "")
}
