package htmlmeta

import (
	"regexp"
	"strings"
)

const maxTitleLength = 200

var (
	multiSpacePattern = regexp.MustCompile(`\s+`)

	// Matches a trailing site name such as " | Shop", " - Amazon.com" or " – Store".
	siteSuffixPattern = regexp.MustCompile(`\s+[|\-–—:]\s+[^|\-–—:]{1,60}$`)

	// Matches shop boilerplate in front of the product name.
	buyPrefixPattern = regexp.MustCompile(`(?i)^(buy|shop|comprar)\s+`)
)

// cleanTitle turns a document <title> into a product name: whitespace is
// collapsed, a trailing site name and a leading "Buy" are dropped, and the
// result is cut at a word boundary.
func cleanTitle(title string) string {
	cleaned := multiSpacePattern.ReplaceAllString(title, " ")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}

	if stripped := siteSuffixPattern.ReplaceAllString(cleaned, ""); len(stripped) >= 3 {
		cleaned = stripped
	}
	if stripped := buyPrefixPattern.ReplaceAllString(cleaned, ""); stripped != "" {
		cleaned = stripped
	}

	if len(cleaned) > maxTitleLength {
		cut := cleaned[:maxTitleLength]
		if lastSpace := strings.LastIndex(cut, " "); lastSpace > maxTitleLength/2 {
			cut = cut[:lastSpace]
		}
		cleaned = strings.TrimSpace(cut)
	}
	return cleaned
}
