package arxiv

import (
	"regexp"
	"strings"
)

// paperIDRegex matches canonical arXiv identifiers, both the post-2007 form
// ("2301.12345", optionally versioned) and the legacy form ("hep-th/9901001").
var paperIDRegex = regexp.MustCompile(`^(\d{4}\.\d{4,5}|[a-z\-]+(?:\.[A-Z]{2})?/\d{7})(v\d+)?$`)

// urlPrefixRegex strips the abs/pdf URL wrapper clients often paste in
// instead of a bare identifier.
var urlPrefixRegex = regexp.MustCompile(`^(?:https?://)?(?:www\.)?arxiv\.org/(?:abs|pdf)/`)

// entryIDRegex extracts the arXiv ID from a feed entry URL.
// Matches patterns like "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v1".
var entryIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// CleanPaperID normalizes a caller-supplied paper reference into a bare
// arXiv identifier. It trims whitespace, strips an abs/pdf URL prefix and a
// trailing ".pdf" suffix, and removes a version suffix.
func CleanPaperID(raw string) string {
	id := strings.TrimSpace(raw)
	id = urlPrefixRegex.ReplaceAllString(id, "")
	id = strings.TrimSuffix(id, ".pdf")

	if m := paperIDRegex.FindStringSubmatch(id); m != nil {
		return m[1]
	}
	return id
}

// IsValidPaperID reports whether id is a well-formed arXiv identifier.
func IsValidPaperID(id string) bool {
	return paperIDRegex.MatchString(id)
}

// ExtractIDFromFilename derives an arXiv identifier from a local PDF
// filename such as "2301.12345v2.pdf". Returns the bare id without the
// version suffix, or "" when the name does not follow the canonical pattern.
func ExtractIDFromFilename(filename string) string {
	base := strings.TrimSuffix(filename, ".pdf")
	// Legacy ids contain a slash, which cannot survive in a filename;
	// downloads store them with the slash replaced by an underscore.
	candidate := strings.Replace(base, "_", "/", 1)

	if m := paperIDRegex.FindStringSubmatch(candidate); m != nil {
		return m[1]
	}
	if m := paperIDRegex.FindStringSubmatch(base); m != nil {
		return m[1]
	}
	return ""
}

// extractEntryID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" -> "2301.12345"
func extractEntryID(entryURL string) string {
	matches := entryIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// normalizeWhitespace trims and collapses multiple whitespace characters.
func normalizeWhitespace(s string) string {
	fields := strings.Fields(strings.TrimSpace(s))
	return strings.Join(fields, " ")
}
