package network

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// bodyTruncateThreshold is the longest string kept verbatim inside a body.
	bodyTruncateThreshold = 256 << 10

	// bodyTruncatePreviewLen is the number of leading characters kept
	// from a truncated string.
	bodyTruncatePreviewLen = 64

	// dataURIHeaderLimit bounds how far into a string the comma of a
	// data URI header is searched for.
	dataURIHeaderLimit = 128
)

// truncateBodyValue shortens a single oversized string. Data URIs keep their
// media type header.
func truncateBodyValue(s string) string {
	if len(s) <= bodyTruncateThreshold {
		return s
	}

	if strings.HasPrefix(s, "data:") {
		if comma := strings.IndexByte(s[:dataURIHeaderLimit], ','); comma > 0 {
			data := s[comma+1:]
			return fmt.Sprintf("%s,%s... <%d chars>", s[:comma], prefixOf(data, bodyTruncatePreviewLen), len(data))
		}
	}

	return fmt.Sprintf("%s... <%d chars>", prefixOf(s, bodyTruncatePreviewLen), len(s))
}

// truncateTree walks a decoded JSON tree and replaces oversized strings.
// The input is not modified.
func truncateTree(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = truncateTree(child)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = truncateTree(child)
		}

		return out
	case string:
		return truncateBodyValue(val)
	default:
		return v
	}
}

// prefixOf cuts s to at most n bytes without splitting a rune.
func prefixOf(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n]
}
