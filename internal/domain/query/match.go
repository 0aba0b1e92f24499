package query

import "strings"

// indexKeyword locates a keyword in lowered text. ASCII keywords only match
// on word boundaries, so "now" never fires inside "snow" or "know". CJK
// keywords have no word delimiters and keep plain substring matching.
func indexKeyword(lowered, keyword string) int {
	if !isASCIIKeyword(keyword) {
		return strings.Index(lowered, keyword)
	}
	for from := 0; from <= len(lowered)-len(keyword); {
		rel := strings.Index(lowered[from:], keyword)
		if rel < 0 {
			return -1
		}
		pos := from + rel
		if boundedBefore(lowered, pos) && boundedAfter(lowered, pos+len(keyword)) {
			return pos
		}
		from = pos + 1
	}
	return -1
}

func containsKeyword(lowered, keyword string) bool {
	return indexKeyword(lowered, keyword) >= 0
}

func isASCIIKeyword(keyword string) bool {
	for i := 0; i < len(keyword); i++ {
		if keyword[i] >= 0x80 {
			return false
		}
	}
	return true
}

func boundedBefore(s string, pos int) bool {
	return pos == 0 || !isWordByte(s[pos-1])
}

func boundedAfter(s string, pos int) bool {
	return pos >= len(s) || !isWordByte(s[pos])
}

// isWordByte reports whether b continues an ASCII word. Multi-byte runes
// (CJK and friends) always count as boundaries for ASCII keywords.
func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
