package budget

import (
	"fmt"
	"unicode/utf8"
)

// DefaultToolResultCap bounds a single serialized tool result, in bytes.
const DefaultToolResultCap = 32 * 1024

// TruncationMarker returns the marker inserted in place of the removed middle.
func TruncationMarker(originalSize int) string {
	return fmt.Sprintf("\n\n[... truncated: %d bytes total ...]\n\n", originalSize)
}

// TruncateToolResult shortens payloads larger than limit to a head fragment,
// a marker noting the original size, and a tail fragment. The result is
// strictly shorter than limit. Payloads within the limit are returned unchanged.
func TruncateToolResult(payload string, limit int) string {
	if len(payload) <= limit {
		return payload
	}
	marker := TruncationMarker(len(payload))
	room := limit - 1 - len(marker)
	if room < 2 {
		// the marker alone does not fit; keep what we can of the head
		if limit <= 1 {
			return ""
		}
		return payload[:runeFloor(payload, limit-1)]
	}

	headLen := room * 2 / 3
	tailLen := room - headLen

	head := payload[:runeFloor(payload, headLen)]
	tailStart := runeCeil(payload, len(payload)-tailLen)
	tail := payload[tailStart:]

	return head + marker + tail
}

// runeFloor moves i back to the start of the rune containing it.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil moves i forward to the next rune start.
func runeCeil(s string, i int) int {
	for i < len(s) && i > 0 && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
