package domain

import (
	"strconv"
	"strings"
)

// FrameOrdinal parses the leading integer of a frame id ("00123.jpg" -> 123).
func FrameOrdinal(frameID string) (int, bool) {
	s := strings.TrimSpace(frameID)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NormalizeFrameID appends ".jpg" to ids that carry no extension, matching
// the keyframe file names the corpus mapping is built from.
func NormalizeFrameID(frameID string) string {
	if frameID == "" || strings.Contains(frameID, ".") {
		return frameID
	}
	return frameID + ".jpg"
}
