package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Hit is a pre-extracted OCR or ASR match. Attrs holds every field other
// than video_id and frame_id as compact JSON text, so two hits compare equal
// only when all of their fields match.
type Hit struct {
	FrameRecord
	Attrs map[string]string
}

// Key is a canonical encoding of every field of the hit.
func (h Hit) Key() string {
	var b strings.Builder
	b.WriteString(h.VideoID)
	b.WriteByte(0x1f)
	b.WriteString(h.FrameID)

	keys := make([]string, 0, len(h.Attrs))
	for k := range h.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(0x1f)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(h.Attrs[k])
	}
	return b.String()
}

// WithNormalizedFrameID returns a copy whose frame id carries an extension.
func (h Hit) WithNormalizedFrameID() Hit {
	h.FrameID = NormalizeFrameID(h.FrameID)
	return h
}

func (h *Hit) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	video, ok := fields["video_id"]
	if !ok {
		return fmt.Errorf("hit is missing video_id")
	}
	frame, ok := fields["frame_id"]
	if !ok {
		return fmt.Errorf("hit is missing frame_id")
	}

	var err error
	if h.VideoID, err = scalarString(video); err != nil {
		return fmt.Errorf("video_id: %w", err)
	}
	if h.FrameID, err = scalarString(frame); err != nil {
		return fmt.Errorf("frame_id: %w", err)
	}

	h.Attrs = nil
	for k, v := range fields {
		if k == "video_id" || k == "frame_id" {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if h.Attrs == nil {
			h.Attrs = make(map[string]string)
		}
		h.Attrs[k] = buf.String()
	}
	return nil
}

func (h Hit) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(h.Attrs)+2)
	for k, v := range h.Attrs {
		fields[k] = json.RawMessage(v)
	}
	video, _ := json.Marshal(h.VideoID)
	frame, _ := json.Marshal(h.FrameID)
	fields["video_id"] = video
	fields["frame_id"] = frame
	return json.Marshal(fields)
}

// scalarString accepts a JSON string or number and returns its text.
func scalarString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("expected string or number, got null")
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", trimmed)
	}
	return n.String(), nil
}
