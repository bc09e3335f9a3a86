// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import "strings"

// Delimiter separates frames.
const Delimiter = "\n\n"

// Splitter cuts a growing text stream into frames. The zero value is ready
// to use.
type Splitter struct {
	pending string
}

// Push appends text and returns every frame completed by it, in order.
// Empty frames are discarded. Text after the last delimiter is held until a
// later Push completes it.
func (s *Splitter) Push(text string) []string {
	if text == "" {
		return nil
	}

	// A delimiter can straddle the old tail and the new text, so resume
	// the search one byte before the join.
	start := len(s.pending) - 1
	if start < 0 {
		start = 0
	}
	buf := s.pending + text

	var frames []string
	for {
		i := strings.Index(buf[start:], Delimiter)
		if i < 0 {
			break
		}
		end := start + i
		if frame := buf[:end]; frame != "" {
			frames = append(frames, frame)
		}
		buf = buf[end+len(Delimiter):]
		start = 0
	}
	s.pending = buf
	return frames
}

// Pending returns the incomplete tail held back so far.
func (s *Splitter) Pending() string {
	return s.pending
}

// Reset discards the pending tail.
func (s *Splitter) Reset() {
	s.pending = ""
}

// SplitFrames splits a complete text in one go. The incomplete tail, if
// any, is returned separately and is not a frame.
func SplitFrames(text string) (frames []string, tail string) {
	var s Splitter
	frames = s.Push(text)
	return frames, s.Pending()
}
