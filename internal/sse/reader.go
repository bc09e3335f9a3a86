// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readBufferSize matches a typical HTTP chunk.
const readBufferSize = 4096

// NewDecoder returns an incremental UTF-8 decoder. A multi-byte sequence
// split across inputs is held until complete; ill-formed bytes become
// U+FFFD, and so does a sequence still incomplete at end of input.
func NewDecoder() transform.Transformer {
	return unicode.UTF8.NewDecoder()
}

// TextReader yields decoded text fragments from a byte stream. It is not
// restartable: once Next returns io.EOF the reader is spent.
type TextReader struct {
	r   io.Reader
	buf []byte
}

// NewTextReader wraps body with the incremental decoder.
func NewTextReader(body io.Reader) *TextReader {
	return &TextReader{
		r:   transform.NewReader(body, NewDecoder()),
		buf: make([]byte, readBufferSize),
	}
}

// Next returns the next decoded fragment. It may return a fragment together
// with io.EOF or another error; callers process the fragment first.
func (t *TextReader) Next() (string, error) {
	for {
		n, err := t.r.Read(t.buf)
		if n > 0 || err != nil {
			return string(t.buf[:n]), err
		}
	}
}
