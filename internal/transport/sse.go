// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bufio"
	"bytes"
	"io"
)

// MaxFrameSize is the maximum allowed size for a single event payload (64KB).
const MaxFrameSize = 64 * 1024

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader  *bufio.Reader
	maxSize int
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader:  bufio.NewReader(r),
		maxSize: MaxFrameSize,
	}
}

// ReadEvent reads the next SSE event from the stream.
// Returns the event type, data, and any error. The event type is empty for
// unnamed events. Multi-line data is joined with "\n".
//
// An event whose data exceeds the size limit is consumed whole and reported
// as ErrFrameTooLarge; the reader stays usable. Returns io.EOF when the
// stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	var hasData, oversized bool
	size := 0

	finish := func() (string, []byte, error) {
		if oversized {
			return eventType, nil, ErrFrameTooLarge
		}
		return eventType, bytes.Join(dataLines, []byte("\n")), nil
	}

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return "", nil, err
		}
		atEOF := err == io.EOF

		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 {
			if hasData {
				return finish()
			}
			if atEOF {
				return "", nil, io.EOF
			}
			// Blank line with no data resets the event type
			eventType = ""
			continue
		}

		field, value := splitField(line)
		switch string(field) {
		case "event":
			eventType = string(value)
		case "data":
			hasData = true
			size += len(value) + 1
			if size > s.maxSize {
				oversized = true
				dataLines = nil
			} else if !oversized {
				dataLines = append(dataLines, append([]byte(nil), value...))
			}
		}
		// Ignore other fields (id:, retry:) and comments starting with ':'

		if atEOF {
			// A final event without its trailing blank line still counts
			if hasData {
				return finish()
			}
			return "", nil, io.EOF
		}
	}
}

// splitField splits "field: value". A single space after the colon is
// dropped. Comment lines yield an empty field.
func splitField(line []byte) ([]byte, []byte) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return line, nil
	}
	value := line[idx+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return line[:idx], value
}
