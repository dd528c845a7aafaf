// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes streamed chat-completion responses into text
// fragments.
//
// The wire format is line oriented. Lines starting with "data: " carry
// either the literal [DONE] or a JSON object of the form
//
//	{"choices":[{"delta":{"content":"..."}}]}
//
// Every other line is ignored. Malformed frames are counted and skipped;
// they never end the stream.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// MaxLineSize is the longest line accepted. Longer lines are discarded.
const MaxLineSize = 64 * 1024

// DoneToken ends the stream.
const DoneToken = "[DONE]"

var dataPrefix = []byte("data: ")

// ErrParseSkip marks a frame that was dropped. It is only logged.
var ErrParseSkip = errors.New("stream: malformed frame skipped")

// =============================================================================
// FRAME PAYLOAD
// =============================================================================

// Chunk is the JSON payload of a data frame.
type Chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Content returns the first choice's delta content.
func (c *Chunk) Content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder yields the text fragments of one response body. It is not safe
// for concurrent use and cannot be restarted.
type Decoder struct {
	r       *bufio.Reader
	maxLine int
	logger  zerolog.Logger

	line    []byte
	pending error // delivered after the current fragment
	err     error // terminal result

	frames  int
	skipped int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger logs skipped frames at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Decoder) { d.logger = l }
}

// WithMaxLineSize overrides MaxLineSize.
func WithMaxLineSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxLine = n
		}
	}
}

// NewDecoder reads frames from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		r:       bufio.NewReader(r),
		maxLine: MaxLineSize,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next non-empty fragment. At the end of the stream,
// whether by EOF or [DONE], it returns io.EOF. Transport errors are
// returned as is. Once Next has returned an error it keeps returning it.
func (d *Decoder) Next() (string, error) {
	for d.err == nil {
		if d.pending != nil {
			d.err = d.pending
			break
		}

		line, oversized, err := d.readLine()
		if err != nil && err != io.EOF {
			// The partial line is incomplete; drop it.
			d.err = err
			break
		}
		if err == io.EOF {
			d.pending = io.EOF
		}

		if oversized {
			d.skip(fmt.Errorf("line exceeds %d bytes", d.maxLine))
			continue
		}

		fragment, done := d.handleLine(line)
		if done {
			d.err = io.EOF
			break
		}
		if fragment != "" {
			return fragment, nil
		}
	}
	return "", d.err
}

// All ranges over the remaining fragments. A transport error is yielded
// once as the final element; a clean end yields nothing.
func (d *Decoder) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			fragment, err := d.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// Frames returns the number of data frames seen, including [DONE].
func (d *Decoder) Frames() int {
	return d.frames
}

// Skipped returns the number of frames dropped as malformed.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// readLine reads up to and including the next '\n'. Lines longer than the
// limit are consumed but reported as oversized instead of returned.
func (d *Decoder) readLine() ([]byte, bool, error) {
	d.line = d.line[:0]
	oversized := false
	limit := d.maxLine + 2 // room for "\r\n"

	for {
		chunk, err := d.r.ReadSlice('\n')
		if !oversized {
			if len(d.line)+len(chunk) > limit {
				oversized = true
				d.line = d.line[:0]
			} else {
				d.line = append(d.line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if !oversized && len(bytes.TrimRight(d.line, "\r\n")) > d.maxLine {
			oversized = true
		}
		return d.line, oversized, err
	}
}

// handleLine returns the fragment carried by line and whether the stream
// is finished.
func (d *Decoder) handleLine(line []byte) (string, bool) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, dataPrefix) {
		return "", false
	}
	d.frames++

	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if string(payload) == DoneToken {
		return "", true
	}
	if !utf8.Valid(payload) {
		d.skip(errors.New("payload is not valid UTF-8"))
		return "", false
	}

	var chunk Chunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		d.skip(err)
		return "", false
	}
	return chunk.Content(), false
}

func (d *Decoder) skip(cause error) {
	d.skipped++
	d.logger.Debug().
		Err(fmt.Errorf("%w: %v", ErrParseSkip, cause)).
		Int("frame", d.frames).
		Msg("skipping stream frame")
}
