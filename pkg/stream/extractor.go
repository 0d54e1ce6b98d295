// Package stream implements the client side of a streaming run response:
// extracting complete JSON frames from an arbitrarily-chunked byte stream,
// and accumulating the resulting events into a displayable answer.
package stream

import (
	"bytes"
	"encoding/json"
	"io"
)

const readChunkSize = 4 * 1024

// Extractor incrementally pulls complete top-level JSON objects out of a
// byte stream. Frames are emitted as soon as they are syntactically
// complete - the stream does not need to close first - and chunk boundaries
// may fall anywhere, including mid-object or mid-string.
//
// The upstream API concatenates JSON objects with optional whitespace
// between them; it is not SSE-framed and not guaranteed newline-delimited,
// so line-based scanning does not work here.
type Extractor struct {
	r     io.Reader
	buf   []byte
	chunk []byte

	// readErr is the terminal error from the underlying reader, surfaced
	// only after the trailing-buffer recovery has had its one attempt.
	readErr error
	done    bool
}

// NewExtractor returns an Extractor reading from r.
func NewExtractor(r io.Reader) *Extractor {
	return &Extractor{
		r:     r,
		chunk: make([]byte, readChunkSize),
	}
}

// Next returns the next complete JSON object from the stream, blocking on
// the underlying reader until enough bytes have arrived. It returns io.EOF
// once the stream is exhausted, or the reader's error after a best-effort
// attempt to parse whatever remains buffered.
//
// Malformed spans that scanned as balanced (braces inside a string that
// were mis-counted upstream, truncated garbage between frames) are skipped
// by resynchronizing on the next "{" rather than failing the stream.
func (e *Extractor) Next() (json.RawMessage, error) {
	for {
		if frame := e.extract(); frame != nil {
			return frame, nil
		}

		if e.done {
			return e.finish()
		}

		n, err := e.r.Read(e.chunk)
		if n > 0 {
			e.buf = append(e.buf, e.chunk[:n]...)
		}
		if err != nil {
			e.done = true
			e.readErr = err
		}
	}
}

// extract scans the buffer for the next complete object and consumes it.
// Returns nil when the buffer holds no complete object yet.
func (e *Extractor) extract() json.RawMessage {
	for {
		start := bytes.IndexByte(e.buf, '{')
		if start < 0 {
			// Nothing that could open an object; wait for more data.
			return nil
		}

		end, complete := scanObject(e.buf, start)
		if !complete {
			return nil
		}

		span := e.buf[start : end+1]
		if json.Valid(span) {
			frame := make(json.RawMessage, len(span))
			copy(frame, span)
			e.buf = bytes.TrimLeft(e.buf[end+1:], " \t\r\n")
			return frame
		}

		// Balanced but not valid JSON: resynchronize on the next "{"
		// past the bad opening brace instead of abandoning the buffer.
		next := bytes.IndexByte(e.buf[start+1:], '{')
		if next < 0 {
			e.buf = nil
			return nil
		}
		e.buf = e.buf[start+1+next:]
	}
}

// finish handles stream termination: unconsumed buffered text gets one
// last whole-buffer parse attempt and is otherwise discarded silently.
// The terminal read error is surfaced on the following call.
func (e *Extractor) finish() (json.RawMessage, error) {
	rest := bytes.TrimSpace(e.buf)
	e.buf = nil

	if len(rest) > 0 && json.Valid(rest) {
		frame := make(json.RawMessage, len(rest))
		copy(frame, rest)
		return frame, nil
	}

	if e.readErr == nil {
		return nil, io.EOF
	}
	return nil, e.readErr
}

// scanObject walks buf from the opening brace at start, counting brace
// depth while tracking double-quoted strings and backslash escapes, so
// braces inside string literals are not counted. Returns the index of the
// matching close brace and whether the object is complete in buf.
func scanObject(buf []byte, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(buf); i++ {
		c := buf[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}
