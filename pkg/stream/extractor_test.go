package stream_test

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quillworksco/quill/pkg/stream"
)

// chunkedReader yields its fragments one Read call at a time, simulating a
// network stream whose chunk boundaries do not align with JSON objects.
type chunkedReader struct {
	chunks []string
	index  int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.index >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.index])
	r.index++
	return n, nil
}

// failingReader returns its fragments, then a non-EOF error.
type failingReader struct {
	chunks []string
	index  int
	err    error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.index >= len(r.chunks) {
		return 0, r.err
	}
	n := copy(p, r.chunks[r.index])
	r.index++
	return n, nil
}

func drain(ex *stream.Extractor) ([]json.RawMessage, error) {
	var frames []json.RawMessage
	for {
		frame, err := ex.Next()
		if err != nil {
			return frames, err
		}
		frames = append(frames, frame)
	}
}

var _ = Describe("Extractor", func() {
	Describe("Next", func() {
		It("extracts a single object from a single chunk", func() {
			ex := stream.NewExtractor(strings.NewReader(`{"event":"RunStarted"}`))

			frame, err := ex.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(frame)).To(Equal(`{"event":"RunStarted"}`))

			_, err = ex.Next()
			Expect(err).To(MatchError(io.EOF))
		})

		It("extracts multiple objects from a single chunk", func() {
			ex := stream.NewExtractor(strings.NewReader(`{"a":1} {"b":2}{"c":3}`))

			frames, err := drain(ex)
			Expect(err).To(MatchError(io.EOF))
			Expect(frames).To(HaveLen(3))
			Expect(string(frames[0])).To(Equal(`{"a":1}`))
			Expect(string(frames[1])).To(Equal(`{"b":2}`))
			Expect(string(frames[2])).To(Equal(`{"c":3}`))
		})

		It("reassembles an object split across chunks mid-string", func() {
			r := &chunkedReader{chunks: []string{
				`{"event":"RunContent","content":"he`,
				`llo wo`,
				`rld"}`,
			}}
			ex := stream.NewExtractor(r)

			frame, err := ex.Next()
			Expect(err).NotTo(HaveOccurred())

			var decoded map[string]any
			Expect(json.Unmarshal(frame, &decoded)).To(Succeed())
			Expect(decoded["content"]).To(Equal("hello world"))
		})

		It("yields the same frames for every chunking of the same bytes", func() {
			objects := []string{
				`{"event":"RunStarted","session_id":"s-1"}`,
				`{"event":"RunContent","content":"Writing copy..."}`,
				`{"event":"RunCompleted","content":"Done."}`,
			}
			raw := strings.Join(objects, "\n  \n")

			// Every split point, including chunk sizes of 1.
			for size := 1; size <= len(raw); size++ {
				var chunks []string
				for i := 0; i < len(raw); i += size {
					end := min(i+size, len(raw))
					chunks = append(chunks, raw[i:end])
				}

				ex := stream.NewExtractor(&chunkedReader{chunks: chunks})
				frames, err := drain(ex)
				Expect(err).To(MatchError(io.EOF))
				Expect(frames).To(HaveLen(len(objects)), "chunk size %d", size)
				for i, obj := range objects {
					Expect(string(frames[i])).To(Equal(obj))
				}
			}
		})

		It("does not split on braces inside string literals", func() {
			obj := `{"content":"a JSON snippet: {\"k\": {}} and } more"}`
			ex := stream.NewExtractor(strings.NewReader(obj))

			frame, err := ex.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(frame)).To(Equal(obj))
		})

		It("handles escaped quotes and backslashes inside strings", func() {
			obj := `{"content":"quote \" backslash \\ brace {"}`
			ex := stream.NewExtractor(strings.NewReader(obj))

			frame, err := ex.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(frame)).To(Equal(obj))
		})

		It("resynchronizes past a balanced but malformed span", func() {
			// The first span is brace-balanced yet invalid JSON; the
			// extractor must skip it and find the next object.
			input := `{bad json} {"ok":true}`
			ex := stream.NewExtractor(strings.NewReader(input))

			frame, err := ex.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(frame)).To(Equal(`{"ok":true}`))
		})

		It("ignores leading noise before the first object", func() {
			ex := stream.NewExtractor(strings.NewReader("some preamble text {\"a\":1}"))

			frame, err := ex.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(frame)).To(Equal(`{"a":1}`))
		})

		It("recovers a trailing complete object at stream end", func() {
			// No read returns after the final chunk, so the last object is
			// only seen by the end-of-stream recovery parse.
			r := &failingReader{
				chunks: []string{`{"a":1}{"b":`, `2}`},
				err:    errors.New("connection reset"),
			}
			ex := stream.NewExtractor(r)

			frame, err := ex.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(frame)).To(Equal(`{"a":1}`))

			frame, err = ex.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(frame)).To(Equal(`{"b":2}`))

			_, err = ex.Next()
			Expect(err).To(MatchError("connection reset"))
		})

		It("discards unparseable trailing bytes silently on EOF", func() {
			ex := stream.NewExtractor(strings.NewReader(`{"a":1}{"trunc`))

			frame, err := ex.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(frame)).To(Equal(`{"a":1}`))

			_, err = ex.Next()
			Expect(err).To(MatchError(io.EOF))
		})

		It("propagates reader errors after attempting trailing recovery", func() {
			r := &failingReader{
				chunks: []string{`{"partial`},
				err:    errors.New("timeout"),
			}
			ex := stream.NewExtractor(r)

			_, err := ex.Next()
			Expect(err).To(MatchError("timeout"))
		})

		It("returns EOF immediately for an empty stream", func() {
			ex := stream.NewExtractor(strings.NewReader(""))

			_, err := ex.Next()
			Expect(err).To(MatchError(io.EOF))
		})

		It("returns EOF for a stream of only whitespace", func() {
			ex := stream.NewExtractor(strings.NewReader("  \n\t \n"))

			_, err := ex.Next()
			Expect(err).To(MatchError(io.EOF))
		})
	})
})
