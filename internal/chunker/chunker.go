// Package chunker splits raw document text into bounded, source-tagged
// fragments. Splitting is deterministic: paragraphs (blank-line separated)
// are packed greedily up to a target word count, and paragraphs that are
// too long on their own are broken at sentence boundaries.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/54b3r/docqa-go/internal/corpus"
)

// DefaultTargetSize is the target fragment size in words.
const DefaultTargetSize = 500

// paragraphSeparator separates paragraphs in the input and joins buffered
// pieces in the output.
const paragraphSeparator = "\n\n"

// Chunk splits text into an ordered sequence of fragments tagged with source.
// targetSize is the maximum fragment size in words; values <= 0 select
// DefaultTargetSize. A single sentence longer than targetSize is emitted as
// its own oversized fragment rather than being split mid-sentence.
// Empty or whitespace-only text yields no fragments. CRLF line endings are
// normalised to LF and each paragraph is trimmed before packing, so fragment
// text reproduces the document's paragraphs minus surrounding whitespace.
func Chunk(text, source string, targetSize int) []corpus.Fragment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	b := &builder{source: source, target: targetSize}

	for _, para := range strings.Split(text, paragraphSeparator) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		n := wordCount(para)
		b.flushOnOverflow(n)

		if n <= targetSize {
			b.add(para, n)
			continue
		}

		// Long paragraphs flush as soon as the buffer reaches the target,
		// which is stricter than the paragraph path above.
		for _, sentence := range SplitSentences(para) {
			sn := wordCount(sentence)
			b.flushOnOverflow(sn)
			b.add(sentence, sn)
			if b.words >= targetSize {
				b.flush()
			}
		}
	}

	b.flush()
	return b.out
}

// builder accumulates pieces of one document into fragments.
type builder struct {
	source string
	target int
	buf    []string
	words  int
	out    []corpus.Fragment
}

// flushOnOverflow emits the buffer if adding n more words would push it past
// the target.
func (b *builder) flushOnOverflow(n int) {
	if len(b.buf) > 0 && b.words+n > b.target {
		b.flush()
	}
}

func (b *builder) add(piece string, n int) {
	b.buf = append(b.buf, piece)
	b.words += n
}

// flush emits the buffer as a fragment. An empty buffer emits nothing.
func (b *builder) flush() {
	if len(b.buf) == 0 {
		return
	}
	b.out = append(b.out, corpus.Fragment{
		Text:   strings.Join(b.buf, paragraphSeparator),
		Source: b.source,
	})
	b.buf = b.buf[:0]
	b.words = 0
}

// SplitSentences splits a paragraph after every '.', '!' or '?' that is
// immediately followed by whitespace. The whitespace run is dropped and
// blank pieces are discarded.
func SplitSentences(paragraph string) []string {
	var out []string
	start := 0
	for i := 0; i < len(paragraph); {
		r, size := utf8.DecodeRuneInString(paragraph[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		j := i
		for j < len(paragraph) {
			ws, wsize := utf8.DecodeRuneInString(paragraph[j:])
			if !unicode.IsSpace(ws) {
				break
			}
			j += wsize
		}
		if j == i {
			continue
		}

		out = appendSentence(out, paragraph[start:i])
		start, i = j, j
	}
	return appendSentence(out, paragraph[start:])
}

func appendSentence(out []string, s string) []string {
	if strings.TrimSpace(s) == "" {
		return out
	}
	return append(out, s)
}

// wordCount counts whitespace-separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}
