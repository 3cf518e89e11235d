package chunker

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/54b3r/docqa-go/internal/corpus"
)

func texts(frags []corpus.Fragment) []string {
	out := make([]string, len(frags))
	for i, f := range frags {
		out[i] = f.Text
	}
	return out
}

func TestChunk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		target int
		want   []string
	}{
		{
			name:   "empty input",
			text:   "",
			target: 500,
			want:   nil,
		},
		{
			name:   "whitespace only",
			text:   " \n\n \t\n\n",
			target: 500,
			want:   nil,
		},
		{
			name:   "short text is one fragment",
			text:   "Hello world.\n\nSecond paragraph here.",
			target: 500,
			want:   []string{"Hello world.\n\nSecond paragraph here."},
		},
		{
			name:   "threshold crossed after first paragraph",
			text:   "Para one word word.\n\nPara two.",
			target: 3,
			want:   []string{"Para one word word.", "Para two."},
		},
		{
			name:   "paragraphs packed up to target",
			text:   "a b\n\nc d\n\ne f",
			target: 4,
			want:   []string{"a b\n\nc d", "e f"},
		},
		{
			name:   "paragraph overflow flushes before adding",
			text:   "a b c\n\nd e f",
			target: 5,
			want:   []string{"a b c", "d e f"},
		},
		{
			name:   "blank paragraphs discarded",
			text:   "one two\n\n\n\n   \n\nthree",
			target: 10,
			want:   []string{"one two\n\nthree"},
		},
		{
			name:   "long paragraph flushes as soon as target reached",
			text:   "One two. Three four. Five six.",
			target: 4,
			want:   []string{"One two.\n\nThree four.", "Five six."},
		},
		{
			name:   "long paragraph flushes pending buffer first",
			text:   "Intro.\n\nAlpha beta gamma. Delta epsilon zeta.",
			target: 4,
			want:   []string{"Intro.", "Alpha beta gamma.", "Delta epsilon zeta."},
		},
		{
			name:   "oversized sentence kept whole",
			text:   "Intro here\n\nThis sentence has far too many words",
			target: 3,
			want:   []string{"Intro here", "This sentence has far too many words"},
		},
		{
			name:   "question and exclamation boundaries",
			text:   "Is it? Yes it is! Done now.",
			target: 2,
			want:   []string{"Is it?", "Yes it is!", "Done now."},
		},
		{
			name:   "crlf paragraphs",
			text:   "first para\r\n\r\nsecond para",
			target: 2,
			want:   []string{"first para", "second para"},
		},
		{
			name:   "paragraph padding trimmed",
			text:   "  first para \n\n\tsecond para  \r\n",
			target: 10,
			want:   []string{"first para\n\nsecond para"},
		},
		{
			name:   "non-positive target uses default",
			text:   "just a few words",
			target: 0,
			want:   []string{"just a few words"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Chunk(tc.text, "doc1", tc.target)
			if !slices.Equal(texts(got), tc.want) {
				t.Errorf("Chunk() texts:\n got  %q\n want %q", texts(got), tc.want)
			}
			for i, f := range got {
				if f.Source != "doc1" {
					t.Errorf("fragment %d: source = %q, want doc1", i, f.Source)
				}
			}
		})
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"No boundary here", []string{"No boundary here"}},
		{"Version 1.2 is out. Yes.", []string{"Version 1.2 is out.", "Yes."}},
		{"Wait... what?  Really.", []string{"Wait...", "what?", "Really."}},
		{"Trailing space. ", []string{"Trailing space."}},
		{"Line.\nBreak.", []string{"Line.", "Break."}},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			if got := SplitSentences(tc.in); !slices.Equal(got, tc.want) {
				t.Errorf("SplitSentences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

// randomDocument builds prose with a mix of short and long paragraphs,
// extra blank lines, and sentence punctuation.
func randomDocument(r *rand.Rand) string {
	vocab := []string{"alpha", "beta", "gamma", "budget", "plan", "infra", "cost", "team", "q3", "roadmap"}
	enders := []string{".", "!", "?"}

	var paras []string
	for range 1 + r.IntN(12) {
		var sentences []string
		for range 1 + r.IntN(8) {
			words := make([]string, 1+r.IntN(15))
			for i := range words {
				words[i] = vocab[r.IntN(len(vocab))]
			}
			sentences = append(sentences, strings.Join(words, " ")+enders[r.IntN(len(enders))])
		}
		paras = append(paras, strings.Join(sentences, " "))
		if r.IntN(4) == 0 {
			paras = append(paras, "   ")
		}
	}
	return strings.Join(paras, "\n\n")
}

func TestChunk_Properties(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(42, 7))
	for iter := range 200 {
		doc := randomDocument(r)
		target := 1 + r.IntN(60)
		frags := Chunk(doc, "src", target)

		// Lossless: the word stream survives chunking unchanged.
		var rebuilt []string
		for _, f := range frags {
			rebuilt = append(rebuilt, f.Text)
		}
		if !slices.Equal(strings.Fields(strings.Join(rebuilt, "\n\n")), strings.Fields(doc)) {
			t.Fatalf("iter %d target %d: word stream not preserved", iter, target)
		}

		for i, f := range frags {
			if strings.TrimSpace(f.Text) == "" {
				t.Fatalf("iter %d: fragment %d is empty", iter, i)
			}
			// Only a lone indivisible sentence may exceed the target.
			if n := wordCount(f.Text); n > target {
				if strings.Contains(f.Text, "\n\n") || len(SplitSentences(f.Text)) != 1 {
					t.Fatalf("iter %d target %d: fragment %d has %d words and is not a single sentence: %q",
						iter, target, i, n, f.Text)
				}
			}
		}
	}
}

func TestChunk_ShortTextIsIdempotent(t *testing.T) {
	t.Parallel()

	in := "The infrastructure plan covers three regions.\n\nBudget is approved."
	first := Chunk(in, "plan.txt", 500)
	if len(first) != 1 || first[0].Text != in {
		t.Fatalf("want single fragment equal to input, got %q", texts(first))
	}
	second := Chunk(first[0].Text, "plan.txt", 500)
	if len(second) != 1 || second[0] != first[0] {
		t.Errorf("re-chunking changed the fragment: %q", texts(second))
	}
}
