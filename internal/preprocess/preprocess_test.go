package preprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreprocess_AllOutputsSpeakable(t *testing.T) {
	inputs := []string{
		"Hello world. It works.",
		"```\ncode\n```",
		"# Title\n\nSome **bold** and _italic_ text with a [link](http://example.com).",
		"",
		"1.5 is not the same as 1.6.",
	}
	for _, in := range inputs {
		for _, s := range Preprocess(in) {
			assert.True(t, IsSpeakable(s), "sentence %q should be speakable", s)
		}
	}
}

func TestPreprocess_FencedCodeBeforeInlineCode(t *testing.T) {
	out := Preprocess("before ```x`y`z``` after")
	joined := strings.Join(out, " ")
	assert.NotContains(t, joined, "`")
}

func TestPreprocess_ParagraphsYieldSeparateSentences(t *testing.T) {
	out := Preprocess("Animals are friendly creatures.\n\nBirds fly south for winter.\n\nCats nap in sunlight often.")
	assert.GreaterOrEqual(t, len(out), 3)
}

func TestPreprocess_ProsodyPunctuationSurvives(t *testing.T) {
	input := "Wait—really? Yes… she said “hello” and ‘goodbye’, ok -- sure..."
	out := Preprocess(input)
	joined := strings.Join(out, " ")
	for _, marker := range []string{"—", "…", "“", "”", "‘", "’", "?", "--", "..."} {
		assert.Contains(t, joined, marker)
	}
}

func TestPreprocess_SkipPath(t *testing.T) {
	out := Preprocess("```\ncode\n```")
	assert.Empty(t, out)
}

func TestStripMarkdown_Headings(t *testing.T) {
	assert.Equal(t, "Title", StripMarkdown("### Title"))
}

func TestStripMarkdown_Emphasis(t *testing.T) {
	assert.Equal(t, "bold and italic", StripMarkdown("**bold** and *italic*"))
}

func TestStripMarkdown_Links(t *testing.T) {
	assert.Equal(t, "see docs", StripMarkdown("see [docs](https://example.com/docs)"))
}

func TestStripMarkdown_BareURL(t *testing.T) {
	assert.Equal(t, "visit", StripMarkdown("visit https://example.com"))
}

func TestIsSpeakable(t *testing.T) {
	assert.True(t, IsSpeakable("Hello there, friend."))
	assert.False(t, IsSpeakable("{\"a\": 1, \"b\": 2}"))
	assert.False(t, IsSpeakable(""))
	assert.False(t, IsSpeakable("   "))
}

func TestSegmentSentences_Empty(t *testing.T) {
	assert.Empty(t, SegmentSentences(""))
	assert.Empty(t, SegmentSentences("   "))
}
