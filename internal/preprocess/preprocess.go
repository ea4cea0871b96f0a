// Package preprocess turns arbitrary UTF-8 text, possibly Markdown, into an
// ordered list of speakable sentences: paragraph split, markdown strip,
// sentence segmentation, speakability filter.
//
// Grounded on agenttalk/preprocessor.py (exact markdown-strip step order and
// the 0.40 alpha-ratio speakability threshold) and the teacher's
// pkg/tts/parser.go (abbreviation/decimal/ellipsis protection around
// sentence-boundary splitting, used here in place of an external segmenter —
// no example repo in the pack exercises one).
package preprocess

import (
	"regexp"
	"strings"
	"unicode"
)

// SpeakabilityThreshold is the minimum alphabetic-character ratio a sentence
// must clear to be worth synthesizing. Empirical, tunable (§9 Open Question).
const SpeakabilityThreshold = 0.40

var (
	paragraphSplitPattern = regexp.MustCompile(`\n{2,}`)

	fencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern   = regexp.MustCompile("`([^`\n]+)`")
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	bareURLPattern      = regexp.MustCompile(`https?://\S+`)
	atxHeadingPattern   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquotePattern   = regexp.MustCompile(`(?m)^>\s+`)
	listBulletPattern   = regexp.MustCompile(`(?m)^[-*+]\s+`)
	whitespacePattern   = regexp.MustCompile(`\s+`)

	// Sentence-boundary protection: abbreviations, decimals, and ellipses
	// must not be treated as sentence-ending punctuation.
	abbreviationPattern = regexp.MustCompile(`\b(Mr|Mrs|Ms|Dr|Prof|Sr|Jr|vs|etc|Inc|Ltd|Co|St|e\.g|i\.e)\.`)
	decimalPattern      = regexp.MustCompile(`(\d)\.(\d)`)
	ellipsisPattern     = regexp.MustCompile(`\.\.\.`)

	// Sentence end: terminal punctuation followed by whitespace (boundary
	// kept as part of the preceding sentence, whitespace consumed).
	sentenceEndPattern = regexp.MustCompile(`[.!?]+[\x{201D}\x{2019}"']?\s+`)
)

// Preprocess runs the full pipeline: paragraph split, per-paragraph markdown
// strip, sentence segmentation, speakability filter. Any internal failure
// (none expected from pure regex work, but the caller-facing contract from
// §4.1's "Failure mode") degrades to an empty list rather than panicking.
func Preprocess(text string) (sentences []string) {
	defer func() {
		if recover() != nil {
			sentences = nil
		}
	}()

	paragraphs := paragraphSplitPattern.Split(text, -1)
	var out []string
	for _, para := range paragraphs {
		cleaned := StripMarkdown(para)
		if cleaned == "" {
			continue
		}
		for _, s := range SegmentSentences(cleaned) {
			s = strings.TrimSpace(s)
			if IsSpeakable(s) {
				out = append(out, s)
			}
		}
	}
	return out
}

// StripMarkdown removes markdown syntax from one paragraph, in the fixed
// order the sentence-boundary and speakability steps depend on. Prosody
// punctuation (em-dash, ellipsis, curly quotes, !, ?, --, ...) passes
// through unchanged.
func StripMarkdown(text string) string {
	// 1. Fenced code blocks — before inline code, so interior backticks
	// never leak through as orphaned delimiters.
	text = fencedCodePattern.ReplaceAllString(text, " ")

	// 2. Inline code spans — unwrap.
	text = inlineCodePattern.ReplaceAllString(text, "$1")

	// 3. Markdown links — before bare URL stripping, or the parenthetical
	// URL in [text](url) would be partially consumed first.
	text = markdownLinkPattern.ReplaceAllString(text, "$1")

	// 4. Bare URLs.
	text = bareURLPattern.ReplaceAllString(text, "")

	// 5. ATX headings.
	text = atxHeadingPattern.ReplaceAllString(text, "")

	// 6. Emphasis markers, 1-3 repetitions of * or _.
	text = stripEmphasis(text)

	// 7. Blockquote prefix.
	text = blockquotePattern.ReplaceAllString(text, "")

	// 8. List bullet prefix.
	text = listBulletPattern.ReplaceAllString(text, "")

	// 9. Whitespace collapse.
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// stripEmphasis unwraps **bold**, *italic*, __bold__, _italic_. Go's RE2
// engine has no backreferences, so matching pairs are found with a small
// scan rather than a single regexp, trying the longest markers first.
func stripEmphasis(text string) string {
	for _, marker := range []string{"***", "___", "**", "__", "*", "_"} {
		text = unwrapMarker(text, marker)
	}
	return text
}

func unwrapMarker(text, marker string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, marker)
		if start < 0 {
			b.WriteString(text)
			break
		}
		rest := text[start+len(marker):]
		end := strings.Index(rest, marker)
		if end < 0 {
			b.WriteString(text)
			break
		}
		inner := rest[:end]
		if inner == "" || strings.Contains(inner, "\n") {
			// Not a valid emphasis span; keep the marker literally and
			// keep scanning past it.
			b.WriteString(text[:start+len(marker)])
			text = text[start+len(marker):]
			continue
		}
		b.WriteString(text[:start])
		b.WriteString(inner)
		text = rest[end+len(marker):]
	}
	return b.String()
}

// SegmentSentences splits cleaned text into sentences. A fresh call carries
// no state across invocations, matching the original's fresh-segmenter-per-
// call contract (thread safety without shared mutable state).
func SegmentSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	protected, restore := protectSpecialPatterns(text)

	var sentences []string
	last := 0
	for _, loc := range sentenceEndPattern.FindAllStringIndex(protected, -1) {
		sentences = append(sentences, protected[last:loc[1]])
		last = loc[1]
	}
	if last < len(protected) {
		sentences = append(sentences, protected[last:])
	}

	result := make([]string, 0, len(sentences))
	for _, s := range sentences {
		s = restore(s)
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

// protectSpecialPatterns replaces sentence-boundary-ambiguous punctuation
// (abbreviations, decimals, ellipses) with placeholder tokens so the
// boundary regex doesn't split on them, and returns a restore function that
// reverses the substitution on a finished sentence fragment.
func protectSpecialPatterns(text string) (string, func(string) string) {
	const (
		abbrevToken  = "\x00ABBR\x00"
		decimalToken = "\x00DEC\x00"
		ellipsisTok  = "\x00ELL\x00"
	)

	text = ellipsisPattern.ReplaceAllString(text, ellipsisTok)
	text = decimalPattern.ReplaceAllString(text, "$1"+decimalToken+"$2")
	text = abbreviationPattern.ReplaceAllStringFunc(text, func(m string) string {
		return strings.TrimSuffix(m, ".") + abbrevToken
	})

	restore := func(s string) string {
		s = strings.ReplaceAll(s, abbrevToken, ".")
		s = strings.ReplaceAll(s, decimalToken, ".")
		s = strings.ReplaceAll(s, ellipsisTok, "...")
		return s
	}
	return text, restore
}

// IsSpeakable reports whether a trimmed sentence has enough alphabetic
// content to be worth synthesizing (alpha ratio >= SpeakabilityThreshold).
func IsSpeakable(sentence string) bool {
	cleaned := strings.TrimSpace(sentence)
	if cleaned == "" {
		return false
	}
	var alpha, total int
	for _, r := range cleaned {
		total++
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if total == 0 {
		return false
	}
	return float64(alpha)/float64(total) >= SpeakabilityThreshold
}
