package ingest

import (
	"strings"
	"unicode/utf8"
)

// Separators ordered from "best" to "worst" for semantic meaning
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// splitTextIntoChunks cuts text into pieces of at most limit bytes, each new chunk
// starting with the last overlap bytes of the previous one
func splitTextIntoChunks(text string, limit int, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}
	if overlap >= limit {
		overlap = limit / 2
	}

	pieces := splitRecursive(text, limit-overlap, separators)

	var chunks []string
	var currentChunk strings.Builder
	overlapContent := ""

	for _, piece := range pieces {
		if currentChunk.Len() > len(overlapContent) && currentChunk.Len()+len(piece) > limit {
			chunks = append(chunks, strings.TrimSpace(currentChunk.String()))

			// start the next chunk with the end of the previous one
			overlapContent = tail(currentChunk.String(), overlap)
			currentChunk.Reset()
			currentChunk.WriteString(overlapContent)
		}
		currentChunk.WriteString(piece)
	}

	if currentChunk.Len() > len(overlapContent) {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}
	return chunks
}

// splitRecursive breaks text into pieces no longer than limit, keeping the separator
// attached to the end of each piece so the pieces concatenate back to text
func splitRecursive(text string, limit int, seps []string) []string {
	if len(text) <= limit {
		return []string{text}
	}

	sep, rest := "", []string(nil)
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	if sep == "" {
		return hardCut(text, limit)
	}

	var pieces []string
	parts := strings.SplitAfter(text, sep)
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) > limit {
			pieces = append(pieces, splitRecursive(part, limit, rest)...)
			continue
		}
		pieces = append(pieces, part)
	}
	return pieces
}

func hardCut(text string, limit int) []string {
	var pieces []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		pieces = append(pieces, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}

func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
