package story

import (
	"regexp"
	"strings"
	"unicode"
)

const sentencesPerParagraph = 4

var blankLine = regexp.MustCompile(`\n[ \t\r]*\n`)

// sceneCues are sentence openings that mark a change of scene.
var sceneCues = []string{
	"the next day",
	"the next morning",
	"later that",
	"that night",
	"meanwhile",
	"suddenly",
	"one day",
	"the following",
	"when morning came",
	"after a while",
}

// HasParagraphBreaks reports whether body already contains a blank-line paragraph break.
func HasParagraphBreaks(body string) bool {
	return blankLine.MatchString(body)
}

// RepairParagraphs splits a wall of text into paragraphs. A new paragraph
// starts before any scene-change sentence, otherwise after every four
// sentences. Bodies that already contain paragraph breaks are returned as is.
func RepairParagraphs(body string) string {
	body = strings.TrimSpace(body)
	if body == "" || HasParagraphBreaks(body) {
		return body
	}

	var paragraphs []string
	var current []string
	for _, sentence := range splitSentences(body) {
		if len(current) > 0 && (startsScene(sentence) || len(current) == sentencesPerParagraph) {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
		current = append(current, sentence)
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}
	return strings.Join(paragraphs, "\n\n")
}

// splitSentences splits on runs of '.', '!' and '?' followed by whitespace,
// keeping trailing closing quotes and brackets with their sentence.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && (isTerminator(runes[end]) || isCloser(runes[end])) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}
		if s := strings.Join(strings.Fields(string(runes[start:end])), " "); s != "" {
			sentences = append(sentences, s)
		}
		start = end
		i = end - 1
	}
	if start < len(runes) {
		if s := strings.Join(strings.Fields(string(runes[start:])), " "); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')':
		return true
	}
	return false
}

func startsScene(sentence string) bool {
	s := strings.ToLower(strings.TrimLeft(sentence, "\"'“‘("))
	for _, cue := range sceneCues {
		if strings.HasPrefix(s, cue) {
			return true
		}
	}
	return false
}
