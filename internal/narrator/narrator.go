// Package narrator prepares a story for read-aloud narration: it splits the
// body into segments, detects each segment's tone and position, inserts pause
// markers and picks voice settings. Audio synthesis is left to the caller.
package narrator

import (
	"regexp"
	"strings"

	"github.com/Yates-Labs/beanstalk/internal/engine"
)

// Tone is the detected emotional register of a segment.
type Tone string

const (
	ToneExciting  Tone = "exciting"
	ToneCalm      Tone = "calm"
	ToneTense     Tone = "tense"
	ToneResolving Tone = "resolving"
	ToneNeutral   Tone = "neutral"
)

// Position is where a segment sits in the story.
type Position string

const (
	PositionBeginning Position = "beginning"
	PositionMiddle    Position = "middle"
	PositionEnding    Position = "ending"
)

// Pause markers understood by common text-to-speech engines.
const (
	shortPause   = "."
	pause        = "..."
	longPause    = "... ..."
	sectionBreak = "... ... ..."
)

// VoiceSettings are the expressiveness parameters for one segment.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

var (
	excitedVoice  = VoiceSettings{Stability: 0.7, SimilarityBoost: 0.75, Style: 0.3, SpeakerBoost: true}
	soothingVoice = VoiceSettings{Stability: 0.9, SimilarityBoost: 0.8, Style: 0.1, SpeakerBoost: true}
	tenseVoice    = VoiceSettings{Stability: 0.75, SimilarityBoost: 0.75, Style: 0.25, SpeakerBoost: true}
	balancedVoice = VoiceSettings{Stability: 0.85, SimilarityBoost: 0.75, Style: 0.15, SpeakerBoost: true}
	overallCalm   = VoiceSettings{Stability: 0.85, SimilarityBoost: 0.75, Style: 0.15, SpeakerBoost: true}
	overallMixed  = VoiceSettings{Stability: 0.8, SimilarityBoost: 0.75, Style: 0.2, SpeakerBoost: true}
)

// toneWords are checked in this order; the first tone with the highest count wins.
var toneWords = []struct {
	tone  Tone
	words []string
}{
	{ToneExciting, []string{"wow", "amazing", "incredible", "fantastic", "wonderful", "exclaimed", "shouted", "cheered", "jumped", "danced"}},
	{ToneCalm, []string{"peaceful", "quiet", "gentle", "soft", "calm", "serene", "whispered", "sighed", "yawned", "drowsy", "sleepy"}},
	{ToneTense, []string{"worried", "nervous", "scared", "afraid", "trembled", "problem", "trouble", "danger", "oh no", "help"}},
	{ToneResolving, []string{"solved", "fixed", "better", "safe", "together", "figured out", "realized", "understood", "happy"}},
}

// Segment is one narrated paragraph.
type Segment struct {
	Index       int           `json:"index"`
	Original    string        `json:"original"`
	Processed   string        `json:"processed"`
	Tone        Tone          `json:"tone"`
	Position    Position      `json:"position"`
	HasDialogue bool          `json:"has_dialogue"`
	Voice       VoiceSettings `json:"voice"`
}

// Script is a story prepared for narration.
type Script struct {
	Title    string        `json:"title"`
	Segments []Segment     `json:"segments"`
	Text     string        `json:"text"`
	Voice    VoiceSettings `json:"voice"`
}

// Prepare builds the narration script for story.
func Prepare(story engine.Story) Script {
	paragraphs := splitParagraphs(story.Body)

	segments := make([]Segment, len(paragraphs))
	for i, p := range paragraphs {
		segments[i] = process(Segment{
			Index:       i,
			Original:    p,
			Tone:        DetectTone(p),
			Position:    PositionOf(i, len(paragraphs)),
			HasDialogue: strings.Count(p, `"`) >= 2,
		})
	}

	title := strings.TrimSpace(story.Title)
	if title == "" {
		title = "Story"
	}
	return Script{
		Title:    title,
		Segments: segments,
		Text:     combine(segments),
		Voice:    overallVoice(segments),
	}
}

func splitParagraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DetectTone returns the dominant tone of text. Ties go to the earlier tone
// in the exciting, calm, tense, resolving order; no indicator means neutral.
func DetectTone(text string) Tone {
	lower := strings.ToLower(text)
	best, bestCount := ToneNeutral, 0
	for _, tw := range toneWords {
		count := 0
		for _, w := range tw.words {
			if strings.Contains(lower, w) {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = tw.tone, count
		}
	}
	return best
}

// PositionOf places paragraph index of total by its relative position.
func PositionOf(index, total int) Position {
	denom := total - 1
	if denom < 1 {
		denom = 1
	}
	ratio := float64(index) / float64(denom)
	switch {
	case ratio < 0.2:
		return PositionBeginning
	case ratio < 0.8:
		return PositionMiddle
	default:
		return PositionEnding
	}
}

var (
	sleepyWord  = regexp.MustCompile(`(?i)\b(yawned|sleepy|drowsy|tired)\b`)
	troubleWord = regexp.MustCompile(`(?i)\b(oh no|help)\b`)
	bedtimeWord = regexp.MustCompile(`(?i)\b(dream|sleep|night|rest|cozy|warm)\b`)
	theEnd      = regexp.MustCompile(`(?i)(the end\.?)`)
	dialogue    = regexp.MustCompile(`"([^"]+)"`)
	wowWord     = regexp.MustCompile(` (Wow|Amazing|Incredible)\b`)
)

func process(seg Segment) Segment {
	text := seg.Original

	switch {
	case seg.Tone == ToneExciting:
		text = wowWord.ReplaceAllString(text, " "+pause+"$1")
		seg.Voice = excitedVoice
	case seg.Tone == ToneCalm || seg.Position == PositionEnding:
		// endings get their own, longer sentence pauses below
		if seg.Position != PositionEnding {
			text = strings.ReplaceAll(text, ". ", ". "+pause+" ")
		}
		text = sleepyWord.ReplaceAllString(text, pause+" $1")
		seg.Voice = soothingVoice
	case seg.Tone == ToneTense:
		text = strings.ReplaceAll(text, ", ", ", "+shortPause+" ")
		text = troubleWord.ReplaceAllString(text, pause+" $1")
		seg.Voice = tenseVoice
	default:
		text = strings.ReplaceAll(text, ", ", ", "+shortPause+" ")
		text = strings.ReplaceAll(text, ". ", ". .. ")
		seg.Voice = balancedVoice
	}

	switch seg.Position {
	case PositionBeginning:
		text = pause + " " + text
	case PositionEnding:
		text = bedtimeEnding(text)
	}

	if seg.HasDialogue {
		text = dialogue.ReplaceAllString(text, `"$1" `+shortPause)
	}

	seg.Processed = text
	return seg
}

func bedtimeEnding(text string) string {
	text = strings.ReplaceAll(text, ". ", ". "+longPause+" ")
	text = strings.ReplaceAll(text, ", ", ", "+pause+" ")
	text = theEnd.ReplaceAllString(text, longPause+" $1")
	return bedtimeWord.ReplaceAllString(text, pause+" $1 "+pause)
}

func combine(segments []Segment) string {
	parts := make([]string, 0, 2*len(segments))
	for i, s := range segments {
		if i > 0 {
			parts = append(parts, sectionBreak)
		}
		parts = append(parts, s.Processed)
	}
	return strings.Join(parts, "\n\n")
}

// overallVoice picks one setting for engines that cannot switch mid-text.
func overallVoice(segments []Segment) VoiceSettings {
	if len(segments) == 0 {
		return overallCalm
	}
	last := segments[len(segments)-1]
	if last.Tone == ToneCalm || last.Tone == ToneNeutral || last.Position == PositionEnding {
		return overallCalm
	}
	return overallMixed
}
