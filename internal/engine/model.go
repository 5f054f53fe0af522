package engine

import (
	"strings"
)

// SchemaVersion is the current version of the persisted story data model.
const SchemaVersion = "v1"

// Dimension names one axis of the story quality rubric.
type Dimension string

const (
	DimCharacterConnection Dimension = "character_connection"
	DimBedtimeAppropriate  Dimension = "bedtime_appropriate"
	DimStorytellingCraft   Dimension = "storytelling_craft"
	DimAgeAppropriate      Dimension = "age_appropriate"
)

// Dimensions lists the rubric dimensions in their canonical order.
// Ties between equal scores are always broken by this order.
var Dimensions = []Dimension{
	DimCharacterConnection,
	DimBedtimeAppropriate,
	DimStorytellingCraft,
	DimAgeAppropriate,
}

// StoryRequest is the classifier's verdict on raw user input.
// Valid requests carry NormalizedText and no RejectionHint; rejected ones the reverse.
type StoryRequest struct {
	RawText        string `json:"raw_text"`
	Valid          bool   `json:"valid"`
	NormalizedText string `json:"normalized_text"`
	RejectionHint  string `json:"rejection_hint,omitempty"`
}

// Protagonist describes the lead character of an outline.
type Protagonist struct {
	Name        string `json:"name"`
	Age         string `json:"age"`
	Personality string `json:"personality"`
	Type        string `json:"type"`
}

// Helper is a supporting character in an outline.
type Helper struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Role string `json:"role"`
}

// StoryOutline is the planning stage output of two-pass generation.
type StoryOutline struct {
	Protagonist Protagonist `json:"protagonist"`
	Helpers     []Helper    `json:"helpers"`
	Setting     string      `json:"setting"`
	Conflict    string      `json:"conflict"`
	KeyEvents   []string    `json:"key_events"`
	Resolution  string      `json:"resolution"`
	Theme       string      `json:"theme"`
}

// Story is a finished bedtime story. All three fields are non-empty for any
// value handed back to a caller.
type Story struct {
	Title string `json:"title"`
	Body  string `json:"story"`
	Moral string `json:"moral"`
}

// WordCount returns the number of whitespace-separated words in the body.
func (s Story) WordCount() int {
	return CountWords(s.Body)
}

// Complete reports whether all three story fields carry text.
func (s Story) Complete() bool {
	return strings.TrimSpace(s.Title) != "" &&
		strings.TrimSpace(s.Body) != "" &&
		strings.TrimSpace(s.Moral) != ""
}

// LengthCheck is the deterministic length analysis of a story body.
type LengthCheck struct {
	WordCount                int     `json:"word_count"`
	EstimatedReadTimeMinutes float64 `json:"estimated_read_time_minutes"`
	Acceptable               bool    `json:"acceptable"`
	TargetRange              string  `json:"target_range"`
	Feedback                 string  `json:"feedback"`
}

// Evaluation is the quality evaluator's verdict on a story.
//
// When SafetyPassed is false every quality field is left at its zero value:
// an unsafe story is never scored.
type Evaluation struct {
	SafetyPassed    bool                  `json:"safety_passed"`
	SafetyIssues    string                `json:"safety_issues,omitempty"`
	DimensionScores map[Dimension]float64 `json:"dimension_scores,omitempty"`
	OverallScore    float64               `json:"overall_score"`
	Passed          bool                  `json:"passed"`
	LengthCheck     LengthCheck           `json:"length_check"`
	Feedback        map[Dimension]string  `json:"feedback,omitempty"`
	ImprovementHint string                `json:"improvement_hint,omitempty"`

	// Scored is true only when the quality gate parsed a real model reply.
	Scored bool `json:"scored"`
}

// LowestDimension returns the lowest-scoring dimension and its score.
// ok is false when the evaluation has no dimension scores.
func (e Evaluation) LowestDimension() (dim Dimension, score float64, ok bool) {
	for _, d := range Dimensions {
		s, present := e.DimensionScores[d]
		if !present {
			continue
		}
		if !ok || s < score {
			dim, score, ok = d, s, true
		}
	}
	return dim, score, ok
}

// QAExchange is one follow-up question and its answer.
type QAExchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
