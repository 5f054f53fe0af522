package prompt

import (
	"strings"
	"testing"

	"github.com/Yates-Labs/beanstalk/internal/engine"
)

var sampleStory = engine.Story{
	Title: "Pip and the Lantern",
	Body:  "Pip found a lantern in the attic.",
	Moral: "Light is better shared.",
}

func TestPrompts_Deterministic(t *testing.T) {
	eval := engine.Evaluation{
		SafetyPassed:    true,
		DimensionScores: map[engine.Dimension]float64{engine.DimBedtimeAppropriate: 5, engine.DimStorytellingCraft: 6},
		Feedback:        map[engine.Dimension]string{engine.DimBedtimeAppropriate: "calmer ending"},
	}
	outline := engine.StoryOutline{Setting: "attic", KeyEvents: []string{"finds lantern"}}

	builders := map[string]func() string{
		"Classify":               func() string { return Classify("dragon") },
		"Outline":                func() string { return Outline("a dragon", []string{"Old Tale"}) },
		"WriteFromOutline":       func() string { return WriteFromOutline("a dragon", outline) },
		"SinglePass":             func() string { return SinglePass("a dragon", nil) },
		"Refine":                 func() string { return Refine(sampleStory, "slow the ending") },
		"Safety":                 func() string { return Safety(sampleStory) },
		"Rubric":                 func() string { return Rubric(sampleStory, engine.LengthCheck{WordCount: 7}) },
		"RefinementInstructions": func() string { return RefinementInstructions(eval) },
		"Questions":              func() string { return Questions(sampleStory) },
		"Answer":                 func() string { return Answer("Why?", sampleStory) },
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			first, second := build(), build()
			if first == "" {
				t.Fatal("prompt is empty")
			}
			if first != second {
				t.Error("prompt is not deterministic")
			}
		})
	}
}

func TestClassify_IncludesInputAndContract(t *testing.T) {
	p := Classify("a sleepy owl")

	for _, want := range []string{`"a sleepy owl"`, `"valid"`, `"story_elements"`, `"suggestion"`, "Respond ONLY with valid JSON"} {
		if !strings.Contains(p, want) {
			t.Errorf("classify prompt missing %q", want)
		}
	}
}

func TestWriteFromOutline_MissingFieldsUsePlaceholder(t *testing.T) {
	p := WriteFromOutline("", engine.StoryOutline{})

	if !strings.Contains(p, "**Setting:** N/A") {
		t.Error("empty setting should render as N/A")
	}
	if !strings.Contains(p, "**Protagonist:** N/A (age N/A, N/A, N/A)") {
		t.Error("empty protagonist should render as N/A")
	}
	if !strings.Contains(p, "**Key Events:**\n- (none)") {
		t.Error("empty events should render as (none)")
	}
	if !strings.Contains(p, "# Original Request\n\nN/A") {
		t.Error("empty request should render as N/A")
	}
}

func TestOutline_AvoidSection(t *testing.T) {
	with := Outline("a fox", []string{"The Fox Who Counted Stars"})
	if !strings.Contains(with, "# Stories Already Told") || !strings.Contains(with, "- The Fox Who Counted Stars") {
		t.Error("avoid titles should be listed")
	}

	without := Outline("a fox", []string{"  "})
	if strings.Contains(without, "# Stories Already Told") {
		t.Error("avoid section should be omitted when no titles are given")
	}
}

func TestRefine_EchoesTitleAndMoral(t *testing.T) {
	p := Refine(sampleStory, "add a hug")

	if !strings.Contains(p, `"title": "Pip and the Lantern"`) {
		t.Error("refine contract should echo the original title")
	}
	if !strings.Contains(p, `"moral": "Light is better shared."`) {
		t.Error("refine contract should echo the original moral")
	}
	if !strings.Contains(p, "add a hug") {
		t.Error("refine prompt should contain the instructions")
	}
}

func TestRefinementInstructions_ListsOnlyLowDimensions(t *testing.T) {
	eval := engine.Evaluation{
		DimensionScores: map[engine.Dimension]float64{
			engine.DimCharacterConnection: 8.5,
			engine.DimBedtimeAppropriate:  5.0,
			engine.DimStorytellingCraft:   6.5,
			engine.DimAgeAppropriate:      9.0,
		},
		Feedback: map[engine.Dimension]string{
			engine.DimBedtimeAppropriate: "What to fix: add a sleepy ending",
		},
	}

	p := RefinementInstructions(eval)

	if !strings.Contains(p, "- BEDTIME_APPROPRIATE: 5.0/10 - What to fix: add a sleepy ending") {
		t.Error("low bedtime dimension should be listed with its feedback")
	}
	if !strings.Contains(p, "- STORYTELLING_CRAFT: 6.5/10 - N/A") {
		t.Error("missing feedback should render as N/A")
	}
	if strings.Contains(p, "CHARACTER_CONNECTION:") || strings.Contains(p, "AGE_APPROPRIATE:") {
		t.Error("dimensions at or above target should not be listed")
	}
	if !strings.Contains(p, "**Length Status:** N/A") {
		t.Error("missing length feedback should render as N/A")
	}
}

func TestRefinementInstructions_AllAboveTarget(t *testing.T) {
	eval := engine.Evaluation{DimensionScores: map[engine.Dimension]float64{engine.DimCharacterConnection: 9}}
	if p := RefinementInstructions(eval); !strings.Contains(p, "All dimensions at or above 7.0") {
		t.Error("expected all-above message")
	}
}

func TestRubric_ListsEveryDimension(t *testing.T) {
	p := Rubric(sampleStory, engine.LengthCheck{WordCount: 7, TargetRange: "800-1200 words"})

	for _, d := range engine.Dimensions {
		if strings.Count(p, `"`+string(d)+`"`) < 2 {
			t.Errorf("dimension %s should appear in rubric and feedback contract", d)
		}
	}
	if !strings.Contains(p, "**Length:** 7 words (target 800-1200 words)") {
		t.Error("length line missing")
	}
}
