package judge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/Yates-Labs/beanstalk/internal/llm"
)

const (
	safeReply   = `{"passed": true, "issues": ""}`
	unsafeReply = `{"passed": false, "issues": "A scary chase at night"}`
)

func rubricReplyJSON(cc, ba, sc, aa string) string {
	return `{"character_connection": ` + cc + `, "bedtime_appropriate": ` + ba +
		`, "storytelling_craft": ` + sc + `, "age_appropriate": ` + aa +
		`, "feedback": {"character_connection": "What to fix: more dialogue", "bedtime_appropriate": "What to fix: slower ending", "storytelling_craft": "What to fix: sharper hook", "age_appropriate": "What to fix: simpler words"}}`
}

func goodStory() engine.Story {
	return engine.Story{
		Title: "The Moon Garden",
		Body:  strings.Repeat("Luna watered the sleepy flowers. ", 200),
		Moral: "Gentle care helps things grow.",
	}
}

func TestEvaluate_Passes(t *testing.T) {
	gw := llm.NewScriptedGateway(safeReply, rubricReplyJSON("8", "8", "8", "8"))
	eval := New(gw, DefaultRubric(), nil).Evaluate(context.Background(), goodStory())

	if !eval.SafetyPassed || !eval.Scored {
		t.Fatalf("expected safe and scored evaluation, got %+v", eval)
	}
	if !eval.Passed {
		t.Errorf("expected pass, overall %v", eval.OverallScore)
	}
	if eval.LengthCheck.WordCount != 1000 {
		t.Errorf("unexpected word count %d", eval.LengthCheck.WordCount)
	}
	if gw.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", gw.Calls())
	}
}

func TestEvaluate_ModelNeverDecidesPass(t *testing.T) {
	// A reply claiming to pass is ignored; only the scores count.
	reply := `{"passed": true, "character_connection": 9, "bedtime_appropriate": 6, "storytelling_craft": 9, "age_appropriate": 9, "feedback": {}}`
	gw := llm.NewScriptedGateway(safeReply, reply)

	eval := New(gw, DefaultRubric(), nil).Evaluate(context.Background(), goodStory())
	if eval.Passed {
		t.Error("bedtime score below floor must fail regardless of the reply")
	}
	if !eval.Scored {
		t.Error("evaluation should still be scored")
	}
}

func TestEvaluate_ImprovementHintIsLowestDimension(t *testing.T) {
	gw := llm.NewScriptedGateway(safeReply, rubricReplyJSON("8", "6", "6", "9"))
	eval := New(gw, DefaultRubric(), nil).Evaluate(context.Background(), goodStory())

	// bedtime and craft tie at 6; rubric order favours bedtime
	if eval.ImprovementHint != "What to fix: slower ending" {
		t.Errorf("unexpected hint %q", eval.ImprovementHint)
	}
}

func TestEvaluate_UnsafeShortCircuits(t *testing.T) {
	tests := []struct {
		name    string
		story   engine.Story
		reply   string
		err     error
		calls   int
		wantIss string
	}{
		{
			name:    "blocklist hit",
			story:   engine.Story{Title: "T", Body: "There was Blood on the floor.", Moral: "M"},
			reply:   safeReply,
			calls:   0,
			wantIss: "Contains unsafe words: blood",
		},
		{
			name:    "model says unsafe",
			story:   goodStory(),
			reply:   unsafeReply,
			calls:   1,
			wantIss: "A scary chase at night",
		},
		{
			name:    "unparseable reply fails closed",
			story:   goodStory(),
			reply:   "Looks fine to me!",
			calls:   1,
			wantIss: SafetyUnverifiedIssue,
		},
		{
			name:    "gateway error fails closed",
			story:   goodStory(),
			err:     errors.New("timeout"),
			calls:   1,
			wantIss: SafetyUnverifiedIssue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llm.NewMockGateway(tt.reply)
			gw.Error = tt.err

			eval := New(gw, DefaultRubric(), nil).Evaluate(context.Background(), tt.story)

			if eval.SafetyPassed {
				t.Fatal("expected unsafe evaluation")
			}
			if eval.SafetyIssues != tt.wantIss {
				t.Errorf("issues = %q, want %q", eval.SafetyIssues, tt.wantIss)
			}
			if eval.OverallScore != 0 || eval.Passed || eval.DimensionScores != nil || eval.Feedback != nil {
				t.Errorf("unsafe evaluation must carry no quality data: %+v", eval)
			}
			if gw.Calls() != tt.calls {
				t.Errorf("expected %d calls, got %d", tt.calls, gw.Calls())
			}
		})
	}
}

func TestBlocklist_WholeWordsOnly(t *testing.T) {
	j := New(llm.NewMockGateway(safeReply), DefaultRubric(), nil)

	// "bloodhound" and "skill" contain blocklisted words but are not matches
	story := engine.Story{Title: "T", Body: "The bloodhound had great skill.", Moral: "M"}
	if hits := j.blockedWords(story); len(hits) != 0 {
		t.Errorf("unexpected hits %v", hits)
	}

	story.Body = "A KNIFE and a knife and a gun."
	hits := j.blockedWords(story)
	if len(hits) != 2 || hits[0] != "knife" || hits[1] != "gun" {
		t.Errorf("expected [knife gun], got %v", hits)
	}
}

func TestEvaluate_QualityFallback(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"missing dimension", `{"character_connection": 8, "bedtime_appropriate": 8, "storytelling_craft": 8, "feedback": {}}`},
		{"score out of range", rubricReplyJSON("8", "11", "8", "8")},
		{"score below one", rubricReplyJSON("0", "8", "8", "8")},
		{"not json", "Great story!"},
		{"placeholder", llm.PlaceholderResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llm.NewScriptedGateway(safeReply, tt.reply)
			eval := New(gw, DefaultRubric(), nil).Evaluate(context.Background(), goodStory())

			if !eval.SafetyPassed {
				t.Fatal("fallback keeps the safety verdict")
			}
			if eval.Scored || eval.Passed {
				t.Errorf("fallback must be unscored and failing: %+v", eval)
			}
			if eval.OverallScore != 5.0 {
				t.Errorf("overall = %v, want 5.0", eval.OverallScore)
			}
			for _, d := range engine.Dimensions {
				if eval.DimensionScores[d] != 5.0 {
					t.Errorf("%s = %v, want 5.0", d, eval.DimensionScores[d])
				}
				if eval.Feedback[d] != FallbackFeedback {
					t.Errorf("%s feedback = %q", d, eval.Feedback[d])
				}
			}
		})
	}
}

func TestRefinementInstructions(t *testing.T) {
	eval := engine.Evaluation{
		SafetyPassed: true,
		DimensionScores: map[engine.Dimension]float64{
			engine.DimCharacterConnection: 8,
			engine.DimBedtimeAppropriate:  8,
			engine.DimStorytellingCraft:   5,
			engine.DimAgeAppropriate:      8,
		},
		Scored: true,
	}

	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "accepted",
			reply: `{"instructions": ["Add a hook", "- Name the flowers"]}`,
			want:  "- Add a hook\n- Name the flowers",
		},
		{
			name:  "too few",
			reply: `{"instructions": ["Only one"]}`,
			want:  FallbackInstructions[engine.DimStorytellingCraft],
		},
		{
			name:  "too many",
			reply: `{"instructions": ["a", "b", "c", "d", "e"]}`,
			want:  FallbackInstructions[engine.DimStorytellingCraft],
		},
		{
			name:  "malformed",
			reply: `instructions: none`,
			want:  FallbackInstructions[engine.DimStorytellingCraft],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llm.NewMockGateway(tt.reply)
			got := New(gw, DefaultRubric(), nil).RefinementInstructions(context.Background(), eval)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if opts := gw.LastOptions(); opts.MaxTokens != 500 || opts.Temperature != 0.3 {
				t.Errorf("unexpected options %+v", opts)
			}
		})
	}
}

func TestFallbackInstruction(t *testing.T) {
	tied := engine.Evaluation{DimensionScores: map[engine.Dimension]float64{
		engine.DimCharacterConnection: 6,
		engine.DimBedtimeAppropriate:  8,
		engine.DimStorytellingCraft:   6,
		engine.DimAgeAppropriate:      7,
	}}
	if got := FallbackInstruction(tied); got != FallbackInstructions[engine.DimCharacterConnection] {
		t.Errorf("tie should resolve to character connection, got %q", got)
	}

	if got := FallbackInstruction(engine.Evaluation{}); got != FallbackInstructions[engine.DimBedtimeAppropriate] {
		t.Errorf("no scores should use bedtime instruction, got %q", got)
	}
}
