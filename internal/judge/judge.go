// Package judge evaluates stories: a deterministic length check, a fail-closed
// safety gate and a weighted quality rubric, plus refinement instructions for
// stories that fall short.
package judge

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/Yates-Labs/beanstalk/internal/llm"
	"github.com/Yates-Labs/beanstalk/internal/metrics"
	"github.com/Yates-Labs/beanstalk/internal/prompt"
	"github.com/sirupsen/logrus"
)

const (
	// SafetyUnverifiedIssue is reported when the safety reply cannot be parsed.
	SafetyUnverifiedIssue = "Safety could not be verified; story withheld."

	// FallbackFeedback is attached to every dimension of a fallback evaluation.
	FallbackFeedback = "Unable to evaluate - system fallback. Story needs manual review."

	fallbackScore = 5.0
	defaultIssue  = "Story failed safety check"
)

var (
	safetyOptions = llm.CallOptions{MaxTokens: 300, Temperature: 0.1}
	rubricOptions = llm.CallOptions{MaxTokens: 1000, Temperature: 0.3}
)

type safetyReply struct {
	Passed bool   `json:"passed"`
	Issues string `json:"issues"`
}

var safetySchema = llm.Schema[safetyReply]{
	Name:     "safety",
	Required: []string{"passed"},
}

type rubricReply struct {
	CharacterConnection float64                     `json:"character_connection"`
	BedtimeAppropriate  float64                     `json:"bedtime_appropriate"`
	StorytellingCraft   float64                     `json:"storytelling_craft"`
	AgeAppropriate      float64                     `json:"age_appropriate"`
	Feedback            map[engine.Dimension]string `json:"feedback"`
}

func (r rubricReply) scores() map[engine.Dimension]float64 {
	return map[engine.Dimension]float64{
		engine.DimCharacterConnection: r.CharacterConnection,
		engine.DimBedtimeAppropriate:  r.BedtimeAppropriate,
		engine.DimStorytellingCraft:   r.StorytellingCraft,
		engine.DimAgeAppropriate:      r.AgeAppropriate,
	}
}

var rubricSchema = llm.Schema[rubricReply]{
	Name: "rubric",
	Required: []string{
		string(engine.DimCharacterConnection),
		string(engine.DimBedtimeAppropriate),
		string(engine.DimStorytellingCraft),
		string(engine.DimAgeAppropriate),
		"feedback",
	},
	Validate: func(r rubricReply) error {
		for _, d := range engine.Dimensions {
			if s := r.scores()[d]; s < 1 || s > 10 {
				return fmt.Errorf("%s score %v outside [1,10]", d, s)
			}
		}
		if r.Feedback == nil {
			return errors.New("feedback must be an object")
		}
		return nil
	},
}

// Judge evaluates stories against a rubric.
type Judge struct {
	gateway   llm.Gateway
	rubric    Rubric
	blocklist *regexp.Regexp
	logger    logrus.FieldLogger
}

// New creates a judge. The rubric must already be valid.
func New(gateway llm.Gateway, rubric Rubric, logger logrus.FieldLogger) *Judge {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Judge{
		gateway:   gateway,
		rubric:    rubric,
		blocklist: compileBlocklist(rubric.Blocklist),
		logger:    logger.WithField("component", "judge"),
	}
}

// Rubric returns the rubric the judge scores against.
func (j *Judge) Rubric() Rubric {
	return j.rubric
}

// Evaluate runs the length check, the safety gate and the quality gate in order.
// An unsafe story is never scored.
func (j *Judge) Evaluate(ctx context.Context, story engine.Story) engine.Evaluation {
	length := j.rubric.CheckLength(story.Body)

	safe, issues := j.checkSafety(ctx, story)
	if !safe {
		metrics.IncrementEvaluation("unsafe")
		return engine.Evaluation{
			SafetyPassed: false,
			SafetyIssues: issues,
			LengthCheck:  length,
		}
	}

	eval := j.scoreQuality(ctx, story, length)
	switch {
	case !eval.Scored:
		metrics.IncrementEvaluation("fallback")
	case eval.Passed:
		metrics.IncrementEvaluation("passed")
	default:
		metrics.IncrementEvaluation("failed")
	}
	return eval
}

// CheckSafety runs only the safety gate.
func (j *Judge) CheckSafety(ctx context.Context, story engine.Story) (passed bool, issues string) {
	return j.checkSafety(ctx, story)
}

func (j *Judge) checkSafety(ctx context.Context, story engine.Story) (bool, string) {
	if hits := j.blockedWords(story); len(hits) > 0 {
		j.logger.WithField("stage", "safety").Warnf("Blocklisted words found: %s", strings.Join(hits, ", "))
		return false, "Contains unsafe words: " + strings.Join(hits, ", ")
	}

	res := llm.Call(ctx, j.gateway, prompt.Safety(story), safetyOptions, safetySchema)
	reply, ok := res.Value()
	if !ok {
		j.logger.WithError(res.Err()).WithField("schema", safetySchema.Name).Warn("Safety check unverified, failing closed")
		return false, SafetyUnverifiedIssue
	}
	if !reply.Passed {
		issues := strings.TrimSpace(reply.Issues)
		if issues == "" {
			issues = defaultIssue
		}
		return false, issues
	}
	return true, ""
}

func (j *Judge) blockedWords(story engine.Story) []string {
	if j.blocklist == nil {
		return nil
	}
	text := story.Title + "\n" + story.Body + "\n" + story.Moral

	seen := make(map[string]bool)
	var hits []string
	for _, m := range j.blocklist.FindAllString(text, -1) {
		w := strings.ToLower(m)
		if !seen[w] {
			seen[w] = true
			hits = append(hits, w)
		}
	}
	return hits
}

func compileBlocklist(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(w)))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func (j *Judge) scoreQuality(ctx context.Context, story engine.Story, length engine.LengthCheck) engine.Evaluation {
	res := llm.Call(ctx, j.gateway, prompt.Rubric(story, length), rubricOptions, rubricSchema)
	reply, ok := res.Value()
	if !ok {
		j.logger.WithError(res.Err()).WithField("schema", rubricSchema.Name).Warn("Quality evaluation failed, using fallback scores")
		return j.fallbackEvaluation(length)
	}

	scores := reply.scores()
	overall, passed := j.rubric.Decide(scores, length)

	feedback := make(map[engine.Dimension]string, len(engine.Dimensions))
	for _, d := range engine.Dimensions {
		if f := strings.TrimSpace(reply.Feedback[d]); f != "" {
			feedback[d] = f
		}
	}

	eval := engine.Evaluation{
		SafetyPassed:    true,
		DimensionScores: scores,
		OverallScore:    overall,
		Passed:          passed,
		LengthCheck:     length,
		Feedback:        feedback,
		Scored:          true,
	}
	if lowest, _, ok := eval.LowestDimension(); ok {
		eval.ImprovementHint = feedback[lowest]
	}
	return eval
}

func (j *Judge) fallbackEvaluation(length engine.LengthCheck) engine.Evaluation {
	scores := make(map[engine.Dimension]float64, len(engine.Dimensions))
	feedback := make(map[engine.Dimension]string, len(engine.Dimensions))
	for _, d := range engine.Dimensions {
		scores[d] = fallbackScore
		feedback[d] = FallbackFeedback
	}
	return engine.Evaluation{
		SafetyPassed:    true,
		DimensionScores: scores,
		OverallScore:    fallbackScore,
		Passed:          false,
		LengthCheck:     length,
		Feedback:        feedback,
		ImprovementHint: FallbackFeedback,
		Scored:          false,
	}
}
