package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/Yates-Labs/beanstalk/internal/llm"
	"github.com/Yates-Labs/beanstalk/internal/prompt"
)

var instructionOptions = llm.CallOptions{MaxTokens: 500, Temperature: 0.3}

// FallbackInstructions are used when the model cannot produce refinement
// instructions, keyed by the weakest dimension.
var FallbackInstructions = map[engine.Dimension]string{
	engine.DimCharacterConnection: "- Let the child protagonist make the key decisions and show their feelings through their own words and actions",
	engine.DimBedtimeAppropriate:  "- Slow the pacing toward the end and close with a calm, cozy scene that drifts into sleep",
	engine.DimStorytellingCraft:   "- Open with a stronger hook and replace vague descriptions with specific, vivid details",
	engine.DimAgeAppropriate:      "- Simplify vocabulary for 5-10 year olds and let the lesson emerge from events instead of being stated",
}

type instructionsReply struct {
	Instructions []string `json:"instructions"`
}

var instructionsSchema = llm.Schema[instructionsReply]{
	Name:     "refinement_instructions",
	Required: []string{"instructions"},
	Validate: func(r instructionsReply) error {
		n := 0
		for _, s := range r.Instructions {
			if strings.TrimSpace(s) != "" {
				n++
			}
		}
		if n < 2 || n > 4 {
			return fmt.Errorf("expected 2-4 instructions, got %d", n)
		}
		return nil
	},
}

// RefinementInstructions asks the model for concrete rewrite steps and
// renders them as "- " bullet lines.
func (j *Judge) RefinementInstructions(ctx context.Context, eval engine.Evaluation) string {
	res := llm.Call(ctx, j.gateway, prompt.RefinementInstructions(eval), instructionOptions, instructionsSchema)
	reply, ok := res.Value()
	if !ok {
		j.logger.WithError(res.Err()).WithField("schema", instructionsSchema.Name).Warn("Refinement instructions failed, using fallback")
		return FallbackInstruction(eval)
	}

	lines := make([]string, 0, len(reply.Instructions))
	for _, s := range reply.Instructions {
		s = strings.TrimSpace(s)
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
		if s != "" {
			lines = append(lines, "- "+s)
		}
	}
	return strings.Join(lines, "\n")
}

// FallbackInstruction picks the fixed instruction for the lowest-scoring
// dimension. Evaluations without scores get the bedtime instruction.
func FallbackInstruction(eval engine.Evaluation) string {
	dim, _, ok := eval.LowestDimension()
	if !ok {
		dim = engine.DimBedtimeAppropriate
	}
	return FallbackInstructions[dim]
}
