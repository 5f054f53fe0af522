package judge

import (
	"errors"
	"fmt"
	"math"

	"github.com/Yates-Labs/beanstalk/internal/engine"
)

var ErrInvalidRubric = errors.New("invalid rubric")

const weightTolerance = 1e-6

// Weights are the per-dimension contributions to the overall score.
type Weights struct {
	CharacterConnection float64 `toml:"character_connection" yaml:"character_connection" json:"character_connection"`
	BedtimeAppropriate  float64 `toml:"bedtime_appropriate" yaml:"bedtime_appropriate" json:"bedtime_appropriate"`
	StorytellingCraft   float64 `toml:"storytelling_craft" yaml:"storytelling_craft" json:"storytelling_craft"`
	AgeAppropriate      float64 `toml:"age_appropriate" yaml:"age_appropriate" json:"age_appropriate"`
}

// Of returns the weight of d, or 0 for an unknown dimension.
func (w Weights) Of(d engine.Dimension) float64 {
	switch d {
	case engine.DimCharacterConnection:
		return w.CharacterConnection
	case engine.DimBedtimeAppropriate:
		return w.BedtimeAppropriate
	case engine.DimStorytellingCraft:
		return w.StorytellingCraft
	case engine.DimAgeAppropriate:
		return w.AgeAppropriate
	}
	return 0
}

// Rubric holds every tunable value of story evaluation.
type Rubric struct {
	Weights        Weights  `toml:"weights" yaml:"weights" json:"weights"`
	PassThreshold  float64  `toml:"pass_threshold" yaml:"pass_threshold" json:"pass_threshold"`
	BedtimeFloor   float64  `toml:"bedtime_floor" yaml:"bedtime_floor" json:"bedtime_floor"`
	DimensionFloor float64  `toml:"dimension_floor" yaml:"dimension_floor" json:"dimension_floor"`
	MinWords       int      `toml:"min_words" yaml:"min_words" json:"min_words"`
	MaxWords       int      `toml:"max_words" yaml:"max_words" json:"max_words"`
	ReadingWPM     int      `toml:"reading_wpm" yaml:"reading_wpm" json:"reading_wpm"`
	Blocklist      []string `toml:"blocklist" yaml:"blocklist" json:"blocklist"`
}

// DefaultBlocklist holds words that fail the safety gate without a model call.
var DefaultBlocklist = []string{
	"blood", "bloody", "bleeding",
	"kill", "killed", "killing",
	"murder", "murdered",
	"dead", "death",
	"gun", "knife", "weapon",
	"stab", "stabbed",
	"gore", "corpse", "horror",
}

// DefaultRubric returns the standard bedtime rubric.
func DefaultRubric() Rubric {
	return Rubric{
		Weights: Weights{
			CharacterConnection: 0.30,
			BedtimeAppropriate:  0.25,
			StorytellingCraft:   0.25,
			AgeAppropriate:      0.20,
		},
		PassThreshold:  7.0,
		BedtimeFloor:   7.5,
		DimensionFloor: 5.0,
		MinWords:       800,
		MaxWords:       1200,
		ReadingWPM:     125,
		Blocklist:      append([]string(nil), DefaultBlocklist...),
	}
}

// Validate checks every field against its allowed range.
func (r Rubric) Validate() error {
	sum := 0.0
	for _, d := range engine.Dimensions {
		w := r.Weights.Of(d)
		if w < 0 || w > 1 {
			return fmt.Errorf("%w: weight for %s must be in [0,1], got %v", ErrInvalidRubric, d, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: weights must sum to 1.0, got %v", ErrInvalidRubric, sum)
	}

	for name, v := range map[string]float64{
		"pass_threshold":  r.PassThreshold,
		"bedtime_floor":   r.BedtimeFloor,
		"dimension_floor": r.DimensionFloor,
	} {
		if v < 1 || v > 10 {
			return fmt.Errorf("%w: %s must be in [1,10], got %v", ErrInvalidRubric, name, v)
		}
	}
	if r.BedtimeFloor < r.DimensionFloor {
		return fmt.Errorf("%w: bedtime_floor (%v) must not be below dimension_floor (%v)", ErrInvalidRubric, r.BedtimeFloor, r.DimensionFloor)
	}
	if r.MinWords <= 0 || r.MinWords > r.MaxWords {
		return fmt.Errorf("%w: word range must satisfy 0 < min <= max, got %d-%d", ErrInvalidRubric, r.MinWords, r.MaxWords)
	}
	if r.ReadingWPM <= 0 {
		return fmt.Errorf("%w: reading_wpm must be positive, got %d", ErrInvalidRubric, r.ReadingWPM)
	}
	return nil
}

// Overall returns the weighted sum of scores.
func (r Rubric) Overall(scores map[engine.Dimension]float64) float64 {
	total := 0.0
	for _, d := range engine.Dimensions {
		total += r.Weights.Of(d) * scores[d]
	}
	return total
}

// Decide computes the overall score and the pass verdict. A story passes only
// when the overall score, the bedtime floor, every dimension floor and the
// length check all hold.
func (r Rubric) Decide(scores map[engine.Dimension]float64, length engine.LengthCheck) (overall float64, passed bool) {
	overall = r.Overall(scores)
	passed = overall >= r.PassThreshold &&
		scores[engine.DimBedtimeAppropriate] >= r.BedtimeFloor &&
		length.Acceptable
	for _, d := range engine.Dimensions {
		if scores[d] < r.DimensionFloor {
			passed = false
		}
	}
	return overall, passed
}

// CheckLength analyses the story body without calling the model.
func (r Rubric) CheckLength(body string) engine.LengthCheck {
	words := engine.CountWords(body)
	minutes := 0.0
	if r.ReadingWPM > 0 {
		minutes = math.Round(float64(words)/float64(r.ReadingWPM)*10) / 10
	}

	check := engine.LengthCheck{
		WordCount:                words,
		EstimatedReadTimeMinutes: minutes,
		Acceptable:               r.MinWords <= words && words <= r.MaxWords,
		TargetRange:              fmt.Sprintf("%d-%d words", r.MinWords, r.MaxWords),
	}

	switch {
	case words < r.MinWords:
		check.Feedback = fmt.Sprintf("Too short (%d words). Aim for %d-%d words for a calm bedtime read.", words, r.MinWords, r.MaxWords)
	case words > r.MaxWords:
		check.Feedback = fmt.Sprintf("Too long (%d words). Aim for %d-%d words to keep the bedtime routine on track.", words, r.MinWords, r.MaxWords)
	default:
		check.Feedback = fmt.Sprintf("Good length (%d words) for bedtime reading.", words)
	}
	return check
}
