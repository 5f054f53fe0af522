package tracker

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/sirupsen/logrus"
)

// Summary aggregates stored stories for the report.
type Summary struct {
	Total             int                          `json:"total"`
	AverageOverall    float64                      `json:"average_overall"`
	Passed            int                          `json:"passed"`
	PassRate          float64                      `json:"pass_rate"`
	SafetyFailures    int                          `json:"safety_failures"`
	Liked             int                          `json:"liked"`
	Disliked          int                          `json:"disliked"`
	AverageWords      float64                      `json:"average_words"`
	DimensionAverages map[engine.Dimension]float64 `json:"dimension_averages"`
}

// Summarize computes report statistics. Dimension averages cover only safe
// stories that carry scores.
func Summarize(records []Record) Summary {
	s := Summary{Total: len(records), DimensionAverages: make(map[engine.Dimension]float64)}
	if len(records) == 0 {
		return s
	}

	var overall, words float64
	sums := make(map[engine.Dimension]float64)
	counts := make(map[engine.Dimension]int)

	for _, r := range records {
		overall += r.Evaluation.OverallScore
		words += float64(r.Story.WordCount)
		if r.Evaluation.Passed {
			s.Passed++
		}
		if r.Liked != nil {
			if *r.Liked {
				s.Liked++
			} else {
				s.Disliked++
			}
		}
		if !r.Evaluation.SafetyPassed {
			s.SafetyFailures++
			continue
		}
		for d, score := range r.Evaluation.DimensionScores {
			sums[d] += score
			counts[d]++
		}
	}

	n := float64(len(records))
	s.AverageOverall = overall / n
	s.AverageWords = words / n
	s.PassRate = float64(s.Passed) / n
	for d, sum := range sums {
		s.DimensionAverages[d] = sum / float64(counts[d])
	}
	return s
}

// ExportFormat names a supported export encoding.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
)

// ExportDocument is the document written by Export.
type ExportDocument struct {
	Summary Summary  `json:"summary"`
	Stories []Record `json:"stories"`
}

// Export writes records and their summary to writer in format.
func Export(records []Record, format string, writer io.Writer) error {
	if ExportFormat(strings.ToLower(format)) != FormatJSON {
		return fmt.Errorf("unsupported export format: %s (supported: json)", format)
	}
	stories := make([]Record, len(records))
	for i, rec := range records {
		stories[i] = rec.Redacted()
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(ExportDocument{Summary: Summarize(records), Stories: stories}); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Open returns the store for driver ("json" or "sqlite").
func Open(driver, path string, logger logrus.FieldLogger) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "json":
		return OpenJSON(path, logger)
	case "sqlite":
		if path == "" {
			path = DefaultSQLitePath
		}
		return OpenSQLite(path, logger)
	}
	return nil, fmt.Errorf("%w: %s (supported: json, sqlite)", ErrUnknownDriver, driver)
}
