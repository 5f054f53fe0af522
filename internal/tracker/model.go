// Package tracker persists generated stories with their evaluations and
// summarizes them for reports.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/Yates-Labs/beanstalk/internal/engine"
)

var (
	ErrRecordNotFound = errors.New("story record not found")
	ErrUnknownDriver  = errors.New("unknown store driver")
)

// Default store locations per driver.
const (
	DefaultPath       = "story_metrics.json"
	DefaultSQLitePath = "story_metrics.db"
)

// StoryRecord is the stored form of a story.
type StoryRecord struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Moral     string `json:"moral"`
	WordCount int    `json:"word_count"`
}

// Record is one persisted pipeline run.
type Record struct {
	ID          int               `json:"id"`
	Timestamp   string            `json:"timestamp"`
	RunID       string            `json:"run_id,omitempty"`
	UserRequest string            `json:"user_request"`
	Story       StoryRecord       `json:"story"`
	Evaluation  engine.Evaluation `json:"evaluation"`
	Liked       *bool             `json:"liked,omitempty"`
}

// NewRecord builds an unsaved record. ID and Timestamp are assigned on Append.
// Stories that failed the safety check keep only their title and length.
func NewRecord(runID, userRequest string, story engine.Story, eval engine.Evaluation) Record {
	rec := Record{
		RunID:       runID,
		UserRequest: userRequest,
		Story: StoryRecord{
			Title:     story.Title,
			Content:   story.Body,
			Moral:     story.Moral,
			WordCount: story.WordCount(),
		},
		Evaluation: eval,
	}
	if !eval.SafetyPassed {
		rec = rec.Redacted()
	}
	return rec
}

// Redacted returns a copy without story text when the story failed the
// safety check.
func (r Record) Redacted() Record {
	if r.Evaluation.SafetyPassed {
		return r
	}
	r.Story.Content = ""
	r.Story.Moral = ""
	return r
}

// StoryValue converts the stored story back to the engine type.
func (r Record) StoryValue() engine.Story {
	return engine.Story{Title: r.Story.Title, Body: r.Story.Content, Moral: r.Story.Moral}
}

// Store persists records in insertion order.
type Store interface {
	// Append assigns the next id and a timestamp, then persists the record.
	Append(ctx context.Context, rec Record) (Record, error)

	// List returns every record in insertion order.
	List(ctx context.Context) ([]Record, error)

	// Get returns the record with id, or ErrRecordNotFound.
	Get(ctx context.Context, id int) (Record, error)

	// SetLiked records whether the reader enjoyed the story.
	SetLiked(ctx context.Context, id int, liked bool) (Record, error)

	Close() error
}

func stamp(rec *Record, id int) {
	rec.ID = id
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().Format(time.RFC3339)
	}
}
