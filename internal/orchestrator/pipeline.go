package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Yates-Labs/beanstalk/internal/classifier"
	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/Yates-Labs/beanstalk/internal/judge"
	"github.com/Yates-Labs/beanstalk/internal/llm"
	"github.com/Yates-Labs/beanstalk/internal/metrics"
	"github.com/Yates-Labs/beanstalk/internal/qa"
	"github.com/Yates-Labs/beanstalk/internal/story"
	"github.com/Yates-Labs/beanstalk/internal/tracker"
)

// Outcome is the terminal state of one pipeline run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeUnsafe    Outcome = "unsafe"
)

// StoryMemory recalls similar past stories and remembers new ones.
type StoryMemory interface {
	Recall(ctx context.Context, request string) ([]string, error)
	Remember(ctx context.Context, recordID int, story engine.Story) error
	Close() error
}

// Config holds the pipeline settings that are not owned by a component.
type Config struct {
	// Story configures the synthesizer
	Story story.Config

	// Rubric configures the quality evaluator
	Rubric judge.Rubric

	// SuggestQuestions attaches follow-up questions to completed runs
	SuggestQuestions bool
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() Config {
	return Config{
		Story:            story.DefaultConfig(),
		Rubric:           judge.DefaultRubric(),
		SuggestQuestions: true,
	}
}

// Options are the optional collaborators of a pipeline.
type Options struct {
	// Store persists finished runs. Nil disables persistence.
	Store tracker.Store

	// Memory keeps generated stories diverse. Nil disables recall.
	Memory StoryMemory

	Logger logrus.FieldLogger
}

// Result is everything a caller needs to present one run.
//
// Exactly one of Story, RejectionHint or SafetyIssues describes the outcome:
// completed runs carry Story and Evaluation, rejected runs a hint, unsafe
// runs the safety issues.
type Result struct {
	RunID         string               `json:"run_id"`
	Outcome       Outcome              `json:"outcome"`
	Request       engine.StoryRequest  `json:"request"`
	RejectionHint string               `json:"rejection_hint,omitempty"`
	SafetyIssues  string               `json:"safety_issues,omitempty"`
	Story         *engine.Story        `json:"story,omitempty"`
	Outline       *engine.StoryOutline `json:"outline,omitempty"`
	Evaluation    *engine.Evaluation   `json:"evaluation,omitempty"`
	Refined       bool                 `json:"refined"`
	Questions     []string             `json:"questions,omitempty"`

	// RecordID is the tracker id, or 0 when the run was not stored
	RecordID int `json:"record_id,omitempty"`
}

// Pipeline sequences the story components for one request at a time.
// A Pipeline holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	config      Config
	classifier  *classifier.Classifier
	synthesizer *story.Synthesizer
	judge       *judge.Judge
	qa          *qa.Agent
	store       tracker.Store
	memory      StoryMemory
	logger      logrus.FieldLogger
}

// New creates a pipeline whose components all talk to gateway.
func New(gateway llm.Gateway, config Config, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Pipeline{
		config:      config,
		classifier:  classifier.New(gateway, logger),
		synthesizer: story.NewSynthesizer(gateway, config.Story, logger),
		judge:       judge.New(gateway, config.Rubric, logger),
		qa:          qa.New(gateway, logger),
		store:       opts.Store,
		memory:      opts.Memory,
		logger:      logger.WithField("component", "pipeline"),
	}
}

// Store returns the record store, or nil when persistence is disabled.
func (p *Pipeline) Store() tracker.Store {
	return p.store
}

// QA returns the follow-up question agent.
func (p *Pipeline) QA() *qa.Agent {
	return p.qa
}

// Close releases the store and story memory.
func (p *Pipeline) Close() error {
	var errs []error
	if p.memory != nil {
		if err := p.memory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close story memory: %w", err))
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run takes raw user text to a completed story, a rejection hint or a
// safety notice. The returned error is non-nil only when ctx is done.
func (p *Pipeline) Run(ctx context.Context, raw string) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := p.logger.WithField("run_id", res.RunID)

	log.Info("[Pipeline] Stage 1: Classifying request")
	request := p.classifier.Classify(ctx, raw)
	res.Request = request
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled after classification: %w", err)
	}
	if !request.Valid {
		log.WithField("stage", "classify").Info("Request rejected")
		res.Outcome = OutcomeRejected
		res.RejectionHint = request.RejectionHint
		metrics.IncrementPipelineRun(string(OutcomeRejected))
		return res, nil
	}

	avoid := p.recall(ctx, log, request.NormalizedText)

	log.Info("[Pipeline] Stage 2: Generating story")
	generated, outline := p.synthesizer.Generate(ctx, request.NormalizedText, avoid)
	res.Outline = outline
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled after generation: %w", err)
	}

	log.Info("[Pipeline] Stage 3: Evaluating story")
	eval := p.judge.Evaluate(ctx, generated)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled after evaluation: %w", err)
	}

	final := generated
	if !eval.SafetyPassed {
		log.WithField("stage", "evaluate").Warnf("Story failed safety check: %s", eval.SafetyIssues)
		res.Outcome = OutcomeUnsafe
		res.SafetyIssues = eval.SafetyIssues
		res.Evaluation = &eval
		p.persist(ctx, log, res, raw, final, eval)
		metrics.IncrementPipelineRun(string(OutcomeUnsafe))
		return res, nil
	}

	if !eval.Passed && eval.Scored {
		log.Info("[Pipeline] Stage 4: Refining story")
		refined, refinedEval, ok := p.refine(ctx, log, final, eval)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during refinement: %w", err)
		}
		if ok {
			final, eval = refined, refinedEval
			res.Refined = true
		}
	}

	res.Outcome = OutcomeCompleted
	res.Story = &final
	res.Evaluation = &eval
	metrics.ObserveStoryWords(final.WordCount())

	if p.config.SuggestQuestions {
		log.Info("[Pipeline] Stage 5: Suggesting questions")
		res.Questions = p.qa.SuggestQuestions(ctx, final)
	}

	p.persist(ctx, log, res, raw, final, eval)
	p.remember(ctx, log, res.RecordID, final)

	metrics.IncrementPipelineRun(string(OutcomeCompleted))
	log.WithFields(logrus.Fields{
		"title":   final.Title,
		"overall": eval.OverallScore,
		"passed":  eval.Passed,
		"refined": res.Refined,
	}).Info("[Pipeline] Run complete")
	return res, nil
}

// refine makes the single revision pass. ok reports whether the revision
// should replace the original.
func (p *Pipeline) refine(ctx context.Context, log logrus.FieldLogger, original engine.Story, eval engine.Evaluation) (engine.Story, engine.Evaluation, bool) {
	instructions := p.judge.RefinementInstructions(ctx, eval)
	refined := p.synthesizer.Refine(ctx, original, instructions)
	if refined == original {
		log.WithField("stage", "refine").Info("Refinement left the story unchanged")
		return original, eval, false
	}

	refinedEval := p.judge.Evaluate(ctx, refined)
	if !keepRefinement(eval, refinedEval) {
		log.WithFields(logrus.Fields{
			"stage":    "refine",
			"original": eval.OverallScore,
			"refined":  refinedEval.OverallScore,
		}).Info("Keeping original story")
		return original, eval, false
	}
	return refined, refinedEval, true
}

// keepRefinement accepts a revision that is safe, really scored, and either
// passes or scores no worse than the original.
func keepRefinement(original, refined engine.Evaluation) bool {
	if !refined.SafetyPassed || !refined.Scored {
		return false
	}
	return refined.Passed || refined.OverallScore >= original.OverallScore
}

func (p *Pipeline) recall(ctx context.Context, log logrus.FieldLogger, request string) []string {
	if p.memory == nil {
		return nil
	}
	titles, err := p.memory.Recall(ctx, request)
	if err != nil {
		log.WithError(err).WithField("stage", "recall").Warn("Story memory recall failed")
		return nil
	}
	if len(titles) > 0 {
		log.WithField("stage", "recall").Debugf("Avoiding %d similar stories", len(titles))
	}
	return titles
}

func (p *Pipeline) persist(ctx context.Context, log logrus.FieldLogger, res *Result, raw string, s engine.Story, eval engine.Evaluation) {
	if p.store == nil {
		return
	}
	rec, err := p.store.Append(ctx, tracker.NewRecord(res.RunID, raw, s, eval))
	if err != nil {
		log.WithError(err).WithField("stage", "persist").Error("Failed to store story record")
		return
	}
	res.RecordID = rec.ID
}

func (p *Pipeline) remember(ctx context.Context, log logrus.FieldLogger, recordID int, s engine.Story) {
	if p.memory == nil || recordID == 0 {
		return
	}
	if err := p.memory.Remember(ctx, recordID, s); err != nil {
		log.WithError(err).WithField("stage", "remember").Warn("Failed to remember story")
	}
}

// Ask answers a follow-up question about s.
func (p *Pipeline) Ask(ctx context.Context, s engine.Story, question string) string {
	return p.qa.Answer(ctx, question, s)
}

// Batch runs independent requests with at most concurrency in flight and
// returns results in input order. onDone, if set, is called after each run
// and must be safe for concurrent use.
func (p *Pipeline) Batch(ctx context.Context, requests []string, concurrency int, onDone func(index int, res *Result)) ([]*Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]*Result, len(requests))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, raw := range requests {
		g.Go(func() error {
			res, err := p.Run(ctx, raw)
			if err != nil {
				return err
			}
			results[i] = res
			if onDone != nil {
				onDone(i, res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
