// Package qa suggests follow-up questions about a story and answers a child's
// questions in a parent's voice.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/Yates-Labs/beanstalk/internal/llm"
	"github.com/Yates-Labs/beanstalk/internal/prompt"
	"github.com/sirupsen/logrus"
)

// MaxQuestions bounds the follow-up exchanges for one story.
const MaxQuestions = 3

// FallbackAnswer is returned when no usable answer comes back from the model.
const FallbackAnswer = "That's such a wonderful question! Based on our story, I think there could be many magical possibilities. What do you imagine the answer might be?"

// FallbackQuestions are offered when question suggestion fails.
var FallbackQuestions = []string{
	"What was your favorite part of the story?",
	"What do you think happened next?",
	"If you could be in the story, what would you do?",
}

var ErrQuestionLimit = errors.New("question limit reached")

var (
	questionOptions = llm.CallOptions{MaxTokens: 400, Temperature: 0.3}
	answerOptions   = llm.CallOptions{MaxTokens: 300, Temperature: 0.4}
)

type questionsReply struct {
	Questions []string `json:"questions"`
}

var questionsSchema = llm.Schema[questionsReply]{
	Name:     "questions",
	Required: []string{"questions"},
}

// Agent answers and suggests questions about stories.
type Agent struct {
	gateway llm.Gateway
	logger  logrus.FieldLogger
}

// New creates a QA agent. A nil logger uses the standard logger.
func New(gateway llm.Gateway, logger logrus.FieldLogger) *Agent {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Agent{gateway: gateway, logger: logger.WithField("component", "qa")}
}

// SuggestQuestions returns up to three questions a child might ask. It never
// returns an empty list.
func (a *Agent) SuggestQuestions(ctx context.Context, story engine.Story) []string {
	res := llm.Call(ctx, a.gateway, prompt.Questions(story), questionOptions, questionsSchema)
	reply, ok := res.Value()
	if !ok {
		a.logger.WithError(res.Err()).WithField("schema", questionsSchema.Name).Warn("Question suggestion failed, using fallback questions")
		return fallbackQuestions()
	}

	questions := make([]string, 0, MaxQuestions)
	for _, q := range reply.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
		if len(questions) == MaxQuestions {
			break
		}
	}
	if len(questions) == 0 {
		a.logger.WithField("schema", questionsSchema.Name).Warn("No questions returned, using fallback questions")
		return fallbackQuestions()
	}
	return questions
}

func fallbackQuestions() []string {
	return append([]string(nil), FallbackQuestions...)
}

// Answer replies to question using the story as context. It never fails.
func (a *Agent) Answer(ctx context.Context, question string, story engine.Story) string {
	reply, err := a.gateway.Complete(ctx, prompt.Answer(question, story), answerOptions)
	if err != nil {
		a.logger.WithError(err).WithField("schema", "answer").Warn("Answer failed, using fallback answer")
		return FallbackAnswer
	}

	answer := stripQuotes(strings.TrimSpace(reply))
	if answer == "" {
		return FallbackAnswer
	}
	return answer
}

var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"},
}

// stripQuotes removes one pair of quotes wrapping the whole string.
func stripQuotes(s string) string {
	for _, p := range quotePairs {
		if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}

// Session tracks the question exchanges for one story.
type Session struct {
	agent *Agent
	story engine.Story

	mu        sync.Mutex
	exchanges []engine.QAExchange
}

// NewSession starts a question session about story.
func (a *Agent) NewSession(story engine.Story) *Session {
	return &Session{agent: a, story: story}
}

// Ask answers question and records the exchange. Once MaxQuestions have been
// asked it returns ErrQuestionLimit without calling the model.
func (s *Session) Ask(ctx context.Context, question string) (engine.QAExchange, error) {
	s.mu.Lock()
	if len(s.exchanges) >= MaxQuestions {
		s.mu.Unlock()
		return engine.QAExchange{}, fmt.Errorf("%w: %d questions already asked", ErrQuestionLimit, MaxQuestions)
	}
	// reserve the slot before the call so concurrent askers respect the bound
	s.exchanges = append(s.exchanges, engine.QAExchange{Question: question})
	idx := len(s.exchanges) - 1
	s.mu.Unlock()

	answer := s.agent.Answer(ctx, question, s.story)

	s.mu.Lock()
	s.exchanges[idx].Answer = answer
	ex := s.exchanges[idx]
	s.mu.Unlock()
	return ex, nil
}

// Remaining returns how many questions may still be asked.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MaxQuestions - len(s.exchanges)
}

// Exchanges returns a copy of the recorded exchanges.
func (s *Session) Exchanges() []engine.QAExchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.QAExchange(nil), s.exchanges...)
}
