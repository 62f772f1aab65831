// Package quiz selects quiz questions from a group's quotes and grades answers.
package quiz

import (
	crand "crypto/rand"
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/errors"
)

// MaxQuestions is the number of quotes asked in one quiz at most.
const MaxQuestions = 15

// Set is the question list of one quiz together with its answer slots.
type Set struct {
	Questions []domain.Question
	Answers   []string
}

// Empty reports that there was nothing to ask.
func (s *Set) Empty() bool {
	return len(s.Questions) == 0
}

// RecordAnswer stores text at position index.
func (s *Set) RecordAnswer(index int, text string) error {
	if index < 0 || index >= len(s.Answers) {
		return errors.Validation("index", "answer index %d out of range [0, %d)", index, len(s.Answers))
	}

	s.Answers[index] = text
	return nil
}

type options struct {
	rnd *rand.Rand
	max int
}

type Option func(*options)

// WithRand makes the selection reproducible.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rnd = r
	}
}

// WithMaxQuestions overrides MaxQuestions.
func WithMaxQuestions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.max = n
		}
	}
}

// Start picks at most MaxQuestions quotes uniformly at random without replacement.
// The input is not modified. Each call draws from its own random source.
func Start(quotes []domain.Quote, opts ...Option) Set {
	o := options{max: MaxQuestions}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rnd == nil {
		o.rnd = newRand()
	}

	picked := make([]domain.Quote, len(quotes))
	copy(picked, quotes)

	// Fisher-Yates
	o.rnd.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})

	n := min(len(picked), o.max)
	s := Set{
		Questions: make([]domain.Question, 0, n),
		Answers:   make([]string, n),
	}
	for _, q := range picked[:n] {
		s.Questions = append(s.Questions, domain.Question{
			QuoteID: q.QuoteID,
			Text:    q.Text,
			Author:  q.Author,
		})
	}

	return s
}

func newRand() *rand.Rand {
	var seed [32]byte
	_, _ = crand.Read(seed[:])
	return rand.New(rand.NewChaCha8(seed))
}

// Grade is the outcome of one graded quiz.
type Grade struct {
	Correct    int
	Total      int
	Percentage int
}

// GradeAnswers compares answers[i] with questions[i].Author ignoring case and surrounding whitespace.
// Missing answers are wrong.
func GradeAnswers(questions []domain.Question, answers []string) Grade {
	g := Grade{Total: len(questions)}
	for i, q := range questions {
		if i < len(answers) && Match(answers[i], q.Author) {
			g.Correct++
		}
	}
	g.Percentage = Percentage(g.Correct, g.Total)

	return g
}

// Match reports whether answer names author.
func Match(answer, author string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(author))
}

// Percentage returns correct/total*100 rounded half up, or 0 when total is 0.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}

	p := decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(0)

	return int(p.IntPart())
}
