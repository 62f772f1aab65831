// Package session runs solo quiz attempts. Attempts live in Redis so the
// expected authors never leave the server before grading.
package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/errors"
	"github.com/victornm/quotient/internal/quiz"
	"github.com/victornm/quotient/internal/quote"
	"github.com/victornm/quotient/internal/score"
	"github.com/victornm/quotient/internal/store"
	"github.com/victornm/quotient/internal/telemetry"
)

const defaultAttemptTTL = 2 * time.Hour

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	Quotes *quote.Service
	Score  *score.Service
	// AttemptTTL is how long an unsubmitted attempt is kept.
	AttemptTTL  time.Duration
	QuizOptions []quiz.Option
}

type Service struct {
	redis   redis.UniversalClient
	prefix  string
	quotes  *quote.Service
	score   *score.Service
	ttl     time.Duration
	quizOpt []quiz.Option
}

func NewService(c Config) *Service {
	s := &Service{
		redis:   c.Redis,
		prefix:  c.Prefix,
		quotes:  c.Quotes,
		score:   c.Score,
		ttl:     c.AttemptTTL,
		quizOpt: c.QuizOptions,
	}
	if s.ttl <= 0 {
		s.ttl = defaultAttemptTTL
	}

	return s
}

type StartAttemptRequest struct {
	GroupID string
	Player  string
}

type StartAttemptResponse struct {
	Attempt domain.Attempt
	// Empty is set when the group has no quotes. Nothing is stored then.
	Empty bool
}

// StartAttempt draws the questions of a new quiz from the group's quote bank.
// Only members of the group may start a quiz.
func (s *Service) StartAttempt(ctx context.Context, req StartAttemptRequest) (*StartAttemptResponse, error) {
	quotes, err := s.quotes.ListQuotes(ctx, quote.ListQuotesRequest{
		GroupID: req.GroupID,
		Actor:   req.Player,
	})
	if err != nil {
		return nil, fmt.Errorf("load quotes: %w", err)
	}

	set := quiz.Start(quotes, s.quizOpt...)
	if set.Empty() {
		return &StartAttemptResponse{
			Attempt: domain.Attempt{
				GroupID:   req.GroupID,
				Player:    req.Player,
				Questions: []domain.Question{},
				Answers:   []string{},
			},
			Empty: true,
		}, nil
	}

	id, err := store.NewID()
	if err != nil {
		return nil, err
	}

	a := domain.Attempt{
		AttemptID:  id,
		GroupID:    req.GroupID,
		Player:     req.Player,
		Questions:  set.Questions,
		Answers:    set.Answers,
		CreateTime: time.Now().UTC(),
	}

	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal attempt: %w", err)
	}
	if err := s.redis.Set(ctx, s.attemptKey(id), b, s.ttl).Err(); err != nil {
		return nil, errors.Storage("save attempt", err)
	}

	telemetry.QuizzesStarted.Inc()
	slog.InfoContext(ctx, "session: attempt started",
		"attempt", id,
		"group", req.GroupID,
		"questions", len(a.Questions),
	)

	return &StartAttemptResponse{Attempt: a}, nil
}

type GetAttemptRequest struct {
	AttemptID string
	Player    string
}

// GetAttempt returns the attempt with the answers recorded so far.
func (s *Service) GetAttempt(ctx context.Context, req GetAttemptRequest) (*domain.Attempt, error) {
	return s.loadAttempt(ctx, req.AttemptID, req.Player)
}

type RecordAnswerRequest struct {
	AttemptID string
	Player    string
	Index     int
	Text      string
}

// RecordAnswer stores the answer text verbatim in slot Index.
func (s *Service) RecordAnswer(ctx context.Context, req RecordAnswerRequest) error {
	a, err := s.loadAttempt(ctx, req.AttemptID, req.Player)
	if err != nil {
		return err
	}

	set := quiz.Set{Questions: a.Questions, Answers: a.Answers}
	if err := set.RecordAnswer(req.Index, req.Text); err != nil {
		return err
	}

	key := s.answersKey(req.AttemptID)
	_, err = s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, strconv.Itoa(req.Index), req.Text)
		p.ExpireAt(ctx, key, a.CreateTime.Add(s.ttl))
		return nil
	})
	if err != nil {
		return errors.Storage("record answer", err)
	}

	return nil
}

type SubmitAttemptRequest struct {
	AttemptID string
	Player    string
	// Answers, when set, replace the recorded answers slot by slot.
	Answers []string
}

type SubmitAttemptResponse struct {
	Attempt domain.Attempt
	Grade   quiz.Grade
	Result  *domain.QuizResult
	// Saved is false when the grade could not be persisted. SaveError tells why.
	Saved     bool
	SaveError *errors.Error
}

// SubmitAttempt grades the attempt and appends a quiz result. Every slot must
// hold an answer. A failure to store the result does not fail the call: the
// grade is returned with Saved unset. Submitting again grades again and
// appends another result.
func (s *Service) SubmitAttempt(ctx context.Context, req SubmitAttemptRequest) (*SubmitAttemptResponse, error) {
	a, err := s.loadAttempt(ctx, req.AttemptID, req.Player)
	if err != nil {
		return nil, err
	}

	if len(req.Answers) > len(a.Answers) {
		return nil, errors.Validation("answers", "got %d answers for %d questions", len(req.Answers), len(a.Questions))
	}
	copy(a.Answers, req.Answers)

	for i, ans := range a.Answers {
		if ans == "" {
			return nil, errors.Validation(fmt.Sprintf("answers[%d]", i), "question %d has no answer", i+1)
		}
	}

	g := quiz.GradeAnswers(a.Questions, a.Answers)
	telemetry.QuizzesGraded.Inc()
	telemetry.QuizScores.Observe(float64(g.Percentage))

	resp := &SubmitAttemptResponse{
		Attempt: *a,
		Grade:   g,
	}

	res, err := s.score.RecordResult(ctx, score.RecordResultRequest{
		GroupID: a.GroupID,
		Player:  a.Player,
		Correct: g.Correct,
		Total:   g.Total,
		Score:   g.Percentage,
	})
	if err != nil {
		telemetry.ScoreSaveFailures.Inc()
		slog.ErrorContext(ctx, "session: save quiz result failed",
			"attempt", a.AttemptID,
			"group", a.GroupID,
			"error", err,
		)
		resp.SaveError = errors.ScoreSave(err)
		return resp, nil
	}

	resp.Result = res
	resp.Saved = true

	return resp, nil
}

func (s *Service) loadAttempt(ctx context.Context, id, player string) (*domain.Attempt, error) {
	b, err := s.redis.Get(ctx, s.attemptKey(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NotFound("attempt", id)
	}
	if err != nil {
		return nil, errors.Storage("load attempt", err)
	}

	var a domain.Attempt
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("unmarshal attempt %s: %w", id, err)
	}

	if a.Player != player {
		return nil, errors.PermissionDenied("attempt %s belongs to another player", id)
	}

	recorded, err := s.redis.HGetAll(ctx, s.answersKey(id)).Result()
	if err != nil {
		return nil, errors.Storage("load answers", err)
	}
	for k, v := range recorded {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(a.Answers) {
			continue
		}
		a.Answers[i] = v
	}

	return &a, nil
}

func (s *Service) attemptKey(id string) string {
	return fmt.Sprintf("%s:attempt:%s", s.prefix, id)
}

func (s *Service) answersKey(id string) string {
	return fmt.Sprintf("%s:attempt:%s:answers", s.prefix, id)
}
