package score

import (
	"context"
	"fmt"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/errors"
	"github.com/victornm/quotient/internal/event"
	"github.com/victornm/quotient/internal/store"
)

type Config struct {
	EventBus *event.Bus
	Store    store.Store
}

type Service struct {
	eb    *event.Bus
	store store.Store
}

func NewService(c Config) *Service {
	return &Service{
		eb:    c.EventBus,
		store: c.Store,
	}
}

type RecordResultRequest struct {
	GroupID string
	Player  string
	Correct int
	Total   int
	Score   int
}

// RecordResult appends a quiz result. Results are never updated, so every call adds a row.
func (s *Service) RecordResult(ctx context.Context, req RecordResultRequest) (*domain.QuizResult, error) {
	if req.Score < 0 || req.Score > 100 {
		return nil, errors.Validation("score", "score must be within [0, 100]: %d", req.Score)
	}

	r := domain.QuizResult{
		GroupID: req.GroupID,
		Player:  req.Player,
		Score:   req.Score,
		Correct: req.Correct,
		Total:   req.Total,
	}

	d, err := s.store.Create(ctx, store.CollectionQuizzes, "", r)
	if err != nil {
		return nil, fmt.Errorf("insert quiz result: %w", err)
	}
	r.ResultID = d.ID
	r.CreateTime = d.CreateTime

	s.eb.Publish(ctx, domain.EventResultRecorded{
		Result: r,
	})

	return &r, nil
}

type ListResultsRequest struct {
	GroupID string
}

// ListResults returns the group's results in the order they were recorded.
func (s *Service) ListResults(ctx context.Context, req ListResultsRequest) ([]domain.QuizResult, error) {
	docs, err := s.store.List(ctx, store.CollectionQuizzes, store.Equal("groupId", req.GroupID))
	if err != nil {
		return nil, fmt.Errorf("list quiz results: group=%s: %w", req.GroupID, err)
	}

	results := make([]domain.QuizResult, 0, len(docs))
	for _, d := range docs {
		var r domain.QuizResult
		if err := d.Decode(&r); err != nil {
			return nil, err
		}
		r.ResultID = d.ID
		r.CreateTime = d.CreateTime
		results = append(results, r)
	}

	return results, nil
}
