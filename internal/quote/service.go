// Package quote maintains the quote bank of a group.
//
// A group's quoteBank is authoritative: a quote document whose id is not in the
// bank is not part of the group, and bank ids without a document are skipped.
package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/errors"
	"github.com/victornm/quotient/internal/event"
	"github.com/victornm/quotient/internal/group"
	"github.com/victornm/quotient/internal/store"
)

const fieldQuoteBank = "quoteBank"

type Config struct {
	EventBus *event.Bus
	Store    store.Store
	Groups   *group.Service
}

type Service struct {
	eb     *event.Bus
	store  store.Store
	groups *group.Service
}

func NewService(c Config) *Service {
	return &Service{
		eb:     c.EventBus,
		store:  c.Store,
		groups: c.Groups,
	}
}

type AddQuoteRequest struct {
	GroupID string
	Actor   string
	Text    string
	Author  string
}

// AddQuote creates the quote, then appends its id to the group's quote bank.
// If the append fails the quote document is left orphaned and stays invisible to the group.
func (s *Service) AddQuote(ctx context.Context, req AddQuoteRequest) (*domain.Quote, error) {
	text, author := strings.TrimSpace(req.Text), strings.TrimSpace(req.Author)
	if text == "" {
		return nil, errors.Validation("text", "quote text is required")
	}
	if author == "" {
		return nil, errors.Validation("author", "quote author is required")
	}

	if _, err := s.groups.GetMemberGroup(ctx, req.GroupID, req.Actor); err != nil {
		return nil, err
	}

	q := domain.Quote{
		Text:      text,
		Author:    author,
		CreatedBy: req.Actor,
		GroupID:   req.GroupID,
	}

	d, err := s.store.Create(ctx, store.CollectionQuotes, "", q)
	if err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}
	q.QuoteID = d.ID
	q.CreateTime = d.CreateTime
	q.UpdateTime = d.UpdateTime

	if err := s.store.AppendToArray(ctx, store.CollectionGroups, req.GroupID, fieldQuoteBank, q.QuoteID); err != nil {
		return nil, fmt.Errorf("add quote to bank: group=%s quote=%s: %w", req.GroupID, q.QuoteID, err)
	}

	s.eb.Publish(ctx, domain.EventQuoteCreated{Quote: q})

	return &q, nil
}

type EditQuoteRequest struct {
	QuoteID string
	Actor   string
	// Nil fields are left unchanged.
	Text   *string
	Author *string
}

// EditQuote updates the quote in place. Any member of the quote's group may edit it.
func (s *Service) EditQuote(ctx context.Context, req EditQuoteRequest) (*domain.Quote, error) {
	fields := make(map[string]any, 2)
	if req.Text != nil {
		text := strings.TrimSpace(*req.Text)
		if text == "" {
			return nil, errors.Validation("text", "quote text is required")
		}
		fields["text"] = text
	}
	if req.Author != nil {
		author := strings.TrimSpace(*req.Author)
		if author == "" {
			return nil, errors.Validation("author", "quote author is required")
		}
		fields["author"] = author
	}

	q, err := s.getQuote(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}
	if _, err := s.groups.GetMemberGroup(ctx, q.GroupID, req.Actor); err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return q, nil
	}

	d, err := s.store.Update(ctx, store.CollectionQuotes, req.QuoteID, fields)
	if err != nil {
		return nil, fmt.Errorf("update quote: %w", err)
	}
	if q, err = decode(d); err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventQuoteUpdated{Quote: *q})

	return q, nil
}

type DeleteQuoteRequest struct {
	QuoteID string
	Actor   string
}

// DeleteQuote deletes the quote document, then removes its id from the group's quote bank.
func (s *Service) DeleteQuote(ctx context.Context, req DeleteQuoteRequest) error {
	q, err := s.getQuote(ctx, req.QuoteID)
	if err != nil {
		return err
	}
	if _, err := s.groups.GetMemberGroup(ctx, q.GroupID, req.Actor); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, store.CollectionQuotes, req.QuoteID); err != nil {
		return fmt.Errorf("delete quote: %w", err)
	}

	if err := s.store.RemoveFromArray(ctx, store.CollectionGroups, q.GroupID, fieldQuoteBank, req.QuoteID); err != nil {
		return fmt.Errorf("remove quote from bank: group=%s quote=%s: %w", q.GroupID, req.QuoteID, err)
	}

	s.eb.Publish(ctx, domain.EventQuoteDeleted{Quote: *q})

	return nil
}

type ListQuotesRequest struct {
	GroupID string
	// Actor, when set, must be a member of the group.
	Actor string
}

// ListQuotes returns the group's quotes in quote bank order.
func (s *Service) ListQuotes(ctx context.Context, req ListQuotesRequest) ([]domain.Quote, error) {
	var (
		g   *domain.Group
		err error
	)
	if req.Actor != "" {
		g, err = s.groups.GetMemberGroup(ctx, req.GroupID, req.Actor)
	} else {
		g, err = s.groups.GetGroup(ctx, group.GetGroupRequest{GroupID: req.GroupID})
	}
	if err != nil {
		return nil, err
	}

	if len(g.QuoteBank) == 0 {
		return []domain.Quote{}, nil
	}

	docs, err := s.store.List(ctx, store.CollectionQuotes, store.Equal("groupId", req.GroupID))
	if err != nil {
		return nil, fmt.Errorf("list quotes: group=%s: %w", req.GroupID, err)
	}

	byID := make(map[string]*domain.Quote, len(docs))
	for i := range docs {
		q, err := decode(&docs[i])
		if err != nil {
			return nil, err
		}
		byID[q.QuoteID] = q
	}

	quotes := make([]domain.Quote, 0, len(g.QuoteBank))
	for _, id := range g.QuoteBank {
		if q, ok := byID[id]; ok {
			quotes = append(quotes, *q)
		}
	}

	return quotes, nil
}

func (s *Service) getQuote(ctx context.Context, id string) (*domain.Quote, error) {
	d, err := s.store.Get(ctx, store.CollectionQuotes, id)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}

	return decode(d)
}

func decode(d *store.Document) (*domain.Quote, error) {
	var q domain.Quote
	if err := d.Decode(&q); err != nil {
		return nil, err
	}
	q.QuoteID = d.ID
	q.CreateTime = d.CreateTime
	q.UpdateTime = d.UpdateTime

	return &q, nil
}
