// Package group manages groups and their membership.
package group

import (
	"context"
	"fmt"
	"strings"

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

type CreateGroupRequest struct {
	Name    string
	Creator string
	// Invite is an optional user id added as a second member.
	Invite string
}

// CreateGroup creates a group owned by its creator with an empty quote bank.
func (s *Service) CreateGroup(ctx context.Context, req CreateGroupRequest) (*domain.Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Validation("name", "group name is required")
	}

	members := []string{req.Creator}
	if invite := strings.TrimSpace(req.Invite); invite != "" && invite != req.Creator {
		members = append(members, invite)
	}

	g := domain.Group{
		Name:      name,
		Members:   members,
		QuoteBank: []string{},
	}

	d, err := s.store.Create(ctx, store.CollectionGroups, "", g)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	g.GroupID = d.ID
	g.CreateTime = d.CreateTime

	s.eb.Publish(ctx, domain.EventGroupCreated{Group: g})

	return &g, nil
}

type GetGroupRequest struct {
	GroupID string
}

func (s *Service) GetGroup(ctx context.Context, req GetGroupRequest) (*domain.Group, error) {
	d, err := s.store.Get(ctx, store.CollectionGroups, req.GroupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	return decode(d)
}

// GetMemberGroup returns the group if userID is one of its members.
func (s *Service) GetMemberGroup(ctx context.Context, groupID, userID string) (*domain.Group, error) {
	g, err := s.GetGroup(ctx, GetGroupRequest{GroupID: groupID})
	if err != nil {
		return nil, err
	}

	if !g.HasMember(userID) {
		return nil, errors.PermissionDenied("user %s is not a member of group %s", userID, groupID)
	}

	return g, nil
}

type ListGroupsRequest struct {
	Member string
}

// ListGroups returns the groups the member belongs to, oldest first.
func (s *Service) ListGroups(ctx context.Context, req ListGroupsRequest) ([]domain.Group, error) {
	docs, err := s.store.List(ctx, store.CollectionGroups, store.Contains("members", req.Member))
	if err != nil {
		return nil, fmt.Errorf("list groups: member=%s: %w", req.Member, err)
	}

	groups := make([]domain.Group, 0, len(docs))
	for i := range docs {
		g, err := decode(&docs[i])
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}

	return groups, nil
}

type JoinGroupRequest struct {
	GroupID string
	UserID  string
}

// JoinGroup adds the user to the group. Joining twice is a no-op.
func (s *Service) JoinGroup(ctx context.Context, req JoinGroupRequest) (*domain.Group, error) {
	if req.UserID == "" {
		return nil, errors.Validation("userId", "user id is required")
	}

	g, err := s.GetGroup(ctx, GetGroupRequest{GroupID: req.GroupID})
	if err != nil {
		return nil, err
	}
	if g.HasMember(req.UserID) {
		return g, nil
	}

	if err := s.store.AppendToArray(ctx, store.CollectionGroups, req.GroupID, "members", req.UserID); err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}

	g, err = s.GetGroup(ctx, GetGroupRequest{GroupID: req.GroupID})
	if err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventGroupUpdated{Group: *g})

	return g, nil
}

func decode(d *store.Document) (*domain.Group, error) {
	var g domain.Group
	if err := d.Decode(&g); err != nil {
		return nil, err
	}
	g.GroupID = d.ID
	g.CreateTime = d.CreateTime
	if g.Members == nil {
		g.Members = []string{}
	}
	if g.QuoteBank == nil {
		g.QuoteBank = []string{}
	}

	return &g, nil
}
