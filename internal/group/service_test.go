package group_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/errors"
	"github.com/victornm/quotient/internal/event"
	"github.com/victornm/quotient/internal/group"
	"github.com/victornm/quotient/internal/store"
)

func TestService_CreateGroup(t *testing.T) {
	tests := map[string]struct {
		req         group.CreateGroupRequest
		wantMembers []string
		wantErr     errors.Code
	}{
		"creator is the only member": {
			req:         group.CreateGroupRequest{Name: "Philosophers", Creator: "u1"},
			wantMembers: []string{"u1"},
		},
		"invitee is added after the creator": {
			req:         group.CreateGroupRequest{Name: "Philosophers", Creator: "u1", Invite: " u2 "},
			wantMembers: []string{"u1", "u2"},
		},
		"inviting yourself adds nothing": {
			req:         group.CreateGroupRequest{Name: "Solo", Creator: "u1", Invite: "u1"},
			wantMembers: []string{"u1"},
		},
		"name is required": {
			req:     group.CreateGroupRequest{Name: "  ", Creator: "u1"},
			wantErr: errors.CodeInvalidArgument,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := group.NewService(group.Config{EventBus: event.NewBus(), Store: store.NewMemory()})

			g, err := s.CreateGroup(context.Background(), tt.req)
			if tt.wantErr != 0 {
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)

			assert.NotEmpty(t, g.GroupID)
			assert.Equal(t, tt.wantMembers, g.Members)
			assert.Equal(t, []string{}, g.QuoteBank)

			got, err := s.GetGroup(context.Background(), group.GetGroupRequest{GroupID: g.GroupID})
			require.NoError(t, err)
			assert.Equal(t, g, got)
		})
	}
}

func TestService_ListGroups(t *testing.T) {
	ctx := context.Background()
	s := group.NewService(group.Config{EventBus: event.NewBus(), Store: store.NewMemory()})

	a, err := s.CreateGroup(ctx, group.CreateGroupRequest{Name: "a", Creator: "u1"})
	require.NoError(t, err)
	_, err = s.CreateGroup(ctx, group.CreateGroupRequest{Name: "b", Creator: "u2"})
	require.NoError(t, err)
	c, err := s.CreateGroup(ctx, group.CreateGroupRequest{Name: "c", Creator: "u3", Invite: "u1"})
	require.NoError(t, err)

	got, err := s.ListGroups(ctx, group.ListGroupsRequest{Member: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.GroupID, got[0].GroupID)
	assert.Equal(t, c.GroupID, got[1].GroupID)

	none, err := s.ListGroups(ctx, group.ListGroupsRequest{Member: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestService_JoinGroup(t *testing.T) {
	ctx := context.Background()
	eb := event.NewBus()

	var (
		mu      sync.Mutex
		updates int
	)
	event.On(eb, domain.EventNameGroupUpdated, func(context.Context, domain.EventGroupUpdated) error {
		mu.Lock()
		updates++
		mu.Unlock()
		return nil
	})

	s := group.NewService(group.Config{EventBus: eb, Store: store.NewMemory()})

	g, err := s.CreateGroup(ctx, group.CreateGroupRequest{Name: "a", Creator: "u1"})
	require.NoError(t, err)

	_, err = s.GetMemberGroup(ctx, g.GroupID, "u2")
	require.True(t, errors.Is(err, errors.CodePermissionDenied), "got %v", err)

	joined, err := s.JoinGroup(ctx, group.JoinGroupRequest{GroupID: g.GroupID, UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, joined.Members)

	again, err := s.JoinGroup(ctx, group.JoinGroupRequest{GroupID: g.GroupID, UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, again.Members)

	_, err = s.GetMemberGroup(ctx, g.GroupID, "u2")
	require.NoError(t, err)

	_, err = s.JoinGroup(ctx, group.JoinGroupRequest{GroupID: "missing", UserID: "u2"})
	require.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)

	eb.Stop()
	assert.Equal(t, 1, updates)
}
