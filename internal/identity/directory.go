package identity

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quotient/internal/domain"
)

const defaultNameTTL = 10 * time.Minute

type UserGetter interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type DirectoryConfig struct {
	Users  UserGetter
	Redis  redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

// Directory resolves user ids to display names, caching them in Redis.
type Directory struct {
	users  UserGetter
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewDirectory(c DirectoryConfig) *Directory {
	d := &Directory{
		users:  c.Users,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
	}
	if d.ttl <= 0 {
		d.ttl = defaultNameTTL
	}

	return d
}

// DisplayName returns the user's name, else email, else the id itself.
// Failed lookups fall back to the id and are not cached.
func (d *Directory) DisplayName(ctx context.Context, userID string) string {
	key := d.nameKey(userID)

	name, err := d.redis.Get(ctx, key).Result()
	if err == nil {
		return name
	}
	if !stderrors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "identity: read name cache failed", "user", userID, "error", err)
	}

	u, err := d.users.GetUser(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "identity: resolve display name failed", "user", userID, "error", err)
		return userID
	}

	name = DisplayName(u)
	if err := d.redis.Set(ctx, key, name, d.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "identity: write name cache failed", "user", userID, "error", err)
	}

	return name
}

// DisplayName picks the label shown for a user.
func DisplayName(u *domain.User) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return u.UserID
	}
}

func (d *Directory) nameKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:name", d.prefix, userID)
}
