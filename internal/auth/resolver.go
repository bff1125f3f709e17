package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

const tokenCachePrefix = "gatehouse:token:"

// ParseBearer extracts the opaque token from a raw Authorization header
// value. The "Bearer" scheme match is case-insensitive; a header without it
// is a malformed-header error, distinct from an unknown token.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", shared.ErrUnauthorized
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", shared.ErrMalformedAuthHeader
	}
	token := strings.TrimSpace(rest)
	if token == "" {
		return "", shared.ErrMalformedAuthHeader
	}
	return token, nil
}

// Resolver maps an inbound bearer token to a user identity by exact token
// equality. Lookups go through a short-lived Redis cache; concurrent misses
// for the same token collapse into one store query. Resolved principals are
// redacted: they never carry the password hash or auth key.
type Resolver struct {
	logger *slog.Logger
	users  identity.Repository
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewResolver constructs a Resolver. The cache client may be nil, in which
// case every lookup hits the store.
func NewResolver(logger *slog.Logger, users identity.Repository, cache *redis.Client, ttl time.Duration) *Resolver {
	return &Resolver{logger: logger, users: users, cache: cache, ttl: ttl}
}

// Resolve returns the user owning the bearer token carried by the header,
// shared.ErrMalformedAuthHeader when no bearer scheme is present, or
// shared.ErrNotFound for a token never issued.
func (r *Resolver) Resolve(ctx context.Context, header string) (*identity.User, error) {
	token, err := ParseBearer(header)
	if err != nil {
		return nil, err
	}
	return r.ResolveToken(ctx, token)
}

// ResolveToken looks up a raw token directly.
func (r *Resolver) ResolveToken(ctx context.Context, token string) (*identity.User, error) {
	if user, ok := r.cached(ctx, token); ok {
		return user, nil
	}

	result, err, _ := r.group.Do(token, func() (any, error) {
		user, err := r.users.FindByAccessToken(ctx, token)
		if err != nil {
			return nil, err
		}
		r.store(ctx, token, user)
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	user := result.(*identity.User)
	clone := *user
	clone.PasswordHash = ""
	clone.AuthKey = ""
	return &clone, nil
}

// Invalidate drops a token from the cache. Called after token rotation and
// after any mutation or deletion of the owning account.
func (r *Resolver) Invalidate(ctx context.Context, token string) {
	if r.cache == nil || token == "" {
		return
	}
	if err := r.cache.Del(ctx, tokenCachePrefix+token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Warn("token cache invalidate", slog.Any("error", err))
	}
}

func (r *Resolver) cached(ctx context.Context, token string) (*identity.User, bool) {
	if r.cache == nil {
		return nil, false
	}
	payload, err := r.cache.Get(ctx, tokenCachePrefix+token).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("token cache get", slog.Any("error", err))
		}
		return nil, false
	}
	var user identity.User
	if err := json.Unmarshal(payload, &user); err != nil {
		r.logger.Warn("token cache decode", slog.Any("error", err))
		return nil, false
	}
	return &user, true
}

// store caches a redacted copy of the user. Credential secrets never go to
// Redis; anything that persists a cache-resolved principal must reload the
// row first.
func (r *Resolver) store(ctx context.Context, token string, user *identity.User) {
	if r.cache == nil {
		return
	}
	redacted := *user
	redacted.PasswordHash = ""
	redacted.AuthKey = ""
	payload, err := json.Marshal(&redacted)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, tokenCachePrefix+token, payload, r.ttl).Err(); err != nil {
		r.logger.Warn("token cache set", slog.Any("error", err))
	}
}
