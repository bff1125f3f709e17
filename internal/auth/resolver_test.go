package auth

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

func TestParseBearer(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		token   string
		wantErr error
	}{
		{name: "empty header", header: "", wantErr: shared.ErrUnauthorized},
		{name: "wrong scheme", header: "Token abc", wantErr: shared.ErrMalformedAuthHeader},
		{name: "scheme only", header: "Bearer", wantErr: shared.ErrMalformedAuthHeader},
		{name: "blank token", header: "Bearer   ", wantErr: shared.ErrMalformedAuthHeader},
		{name: "standard", header: "Bearer abc123", token: "abc123"},
		{name: "lowercase scheme", header: "bearer abc123", token: "abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := ParseBearer(tc.header)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ParseBearer(%q) err = %v, want %v", tc.header, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBearer(%q): %v", tc.header, err)
			}
			if token != tc.token {
				t.Fatalf("token = %q, want %q", token, tc.token)
			}
		})
	}
}

// countingUsers counts store lookups so cache behavior is observable.
type countingUsers struct {
	*memUsers
	lookups atomic.Int64
}

func (c *countingUsers) FindByAccessToken(ctx context.Context, token string) (*identity.User, error) {
	c.lookups.Add(1)
	return c.memUsers.FindByAccessToken(ctx, token)
}

func seedUser(t *testing.T, users *memUsers, token string) *identity.User {
	t.Helper()
	user := &identity.User{
		Name:         "Ada",
		Email:        "ada@example.com",
		Language:     identity.DefaultLanguage,
		PasswordHash: "x",
		AccessToken:  token,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestResolveUnknownToken(t *testing.T) {
	resolver := NewResolver(discardLogger(), newMemUsers(), nil, time.Minute)

	_, err := resolver.Resolve(context.Background(), "Bearer never-issued")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveWithoutCache(t *testing.T) {
	users := newMemUsers()
	seeded := seedUser(t, users, "tok-1")
	resolver := NewResolver(discardLogger(), users, nil, time.Minute)

	user, err := resolver.Resolve(context.Background(), "Bearer tok-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user.ID != seeded.ID {
		t.Fatalf("resolved user %d, want %d", user.ID, seeded.ID)
	}
}

func TestResolveCachesLookups(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	users := &countingUsers{memUsers: newMemUsers()}
	seedUser(t, users.memUsers, "tok-1")
	resolver := NewResolver(discardLogger(), users, client, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := resolver.ResolveToken(ctx, "tok-1"); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
	if got := users.lookups.Load(); got != 1 {
		t.Fatalf("store lookups = %d, want 1", got)
	}
}

func TestInvalidateDropsCacheEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	users := &countingUsers{memUsers: newMemUsers()}
	seedUser(t, users.memUsers, "tok-1")
	resolver := NewResolver(discardLogger(), users, client, time.Minute)
	ctx := context.Background()

	if _, err := resolver.ResolveToken(ctx, "tok-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	resolver.Invalidate(ctx, "tok-1")
	if _, err := resolver.ResolveToken(ctx, "tok-1"); err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if got := users.lookups.Load(); got != 2 {
		t.Fatalf("store lookups = %d, want 2", got)
	}
}

// Credential secrets stay out of Redis and out of the resolved principal on
// both the miss and the hit path.
func TestResolvedPrincipalIsRedacted(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	users := newMemUsers()
	seeded := &identity.User{
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: "bcrypt-material",
		AuthKey:      "auth-key-material",
		AccessToken:  "tok-1",
	}
	if err := users.Create(context.Background(), seeded); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	resolver := NewResolver(discardLogger(), users, client, time.Minute)
	ctx := context.Background()

	miss, err := resolver.ResolveToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if miss.PasswordHash != "" || miss.AuthKey != "" {
		t.Fatalf("miss-path principal carries secrets: hash=%q key=%q", miss.PasswordHash, miss.AuthKey)
	}

	raw, err := mr.Get(tokenCachePrefix + "tok-1")
	if err != nil {
		t.Fatalf("read cache entry: %v", err)
	}
	if strings.Contains(raw, "bcrypt-material") || strings.Contains(raw, "auth-key-material") {
		t.Fatalf("cache entry carries secrets: %s", raw)
	}

	hit, err := resolver.ResolveToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("resolve from cache: %v", err)
	}
	if hit.ID != seeded.ID || hit.Email != "ada@example.com" {
		t.Fatalf("hit-path principal = %+v", hit)
	}
	if hit.PasswordHash != "" || hit.AuthKey != "" {
		t.Fatalf("hit-path principal carries secrets: hash=%q key=%q", hit.PasswordHash, hit.AuthKey)
	}
}

func TestCacheExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	users := &countingUsers{memUsers: newMemUsers()}
	seedUser(t, users.memUsers, "tok-1")
	resolver := NewResolver(discardLogger(), users, client, time.Minute)
	ctx := context.Background()

	if _, err := resolver.ResolveToken(ctx, "tok-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := resolver.ResolveToken(ctx, "tok-1"); err != nil {
		t.Fatalf("resolve after expiry: %v", err)
	}
	if got := users.lookups.Load(); got != 2 {
		t.Fatalf("store lookups = %d, want 2", got)
	}
}
