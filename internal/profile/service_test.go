package profile

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/rbac"
	"github.com/gatehouse-io/gatehouse/internal/shared"
	_ "github.com/gatehouse-io/gatehouse/testing"
)

// memUsers is an in-memory identity.Repository; only the methods the profile
// service touches carry behavior.
type memUsers struct {
	seq   int64
	users map[int64]identity.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[int64]identity.User{}}
}

func (m *memUsers) Create(ctx context.Context, user *identity.User) error {
	m.seq++
	user.ID = m.seq
	m.users[user.ID] = *user
	return nil
}

func (m *memUsers) Update(ctx context.Context, user *identity.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return shared.ErrNotFound
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memUsers) UpdateAccessToken(ctx context.Context, id int64, token string) error {
	user, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	user.AccessToken = token
	m.users[id] = user
	return nil
}

func (m *memUsers) Delete(ctx context.Context, id int64) error {
	delete(m.users, id)
	return nil
}

func (m *memUsers) FindByID(ctx context.Context, id int64) (*identity.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &user, nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	return nil, shared.ErrNotFound
}

func (m *memUsers) FindByAccessToken(ctx context.Context, token string) (*identity.User, error) {
	return nil, shared.ErrNotFound
}

func (m *memUsers) List(ctx context.Context) ([]identity.User, error) { return nil, nil }

// stubGrants serves a fixed snapshot per user.
type stubGrants struct {
	roles map[int64][]rbac.Role
	perms map[int64][]string
}

func (s *stubGrants) RoleByName(ctx context.Context, name string) (rbac.Role, error) {
	return rbac.Role{}, shared.ErrNotFound
}
func (s *stubGrants) ListRoles(ctx context.Context) ([]rbac.Role, error) { return nil, nil }
func (s *stubGrants) RolesOf(ctx context.Context, userID int64) ([]rbac.Role, error) {
	return s.roles[userID], nil
}
func (s *stubGrants) PermissionsOf(ctx context.Context, userID int64) ([]string, error) {
	return s.perms[userID], nil
}
func (s *stubGrants) Assign(ctx context.Context, userID, roleID int64) error { return nil }
func (s *stubGrants) RevokeAll(ctx context.Context, userID int64) error      { return nil }

func newTestService(users *memUsers, grants *stubGrants, images ImageStore) *Service {
	if grants == nil {
		grants = &stubGrants{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, users, rbac.NewService(grants), images, nil)
}

func seedUser(t *testing.T, users *memUsers) *identity.User {
	t.Helper()
	user := &identity.User{
		Name:         "Ada",
		Email:        "ada@example.com",
		Language:     identity.DefaultLanguage,
		PasswordHash: "x",
	}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func TestGetEnrichesWithGrants(t *testing.T) {
	users := newMemUsers()
	user := seedUser(t, users)
	grants := &stubGrants{
		roles: map[int64][]rbac.Role{user.ID: {{ID: 2, Name: "user"}}},
		perms: map[int64][]string{user.ID: {shared.PermViewDashboard}},
	}
	svc := newTestService(users, grants, nil)

	view, err := svc.Get(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, user.ID, view.ID)
	assert.Equal(t, []string{"user"}, view.Roles)
	assert.Equal(t, []string{shared.PermViewDashboard}, view.Permissions)
	assert.Equal(t, "en", view.Language)
	assert.Equal(t, identity.DefaultImage, view.Image, "an unset image falls back to the sample")
}

func TestGetNeverNilSlices(t *testing.T) {
	users := newMemUsers()
	user := seedUser(t, users)
	svc := newTestService(users, nil, nil)

	view, err := svc.Get(context.Background(), user)
	require.NoError(t, err)
	assert.NotNil(t, view.Roles)
	assert.NotNil(t, view.Permissions)
}

func TestSetLanguage(t *testing.T) {
	cases := []struct {
		name string
		lang string
		want string
	}{
		{name: "english", lang: "en", want: "en"},
		{name: "german", lang: "de", want: "de"},
		{name: "region collapses to base", lang: "de-AT", want: "de"},
		{name: "case insensitive", lang: "EN", want: "en"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users := newMemUsers()
			user := seedUser(t, users)
			svc := newTestService(users, nil, nil)

			got, err := svc.SetLanguage(context.Background(), user, tc.lang)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			stored, err := users.FindByID(context.Background(), user.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, stored.Language)
		})
	}
}

func TestSetLanguageRejectsUnsupported(t *testing.T) {
	users := newMemUsers()
	user := seedUser(t, users)
	svc := newTestService(users, nil, nil)

	for _, lang := range []string{"fr", "zz-not-a-tag", "ja"} {
		_, err := svc.SetLanguage(context.Background(), user, lang)
		verrs, ok := shared.AsValidationErrors(err)
		require.True(t, ok, "lang %q: got %v", lang, err)
		assert.Equal(t, "Unsupported language.", verrs["language"])
	}
}

func TestSetLanguageRequired(t *testing.T) {
	users := newMemUsers()
	user := seedUser(t, users)
	svc := newTestService(users, nil, nil)

	_, err := svc.SetLanguage(context.Background(), user, "")
	verrs, ok := shared.AsValidationErrors(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "Language is required", verrs["language"])
}

func TestUpdatePartial(t *testing.T) {
	users := newMemUsers()
	user := seedUser(t, users)
	svc := newTestService(users, nil, nil)

	name := "Ada Lovelace"
	updated, err := svc.Update(context.Background(), user, UpdateInput{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.Equal(t, "ada@example.com", updated.Email)
}

func TestUpdateValidation(t *testing.T) {
	users := newMemUsers()
	user := seedUser(t, users)
	svc := newTestService(users, nil, nil)

	bad := "not-an-email"
	_, err := svc.Update(context.Background(), user, UpdateInput{Email: &bad})
	verrs, ok := shared.AsValidationErrors(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, verrs, "email")
}

// A principal resolved through the token cache carries no credential
// secrets; mutations must reload the row instead of writing the principal
// back as-is.
func TestMutationsPreserveCredentials(t *testing.T) {
	users := newMemUsers()
	user := seedUser(t, users)
	svc := newTestService(users, nil, nil)
	ctx := context.Background()

	principal := *user
	principal.PasswordHash = ""
	principal.AuthKey = ""

	_, err := svc.SetLanguage(ctx, &principal, "de")
	require.NoError(t, err)

	stored, err := users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "de", stored.Language)
	assert.Equal(t, "x", stored.PasswordHash, "language change must not blank the password hash")

	name := "Ada Lovelace"
	_, err = svc.Update(ctx, &principal, UpdateInput{Name: &name})
	require.NoError(t, err)

	stored, err = users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", stored.Name)
	assert.Equal(t, "x", stored.PasswordHash, "profile update must not blank the password hash")
}

func TestUpdateStoresImage(t *testing.T) {
	users := newMemUsers()
	user := seedUser(t, users)

	dir := t.TempDir()
	store := NewDiskImageStore(dir, "/images/profile")
	svc := newTestService(users, nil, store)

	updated, err := svc.Update(context.Background(), user, UpdateInput{
		ImageExt: ".png",
		Image:    bytes.NewReader([]byte("png-bytes")),
	})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(updated.Image, "/images/profile/"), "image path = %q", updated.Image)
	assert.Equal(t, ".png", filepath.Ext(updated.Image))

	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestUpdateImageWithoutStore(t *testing.T) {
	users := newMemUsers()
	user := seedUser(t, users)
	svc := newTestService(users, nil, nil)

	_, err := svc.Update(context.Background(), user, UpdateInput{
		ImageExt: ".png",
		Image:    bytes.NewReader([]byte("png-bytes")),
	})
	assert.Error(t, err)
}
