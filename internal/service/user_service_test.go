package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-records-api/internal/models"
)

type fakeUserLister struct {
	fakeUsers
	listed []models.User
	total  int
}

func (f *fakeUserLister) List(_ context.Context, page, size int) ([]models.User, int, error) {
	return f.listed, f.total, nil
}

func TestEnsureDefaultAdminSeedsOnce(t *testing.T) {
	lister := &fakeUserLister{fakeUsers: fakeUsers{byUsername: map[string]*models.User{}}}
	svc := NewUserService(lister, nil)
	seed := SeedAdmin{Username: "admin", Password: "Admin@123"}

	require.NoError(t, svc.EnsureDefaultAdmin(context.Background(), seed))
	require.Len(t, lister.created, 1)

	admin := lister.created[0]
	assert.Equal(t, "admin", admin.Username)
	assert.ElementsMatch(t, []string{models.RoleAdmin, models.RoleUser}, []string(admin.Roles))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("Admin@123")))

	// Second start finds the account and does nothing.
	lister.byUsername["admin"] = admin
	require.NoError(t, svc.EnsureDefaultAdmin(context.Background(), seed))
	assert.Len(t, lister.created, 1)
}

func TestEnsureDefaultAdminSkipsEmptySeed(t *testing.T) {
	lister := &fakeUserLister{fakeUsers: fakeUsers{byUsername: map[string]*models.User{}}}
	svc := NewUserService(lister, nil)

	require.NoError(t, svc.EnsureDefaultAdmin(context.Background(), SeedAdmin{}))
	assert.Empty(t, lister.created)
}

func TestListPageBuildsEnvelope(t *testing.T) {
	lister := &fakeUserLister{
		listed: []models.User{
			{ID: uuid.NewString(), Username: "admin", Roles: pq.StringArray{"ADMIN", "USER"}},
			{ID: uuid.NewString(), Username: "alice", Roles: pq.StringArray{"USER"}},
		},
		total: 12,
	}
	svc := NewUserService(lister, nil)

	page, err := svc.ListPage(context.Background(), 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Page)
	assert.Equal(t, 5, page.Size)
	assert.Equal(t, 12, page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)

	summaries, ok := page.Content.([]models.UserSummary)
	require.True(t, ok)
	require.Len(t, summaries, 2)
	assert.Equal(t, "admin", summaries[0].Username)
}

func TestListPageClampsBounds(t *testing.T) {
	lister := &fakeUserLister{total: 0}
	svc := NewUserService(lister, nil)

	page, err := svc.ListPage(context.Background(), -3, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Page)
	assert.Equal(t, 10, page.Size)
}
