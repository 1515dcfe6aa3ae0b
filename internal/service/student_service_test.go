package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/repository"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
)

type fakeStudentStore struct {
	records   map[string]*models.StudentDetail
	createErr error
	deleted   []string
	lastFilter models.StudentFilter
}

func (f *fakeStudentStore) ListAll(_ context.Context) ([]models.StudentDetail, error) {
	var out []models.StudentDetail
	for _, d := range f.records {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeStudentStore) ListForOwner(_ context.Context, username string) ([]models.StudentDetail, error) {
	var out []models.StudentDetail
	for _, d := range f.records {
		if d.OwnerUsername == username {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeStudentStore) FindByID(_ context.Context, id string) (*models.StudentDetail, error) {
	if d, ok := f.records[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentStore) FindByIDForOwner(_ context.Context, id, username string) (*models.StudentDetail, error) {
	if d, ok := f.records[id]; ok && d.OwnerUsername == username {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentStore) Search(_ context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	f.lastFilter = filter
	matches, err := f.ListForOwner(context.Background(), filter.OwnerUsername)
	if filter.OwnerUsername == "" {
		matches, err = f.ListAll(context.Background())
	}
	return matches, len(matches), err
}

func (f *fakeStudentStore) Create(_ context.Context, student *models.Student) error {
	if f.createErr != nil {
		return f.createErr
	}
	student.ID = uuid.NewString()
	return nil
}

func (f *fakeStudentStore) Update(_ context.Context, student *models.Student) error {
	return nil
}

func (f *fakeStudentStore) Delete(_ context.Context, id string) error {
	if _, ok := f.records[id]; !ok {
		return sql.ErrNoRows
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func identityFor(username string, roles ...string) *models.Identity {
	return &models.Identity{User: &models.User{
		ID:       "id-" + username,
		Username: username,
		Roles:    pq.StringArray(roles),
	}}
}

func seededStudentStore() *fakeStudentStore {
	return &fakeStudentStore{records: map[string]*models.StudentDetail{
		"s1": {
			Student:       models.Student{ID: "s1", Name: "Jane", Email: "jane@example.com", Age: 20, OwnerID: "id-alice"},
			OwnerUsername: "alice",
		},
		"s2": {
			Student:       models.Student{ID: "s2", Name: "Joe", Email: "joe@example.com", Age: 22, OwnerID: "id-bob"},
			OwnerUsername: "bob",
		},
	}}
}

func TestListScopesToOwner(t *testing.T) {
	store := seededStudentStore()
	svc := NewStudentService(store, nil, nil)

	views, err := svc.List(context.Background(), identityFor("alice", models.RoleUser))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "s1", views[0].ID)
	assert.Empty(t, views[0].OwnerUsername)
}

func TestListAdminSeesOwners(t *testing.T) {
	store := seededStudentStore()
	svc := NewStudentService(store, nil, nil)

	views, err := svc.List(context.Background(), identityFor("root", models.RoleAdmin, models.RoleUser))
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.NotEmpty(t, v.OwnerUsername)
	}
}

func TestSearchPinsNonAdminToOwnRecords(t *testing.T) {
	store := seededStudentStore()
	svc := NewStudentService(store, nil, nil)

	// A non-admin asking for someone else's records gets their own anyway.
	page, err := svc.Search(context.Background(), identityFor("alice", models.RoleUser), models.StudentFilter{OwnerUsername: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "alice", store.lastFilter.OwnerUsername)
	assert.Equal(t, 1, page.TotalElements)
}

func TestSearchAdminKeepsRequestedFilter(t *testing.T) {
	store := seededStudentStore()
	svc := NewStudentService(store, nil, nil)

	_, err := svc.Search(context.Background(), identityFor("root", models.RoleAdmin), models.StudentFilter{OwnerUsername: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob", store.lastFilter.OwnerUsername)
}

func TestGetHidesForeignRecords(t *testing.T) {
	store := seededStudentStore()
	svc := NewStudentService(store, nil, nil)

	// Foreign and missing records are indistinguishable.
	_, err := svc.Get(context.Background(), identityFor("alice", models.RoleUser), "s2")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = svc.Get(context.Background(), identityFor("alice", models.RoleUser), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	view, err := svc.Get(context.Background(), identityFor("root", models.RoleAdmin), "s2")
	require.NoError(t, err)
	assert.Equal(t, "bob", view.OwnerUsername)
}

func TestCreateAssignsCallerAsOwner(t *testing.T) {
	store := seededStudentStore()
	svc := NewStudentService(store, nil, nil)

	view, err := svc.Create(context.Background(), identityFor("alice", models.RoleUser), models.StudentRequest{
		Name: "Jim", Email: "jim@example.com", Age: 19,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, view.ID)
	assert.Empty(t, view.OwnerUsername)
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	svc := NewStudentService(seededStudentStore(), nil, nil)

	_, err := svc.Create(context.Background(), identityFor("alice", models.RoleUser), models.StudentRequest{
		Name: "Jim", Email: "not-an-email", Age: 19,
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCreateDuplicateEmailConflicts(t *testing.T) {
	store := seededStudentStore()
	store.createErr = repository.ErrDuplicateEmail
	svc := NewStudentService(store, nil, nil)

	_, err := svc.Create(context.Background(), identityFor("alice", models.RoleUser), models.StudentRequest{
		Name: "Jim", Email: "jane@example.com", Age: 19,
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestUpdateRespectsOwnership(t *testing.T) {
	store := seededStudentStore()
	svc := NewStudentService(store, nil, nil)

	_, err := svc.Update(context.Background(), identityFor("alice", models.RoleUser), "s2", models.StudentRequest{
		Name: "Hijack", Email: "h@example.com", Age: 30,
	})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	view, err := svc.Update(context.Background(), identityFor("alice", models.RoleUser), "s1", models.StudentRequest{
		Name: "Jane B", Email: "jane@example.com", Age: 21,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane B", view.Name)
	assert.Equal(t, 21, view.Age)
}

func TestDeleteRespectsOwnership(t *testing.T) {
	store := seededStudentStore()
	svc := NewStudentService(store, nil, nil)

	err := svc.Delete(context.Background(), identityFor("alice", models.RoleUser), "s2")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	require.NoError(t, svc.Delete(context.Background(), identityFor("alice", models.RoleUser), "s1"))
	assert.Equal(t, []string{"s1"}, store.deleted)
}
