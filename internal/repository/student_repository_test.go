package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-records-api/internal/models"
)

func studentRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "age", "user_id", "created_at", "updated_at", "owner_username"}).
		AddRow("s1", "Jane", "jane@example.com", 20, "u1", now, now, "alice")
}

func TestListForOwner(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("FROM students s JOIN users u ON u.id = s.user_id WHERE u.username").
		WithArgs("alice").
		WillReturnRows(studentRows(time.Now()))

	students, err := repo.ListForOwner(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "alice", students[0].OwnerUsername)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	minAge, maxAge := 18, 25
	mock.ExpectQuery(`LOWER\(s\.name\) LIKE \$1 AND s\.age >= \$2 AND s\.age <= \$3 AND u\.username = \$4`).
		WithArgs("%jane%", 18, 25, "alice").
		WillReturnRows(studentRows(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("%jane%", 18, 25, "alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.Search(context.Background(), models.StudentFilter{
		Name:          "Jane",
		MinAge:        &minAge,
		MaxAge:        &maxAge,
		OwnerUsername: "alice",
	})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStudentDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Student{Name: "Jane", Email: "jane@example.com", Age: 20, OwnerID: "u1"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestDeleteStudentReportsMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "gone")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
