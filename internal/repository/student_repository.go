package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/student-records-api/internal/models"
)

// ErrDuplicateEmail reports a student email uniqueness violation.
var ErrDuplicateEmail = errors.New("email already exists")

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `s.id, s.name, s.email, s.age, s.user_id, s.created_at, s.updated_at, u.username AS owner_username`

// ListAll returns every student with its owner. Admin view.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s JOIN users u ON u.id = s.user_id ORDER BY s.created_at DESC`, studentColumns)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// ListForOwner returns the students owned by the given username.
func (r *StudentRepository) ListForOwner(ctx context.Context, username string) ([]models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s JOIN users u ON u.id = s.user_id WHERE u.username = $1 ORDER BY s.created_at DESC`, studentColumns)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, username); err != nil {
		return nil, fmt.Errorf("list students for owner: %w", err)
	}
	return students, nil
}

// FindByID returns a student by identifier, any owner.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s JOIN users u ON u.id = s.user_id WHERE s.id = $1 LIMIT 1`, studentColumns)
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// FindByIDForOwner returns a student only when owned by the given username.
func (r *StudentRepository) FindByIDForOwner(ctx context.Context, id, username string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s JOIN users u ON u.id = s.user_id WHERE s.id = $1 AND u.username = $2 LIMIT 1`, studentColumns)
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, id, username); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student for owner: %w", err)
	}
	return &student, nil
}

// Search returns a filtered page of students with the total match count.
func (r *StudentRepository) Search(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := `FROM students s JOIN users u ON u.id = s.user_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Name != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(s.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(filter.Name))+"%")
	}
	if filter.MinAge != nil {
		conditions = append(conditions, fmt.Sprintf("s.age >= $%d", len(args)+1))
		args = append(args, *filter.MinAge)
	}
	if filter.MaxAge != nil {
		conditions = append(conditions, fmt.Sprintf("s.age <= $%d", len(args)+1))
		args = append(args, *filter.MaxAge)
	}
	if filter.OwnerUsername != "" {
		conditions = append(conditions, fmt.Sprintf("u.username = $%d", len(args)+1))
		args = append(args, filter.OwnerUsername)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 0 {
		page = 0
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := page * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY s.created_at DESC LIMIT %d OFFSET %d`, studentColumns, base, size, offset)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("search students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}

	return students, total, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	const query = `INSERT INTO students (id, name, email, age, user_id, created_at, updated_at) VALUES (:id, :name, :email, :age, :user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update persists mutable fields of a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, email = :email, age = :age, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student record. Returns sql.ErrNoRows when nothing matched.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
