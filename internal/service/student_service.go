package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/repository"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
)

// studentStore is the slice of the student repository the service needs.
type studentStore interface {
	ListAll(ctx context.Context) ([]models.StudentDetail, error)
	ListForOwner(ctx context.Context, username string) ([]models.StudentDetail, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByIDForOwner(ctx context.Context, id, username string) (*models.StudentDetail, error)
	Search(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// StudentService applies ownership scoping on top of the student store:
// admins see every record with its owner, everyone else sees only their own.
type StudentService struct {
	students studentStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewStudentService wires the student service.
func NewStudentService(students studentStore, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{students: students, validate: validate, logger: logger}
}

// List returns the records visible to the caller.
func (s *StudentService) List(ctx context.Context, identity *models.Identity) ([]models.StudentView, error) {
	var (
		details []models.StudentDetail
		err     error
	)
	if identity.HasRole(models.RoleAdmin) {
		details, err = s.students.ListAll(ctx)
	} else {
		details, err = s.students.ListForOwner(ctx, identity.User.Username)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list students")
	}
	return viewsFor(details, identity), nil
}

// Search returns a filtered page of visible records. Non-admin callers are
// pinned to their own records regardless of the requested owner filter.
func (s *StudentService) Search(ctx context.Context, identity *models.Identity, filter models.StudentFilter) (*models.PageResponse, error) {
	if !identity.HasRole(models.RoleAdmin) {
		filter.OwnerUsername = identity.User.Username
	}
	if filter.Page < 0 {
		filter.Page = 0
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 10
	}

	details, total, err := s.students.Search(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "search students")
	}
	resp := models.NewPageResponse(viewsFor(details, identity), filter.Page, filter.PageSize, total)
	return &resp, nil
}

// Get returns one record if the caller may see it. A record owned by someone
// else looks identical to a missing one.
func (s *StudentService) Get(ctx context.Context, identity *models.Identity, id string) (*models.StudentView, error) {
	detail, err := s.findVisible(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	view := viewFor(detail, identity)
	return &view, nil
}

// Create inserts a record owned by the caller.
func (s *StudentService) Create(ctx context.Context, identity *models.Identity, req models.StudentRequest) (*models.StudentView, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student := &models.Student{
		Name:    req.Name,
		Email:   req.Email,
		Age:     req.Age,
		OwnerID: identity.User.ID,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, mapStudentWriteError(err)
	}

	s.logger.Info("student created", zap.String("id", student.ID), zap.String("owner", identity.User.Username))

	view := viewFor(&models.StudentDetail{Student: *student, OwnerUsername: identity.User.Username}, identity)
	return &view, nil
}

// Update modifies a record the caller may see.
func (s *StudentService) Update(ctx context.Context, identity *models.Identity, id string, req models.StudentRequest) (*models.StudentView, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	detail, err := s.findVisible(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	detail.Name = req.Name
	detail.Email = req.Email
	detail.Age = req.Age
	if err := s.students.Update(ctx, &detail.Student); err != nil {
		return nil, mapStudentWriteError(err)
	}

	view := viewFor(detail, identity)
	return &view, nil
}

// Delete removes a record the caller may see.
func (s *StudentService) Delete(ctx context.Context, identity *models.Identity, id string) error {
	if _, err := s.findVisible(ctx, identity, id); err != nil {
		return err
	}
	if err := s.students.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete student")
	}
	s.logger.Info("student deleted", zap.String("id", id))
	return nil
}

func (s *StudentService) findVisible(ctx context.Context, identity *models.Identity, id string) (*models.StudentDetail, error) {
	var (
		detail *models.StudentDetail
		err    error
	)
	if identity.HasRole(models.RoleAdmin) {
		detail, err = s.students.FindByID(ctx, id)
	} else {
		detail, err = s.students.FindByIDForOwner(ctx, id, identity.User.Username)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find student")
	}
	return detail, nil
}

func mapStudentWriteError(err error) error {
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store student")
}

func viewsFor(details []models.StudentDetail, identity *models.Identity) []models.StudentView {
	views := make([]models.StudentView, 0, len(details))
	for i := range details {
		views = append(views, viewFor(&details[i], identity))
	}
	return views
}

// viewFor hides the owner column from non-admin callers.
func viewFor(detail *models.StudentDetail, identity *models.Identity) models.StudentView {
	view := models.StudentView{
		ID:    detail.ID,
		Name:  detail.Name,
		Email: detail.Email,
		Age:   detail.Age,
	}
	if identity.HasRole(models.RoleAdmin) {
		view.OwnerUsername = detail.OwnerUsername
	}
	return view
}
