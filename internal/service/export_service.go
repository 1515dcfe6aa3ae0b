package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/internal/models"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/export"
	"github.com/noah-isme/student-records-api/pkg/storage"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var errUnknownFormat = appErrors.New("UNKNOWN_FORMAT", http.StatusBadRequest, "format must be csv or pdf")

// rosterSource supplies the full student roster for export.
type rosterSource interface {
	ListAll(ctx context.Context) ([]models.StudentDetail, error)
}

// ExportArtifact describes a rendered export file and its download token.
type ExportArtifact struct {
	FileName  string    `json:"file"`
	Token     string    `json:"download_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders the student roster to downloadable files. Files land
// in local storage and are fetched back with a signed, expiring token, so the
// download endpoint needs no session of its own.
type ExportService struct {
	students rosterSource
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
}

// NewExportService wires the export pipeline.
func NewExportService(students rosterSource, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		students: students,
		store:    store,
		signer:   signer,
		logger:   logger,
	}
}

// Export renders the full roster in the requested format and returns the
// stored file together with its signed download token.
func (s *ExportService) Export(ctx context.Context, format string) (*ExportArtifact, error) {
	details, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load roster")
	}
	dataset := rosterDataset(details)

	var rendered []byte
	switch format {
	case ExportFormatCSV:
		rendered, err = export.RenderCSV(dataset)
	case ExportFormatPDF:
		rendered, err = export.RenderPDF(dataset, "Student Roster")
	default:
		return nil, errUnknownFormat
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render export")
	}

	fileName := fmt.Sprintf("students-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	if _, err := s.store.Save(fileName, rendered); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store export")
	}

	token, expiresAt, err := s.signer.Generate(uuid.NewString(), fileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign download")
	}

	s.logger.Info("roster exported", zap.String("file", fileName), zap.Int("rows", len(details)))
	return &ExportArtifact{FileName: fileName, Token: token, ExpiresAt: expiresAt}, nil
}

// OpenDownload validates the signed token and opens the referenced file.
// The returned content type follows the file extension.
func (s *ExportService) OpenDownload(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}

	contentType := "application/octet-stream"
	switch filepath.Ext(relPath) {
	case ".csv":
		contentType = "text/csv"
	case ".pdf":
		contentType = "application/pdf"
	}
	return file, contentType, nil
}

// CleanupOlderThan drops export files past their retention window.
func (s *ExportService) CleanupOlderThan(ttl time.Duration) (int, error) {
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		s.logger.Info("stale exports removed", zap.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

func rosterDataset(details []models.StudentDetail) export.Dataset {
	dataset := export.Dataset{Headers: []string{"ID", "Name", "Email", "Age", "Owner"}}
	for _, d := range details {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":    d.ID,
			"Name":  d.Name,
			"Email": d.Email,
			"Age":   strconv.Itoa(d.Age),
			"Owner": d.OwnerUsername,
		})
	}
	return dataset
}
