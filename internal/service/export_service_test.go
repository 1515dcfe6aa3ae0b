package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/pkg/storage"
)

type staticRoster struct {
	details []models.StudentDetail
}

func (s *staticRoster) ListAll(_ context.Context) ([]models.StudentDetail, error) {
	return s.details, nil
}

func newExportService(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("0123456789abcdef0123456789abcdef", time.Hour)
	roster := &staticRoster{details: []models.StudentDetail{
		{
			Student:       models.Student{ID: "s1", Name: "Jane", Email: "jane@example.com", Age: 20},
			OwnerUsername: "alice",
		},
		{
			Student:       models.Student{ID: "s2", Name: "Joe", Email: "joe@example.com", Age: 22},
			OwnerUsername: "bob",
		},
	}}
	return NewExportService(roster, store, signer, nil)
}

func TestExportCSVRoundTrip(t *testing.T) {
	svc := newExportService(t)

	artifact, err := svc.Export(context.Background(), ExportFormatCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(artifact.FileName, ".csv"))
	assert.NotEmpty(t, artifact.Token)
	assert.True(t, artifact.ExpiresAt.After(time.Now()))

	file, contentType, err := svc.OpenDownload(artifact.Token)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, "text/csv", contentType)
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ID,Name,Email,Age,Owner")
	assert.Contains(t, string(body), "jane@example.com")
	assert.Contains(t, string(body), "bob")
}

func TestExportPDFProducesDocument(t *testing.T) {
	svc := newExportService(t)

	artifact, err := svc.Export(context.Background(), ExportFormatPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(artifact.FileName, ".pdf"))

	file, contentType, err := svc.OpenDownload(artifact.Token)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, "application/pdf", contentType)
	header := make([]byte, 5)
	_, err = io.ReadFull(file, header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(header))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := newExportService(t)

	_, err := svc.Export(context.Background(), "xlsx")
	assert.ErrorIs(t, err, errUnknownFormat)
}

func TestDownloadRejectsTamperedToken(t *testing.T) {
	svc := newExportService(t)

	artifact, err := svc.Export(context.Background(), ExportFormatCSV)
	require.NoError(t, err)

	_, _, err = svc.OpenDownload(artifact.Token + "x")
	assert.Error(t, err)

	_, _, err = svc.OpenDownload("not-a-token")
	assert.Error(t, err)
}

func TestCleanupRemovesStaleExports(t *testing.T) {
	svc := newExportService(t)

	_, err := svc.Export(context.Background(), ExportFormatCSV)
	require.NoError(t, err)

	// A cutoff in the future treats every file as stale.
	removed, err := svc.CleanupOlderThan(-time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}
