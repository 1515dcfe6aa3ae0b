package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/service"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/response"
)

// StudentHandler wires the student record endpoints. Every route behind it
// requires an authenticated caller; ownership scoping happens in the service.
type StudentHandler struct {
	service *service.StudentService
}

// NewStudentHandler creates a new handler.
func NewStudentHandler(svc *service.StudentService) *StudentHandler {
	return &StudentHandler{service: svc}
}

// List godoc
// @Summary List students
// @Description List the student records visible to the caller
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	views, err := h.service.List(c.Request.Context(), identityFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views)
}

// Search godoc
// @Summary Search students
// @Description Filtered, paged search over visible student records
// @Tags Students
// @Produce json
// @Param name query string false "Name substring"
// @Param minAge query int false "Minimum age"
// @Param maxAge query int false "Maximum age"
// @Param owner query string false "Owner username (admin only)"
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /students/search [get]
func (h *StudentHandler) Search(c *gin.Context) {
	filter := models.StudentFilter{
		Name:          c.Query("name"),
		OwnerUsername: c.Query("owner"),
		Page:          intQuery(c, "page", 0),
		PageSize:      intQuery(c, "size", 10),
	}
	if minAge, ok := optionalIntQuery(c, "minAge"); ok {
		filter.MinAge = &minAge
	}
	if maxAge, ok := optionalIntQuery(c, "maxAge"); ok {
		filter.MaxAge = &maxAge
	}

	page, err := h.service.Search(c.Request.Context(), identityFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page)
}

// Get godoc
// @Summary Get student
// @Description Fetch one student record by id
// @Tags Students
// @Produce json
// @Param id path string true "Student id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), identityFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Create godoc
// @Summary Create student
// @Description Create a student record owned by the caller
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body models.StudentRequest true "Student"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req models.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}

	view, err := h.service.Create(c.Request.Context(), identityFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Update godoc
// @Summary Update student
// @Description Update a student record the caller may see
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student id"
// @Param payload body models.StudentRequest true "Student"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req models.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}

	view, err := h.service.Update(c.Request.Context(), identityFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Delete godoc
// @Summary Delete student
// @Description Delete a student record the caller may see
// @Tags Students
// @Produce json
// @Param id path string true "Student id"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), identityFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	value, ok := optionalIntQuery(c, key)
	if !ok {
		return fallback
	}
	return value
}

func optionalIntQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}
