package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-records-api/internal/service"
	"github.com/noah-isme/student-records-api/pkg/response"
)

// AdminHandler wires the admin-only user directory endpoints.
type AdminHandler struct {
	service *service.UserService
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(svc *service.UserService) *AdminHandler {
	return &AdminHandler{service: svc}
}

// ListUsers godoc
// @Summary List users
// @Description List every registered account
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users)
}

// ListUsersPage godoc
// @Summary List users paged
// @Description One page of registered accounts
// @Tags Admin
// @Produce json
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users/page [get]
func (h *AdminHandler) ListUsersPage(c *gin.Context) {
	page, err := h.service.ListPage(c.Request.Context(), intQuery(c, "page", 0), intQuery(c, "size", 10))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page)
}
