package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-records-api/internal/middleware"
	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/service"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/response"
)

// refreshCookieName is the cookie carrying the opaque refresh credential.
const refreshCookieName = "refreshToken"

// AuthHandler wires the session lifecycle endpoints to the auth service.
// Success bodies on this surface are part of the public contract and are sent
// bare, not in the response envelope.
type AuthHandler struct {
	service *service.AuthService
	metrics *service.MetricsService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService, metrics *service.MetricsService) *AuthHandler {
	return &AuthHandler{service: svc, metrics: metrics}
}

// Authenticate godoc
// @Summary Authenticate user
// @Description Verify credentials, return an access token, and set the refresh cookie
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.AuthRequest true "Credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /authenticate [post]
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req models.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	session, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordSessionOpened("login")
	setRefreshCookie(c, session.RefreshToken)
	c.JSON(http.StatusOK, models.AuthResponse{JWT: session.AccessToken})
}

// Refresh godoc
// @Summary Refresh access token
// @Description Exchange the refresh cookie for a new access token and a rotated cookie
// @Tags Authentication
// @Produce json
// @Success 200 {object} models.AuthResponse
// @Failure 403 {object} response.Envelope
// @Router /refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	value, err := c.Cookie(refreshCookieName)
	if err != nil {
		response.Error(c, appErrors.ErrRefreshRejected)
		return
	}

	session, err := h.service.Refresh(c.Request.Context(), value)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordSessionOpened("refresh")
	setRefreshCookie(c, session.RefreshToken)
	c.JSON(http.StatusOK, models.AuthResponse{JWT: session.AccessToken})
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the presented access token and discard the refresh cookie
// @Tags Authentication
// @Produce json
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} response.Envelope
// @Router /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	access, ok := middleware.BearerToken(c)
	if !ok {
		response.Error(c, appErrors.ErrMissingCredential)
		return
	}

	// The cookie is optional on logout; its absence just means there is no
	// refresh credential to discard.
	refreshValue, cookieErr := c.Cookie(refreshCookieName)

	if err := h.service.Logout(c.Request.Context(), access, refreshValue); err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordTokenRevoked()
	if cookieErr == nil {
		clearRefreshCookie(c)
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Logged out"})
}

// Signup godoc
// @Summary Register account
// @Description Create a new user account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SignupRequest true "Account details"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} response.Envelope
// @Router /signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid signup payload"))
		return
	}

	if _, err := h.service.Signup(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "User registered successfully"})
}

// setRefreshCookie binds the refresh credential lifetime to the cookie's.
// The floor of one second keeps a just-expiring credential from producing a
// delete-cookie response.
func setRefreshCookie(c *gin.Context, token *models.RefreshToken) {
	maxAge := int(time.Until(token.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetCookie(refreshCookieName, token.Token, maxAge, "/", "", false, true)
}

func clearRefreshCookie(c *gin.Context) {
	c.SetCookie(refreshCookieName, "", -1, "/", "", false, true)
}
