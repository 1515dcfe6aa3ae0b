package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-records-api/internal/middleware"
	"github.com/noah-isme/student-records-api/internal/models"
)

func identityFromContext(c *gin.Context) *models.Identity {
	return middleware.IdentityFrom(c)
}
