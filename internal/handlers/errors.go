package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"school-service/internal/grading"
	"school-service/internal/repositories"
	"school-service/internal/services"
)

// respondError maps domain errors onto HTTP responses.
func respondError(c *gin.Context, err error) {
	var verr *grading.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, services.ErrInvalidMessage), errors.Is(err, services.ErrInvalidResult):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrMessageNotFound), errors.Is(err, repositories.ErrResultNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, services.ErrConflict), errors.Is(err, repositories.ErrStaleResult):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrDirectoryUnavailable):
		log.Printf("directory error: path=%s err=%v", c.FullPath(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load user info"})
	case errors.Is(err, services.ErrStorageUnavailable):
		log.Printf("storage error: path=%s err=%v", c.FullPath(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		log.Printf("unexpected error: path=%s err=%v", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
