package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"homemeal/internal/models"
	"homemeal/internal/orders"
)

const storeTimeout = 5 * time.Second

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("deliverymode", func(fl validator.FieldLevel) bool {
			switch models.DeliveryMode(fl.Field().String()) {
			case models.ModeStandard, models.ModeExpress, models.ModePlanned:
				return true
			}
			return false
		})
	}
}

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v", route, r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Client().Ping(checkCtx, readpref.Primary())
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	log.Printf("[%s] returning error %d: %s", route, status, message)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondEngineError maps the lifecycle engine's sentinel errors onto
// distinct HTTP statuses so every failure is distinguishable from success.
func respondEngineError(c *gin.Context, route string, err error) {
	switch {
	case errors.Is(err, orders.ErrValidation):
		respondWithError(c, http.StatusBadRequest, route, err.Error())
	case errors.Is(err, orders.ErrNotFound):
		respondWithError(c, http.StatusNotFound, route, "order not found")
	case errors.Is(err, orders.ErrForbidden):
		respondWithError(c, http.StatusForbidden, route, "forbidden")
	case errors.Is(err, orders.ErrInvalidTransition):
		respondWithError(c, http.StatusConflict, route, "invalid status transition")
	case errors.Is(err, orders.ErrAlreadyAssigned):
		respondWithError(c, http.StatusConflict, route, "order already assigned")
	case errors.Is(err, orders.ErrAlreadyDelivered):
		respondWithError(c, http.StatusConflict, route, "order already delivered")
	case errors.Is(err, orders.ErrCodeMismatch):
		respondWithError(c, http.StatusUnprocessableEntity, route, "delivery code does not match")
	case errors.Is(err, orders.ErrCodeAttemptsExceeded):
		respondWithError(c, http.StatusTooManyRequests, route, "too many delivery code attempts")
	default:
		log.Printf("[%s] unexpected error: %v", route, err)
		respondWithError(c, http.StatusInternalServerError, route, "internal error")
	}
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			case "deliverymode":
				details = append(details, fmt.Sprintf("%s is not a recognized delivery mode", field))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": details,
		})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body", "details": err.Error()})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
