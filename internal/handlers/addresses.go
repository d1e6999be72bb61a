package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"homemeal/internal/middleware"
	"homemeal/internal/models"
)

type addressRequest struct {
	Title      string `json:"title" binding:"required"`
	Street     string `json:"street" binding:"required"`
	City       string `json:"city" binding:"required"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country" binding:"required"`
	Note       string `json:"note"`
	IsDefault  bool   `json:"isDefault"`
}

func GetUserAddresses(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /user/addresses"
		defer handlePanic(c, route)

		claims, _ := middleware.ClaimsFrom(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": claims.UserID}).Decode(&user); err != nil {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}
		c.JSON(http.StatusOK, user.Addresses)
	}
}

func CreateUserAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /user/addresses"
		defer handlePanic(c, route)

		claims, _ := middleware.ClaimsFrom(c)

		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		address := models.Address{
			ID:         uuid.NewString(),
			Title:      strings.TrimSpace(req.Title),
			Street:     strings.TrimSpace(req.Street),
			City:       strings.TrimSpace(req.City),
			PostalCode: strings.TrimSpace(req.PostalCode),
			Country:    strings.TrimSpace(req.Country),
			Note:       strings.TrimSpace(req.Note),
			IsDefault:  req.IsDefault,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		if req.IsDefault {
			_, _ = db.Collection("users").UpdateByID(ctx, claims.UserID, bson.M{
				"$set": bson.M{"addresses.$[].isDefault": false},
			})
		}

		res, err := db.Collection("users").UpdateByID(ctx, claims.UserID, bson.M{
			"$push": bson.M{"addresses": address},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}

		c.JSON(http.StatusCreated, address)
	}
}

func DeleteUserAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /user/addresses/:id"
		defer handlePanic(c, route)

		claims, _ := middleware.ClaimsFrom(c)
		addressID := c.Param("id")

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		res, err := db.Collection("users").UpdateByID(ctx, claims.UserID, bson.M{
			"$pull": bson.M{"addresses": bson.M{"id": addressID}},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.ModifiedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "address not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "address removed"})
	}
}
