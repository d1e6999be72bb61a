package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"homemeal/internal/models"
)

// GetMenu lists the dishes customers can order right now.
func GetMenu(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /menu"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		cursor, err := db.Collection("menu_items").Find(ctx, bson.M{"isAvailable": true})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "menu could not be fetched")
			return
		}
		defer cursor.Close(ctx)

		var items []models.MenuItem
		if err := cursor.All(ctx, &items); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "failed to parse menu")
			return
		}

		c.JSON(http.StatusOK, items)
	}
}

type menuItemRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Category    string  `json:"category"`
	ImagePath   string  `json:"imagePath"`
}

func CreateMenuItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/menu"
		defer handlePanic(c, route)

		var req menuItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		now := time.Now()
		item := models.MenuItem{
			Name:        strings.TrimSpace(req.Name),
			Description: strings.TrimSpace(req.Description),
			Price:       req.Price,
			Category:    strings.TrimSpace(req.Category),
			ImagePath:   req.ImagePath,
			IsAvailable: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		res, err := db.Collection("menu_items").InsertOne(ctx, item)
		if err != nil {
			log.Println("[MENU] [ERROR] insert failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		id, _ := res.InsertedID.(primitive.ObjectID)
		item.ID = id
		c.JSON(http.StatusCreated, item)
	}
}

type menuItemUpdateRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Category    *string  `json:"category"`
	ImagePath   *string  `json:"imagePath"`
	IsAvailable *bool    `json:"isAvailable"`
}

func UpdateMenuItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/menu/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid menu item id")
			return
		}

		var req menuItemUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := bson.M{"updatedAt": time.Now()}
		if req.Name != nil {
			set["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			set["description"] = strings.TrimSpace(*req.Description)
		}
		if req.Price != nil {
			if *req.Price <= 0 {
				respondWithError(c, http.StatusBadRequest, route, "price must be greater than 0")
				return
			}
			set["price"] = *req.Price
		}
		if req.Category != nil {
			set["category"] = strings.TrimSpace(*req.Category)
		}
		if req.ImagePath != nil {
			set["imagePath"] = *req.ImagePath
		}
		if req.IsAvailable != nil {
			set["isAvailable"] = *req.IsAvailable
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		res, err := db.Collection("menu_items").UpdateByID(ctx, id, bson.M{"$set": set})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "menu item not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "menu item updated"})
	}
}

// DeleteMenuItem takes the dish off the menu. Orders that already snapshot
// it are unaffected, so this is a flag flip rather than a removal.
func DeleteMenuItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/menu/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid menu item id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		res, err := db.Collection("menu_items").UpdateByID(ctx, id, bson.M{
			"$set": bson.M{"isAvailable": false, "updatedAt": time.Now()},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "menu item not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "menu item removed"})
	}
}
