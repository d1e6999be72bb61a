package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"homemeal/internal/middleware"
	"homemeal/internal/models"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`

	// Driver profile, ignored unless role is "driver".
	VehicleType  string `json:"vehicleType"`
	DeliveryZone string `json:"deliveryZone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func Register(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		role := req.Role
		if role == "" {
			role = models.RoleCustomer
		}
		if role != models.RoleCustomer && role != models.RoleDriver {
			respondWithError(c, http.StatusBadRequest, route, "role must be customer or driver")
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		count, err := db.Collection("users").CountDocuments(ctx, bson.M{"email": email})
		if err != nil {
			log.Println("[AUTH] [ERROR] register db error:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count > 0 {
			respondWithError(c, http.StatusConflict, route, "email already registered")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Println("[AUTH] [ERROR] register password hash failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "password hash failed")
			return
		}

		now := time.Now()
		user := models.User{
			Email:        email,
			PasswordHash: string(hash),
			Name:         strings.TrimSpace(req.Name),
			Phone:        strings.TrimSpace(req.Phone),
			Role:         role,
			IsActive:     true,
			Addresses:    []models.Address{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if role == models.RoleDriver {
			user.VehicleType = strings.TrimSpace(req.VehicleType)
			user.DeliveryZone = strings.TrimSpace(req.DeliveryZone)
		}

		res, err := db.Collection("users").InsertOne(ctx, user)
		if err != nil {
			log.Println("[AUTH] [ERROR] register insert failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		id, _ := res.InsertedID.(primitive.ObjectID)
		log.Println("[AUTH] [INFO] user registered:", email, "role:", role)
		c.JSON(http.StatusCreated, gin.H{
			"message": "user registered",
			"user":    gin.H{"id": id.Hex(), "name": user.Name, "email": email, "role": role},
		})
	}
}

func Login(db *mongo.Database, jwtSecret string, accessTTL, refreshTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
			if !errors.Is(err, mongo.ErrNoDocuments) {
				log.Println("[AUTH] [ERROR] login lookup failed:", err)
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return
		}

		if !user.IsActive {
			respondWithError(c, http.StatusForbidden, route, "user is inactive")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return
		}

		tokens, err := issueTokens(ctx, db, user, jwtSecret, accessTTL, refreshTTL)
		if err != nil {
			log.Println("[AUTH] [ERROR] login token generation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		log.Println("[AUTH] [INFO] login succeeded:", user.Email)
		c.JSON(http.StatusOK, gin.H{
			"accessToken":  tokens.AccessToken,
			"refreshToken": tokens.RefreshToken,
			"expiresIn":    tokens.ExpiresIn,
			"user": gin.H{
				"id":    user.ID.Hex(),
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
		})
	}
}

func Refresh(db *mongo.Database, jwtSecret string, accessTTL, refreshTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/refresh"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		hash := hashToken(strings.TrimSpace(req.RefreshToken))
		var token models.RefreshToken
		if err := db.Collection("refresh_tokens").FindOne(ctx, bson.M{
			"tokenHash": hash,
			"revoked":   false,
		}).Decode(&token); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}

		if time.Now().After(token.ExpiresAt) {
			_, _ = db.Collection("refresh_tokens").UpdateByID(ctx, token.ID, bson.M{"$set": bson.M{"revoked": true}})
			respondWithError(c, http.StatusUnauthorized, route, "refresh token expired")
			return
		}

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": token.UserID}).Decode(&user); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "user not found")
			return
		}
		if !user.IsActive {
			respondWithError(c, http.StatusForbidden, route, "user is inactive")
			return
		}

		newTokens, err := issueTokens(ctx, db, user, jwtSecret, accessTTL, refreshTTL)
		if err != nil {
			log.Println("[AUTH] [ERROR] refresh token generation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		// Rotation: the used token is revoked and points at its successor.
		_, _ = db.Collection("refresh_tokens").UpdateByID(ctx, token.ID, bson.M{
			"$set": bson.M{
				"revoked":         true,
				"replacedByToken": newTokens.RefreshTokenID,
			},
		})

		c.JSON(http.StatusOK, gin.H{
			"accessToken":  newTokens.AccessToken,
			"refreshToken": newTokens.RefreshToken,
			"expiresIn":    newTokens.ExpiresIn,
		})
	}
}

func Logout(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/logout"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		hash := hashToken(strings.TrimSpace(req.RefreshToken))
		res, err := db.Collection("refresh_tokens").UpdateOne(ctx, bson.M{
			"tokenHash": hash,
			"revoked":   false,
		}, bson.M{"$set": bson.M{"revoked": true}})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func GetMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/me"
		defer handlePanic(c, route)

		claims, ok := middleware.ClaimsFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": claims.UserID}).Decode(&user); err != nil {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}

		c.JSON(http.StatusOK, user)
	}
}

type issuedTokens struct {
	AccessToken    string
	RefreshToken   string
	RefreshTokenID primitive.ObjectID
	ExpiresIn      int64
}

func issueTokens(ctx context.Context, db *mongo.Database, user models.User, secret string, accessTTL, refreshTTL time.Duration) (*issuedTokens, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID.Hex(),
		"role":  user.Role,
		"email": user.Email,
		"exp":   now.Add(accessTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, err
	}

	plainRefresh, err := generateRefreshString()
	if err != nil {
		return nil, err
	}

	refresh := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(plainRefresh),
		ExpiresAt: now.Add(refreshTTL),
		Revoked:   false,
		CreatedAt: now,
	}

	res, err := db.Collection("refresh_tokens").InsertOne(ctx, refresh)
	if err != nil {
		return nil, err
	}

	refreshID, _ := res.InsertedID.(primitive.ObjectID)
	return &issuedTokens{
		AccessToken:    accessToken,
		RefreshToken:   plainRefresh,
		RefreshTokenID: refreshID,
		ExpiresIn:      int64(accessTTL.Seconds()),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
