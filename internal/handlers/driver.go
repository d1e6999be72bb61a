package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"homemeal/internal/middleware"
	"homemeal/internal/models"
	"homemeal/internal/orders"
)

// All handlers here sit behind AuthGuard(driver); claims are always present
// and carry the driver's id.

func GetAvailableOrders(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /driver/orders/available"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		list, err := svc.AvailableForDrivers(ctx)
		if err != nil {
			respondEngineError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func GetMyDeliveries(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /driver/orders"
		defer handlePanic(c, route)

		claims, _ := middleware.ClaimsFrom(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		list, err := svc.ActiveForDriver(ctx, claims.UserID)
		if err != nil {
			respondEngineError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// AcceptOrder claims an order. A 409 with "order already assigned" means
// another driver won the race; the client should refresh its available list
// instead of retrying.
func AcceptOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /driver/orders/:id/accept"
		defer handlePanic(c, route)

		claims, _ := middleware.ClaimsFrom(c)
		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid order id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		order, err := svc.Accept(ctx, orderID, claims.UserID)
		if err != nil {
			respondEngineError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

type statusUpdateRequest struct {
	Status string `json:"status" binding:"required,oneof=picked_up in_transit failed"`
	Notes  string `json:"notes"`
}

func UpdateDeliveryStatus(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /driver/orders/:id/status"
		defer handlePanic(c, route)

		claims, _ := middleware.ClaimsFrom(c)
		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid order id")
			return
		}

		var req statusUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		order, err := svc.AdvanceStatus(ctx, orderID, claims.UserID, models.DeliveryStatus(req.Status), req.Notes)
		if err != nil {
			respondEngineError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// Lat/Lng are pointers so 0.0 (a legitimate coordinate) passes the
// required check.
type locationUpdateRequest struct {
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
	Address string   `json:"address"`
	OrderID string   `json:"orderId"`
}

func UpdateLocation(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /driver/location"
		defer handlePanic(c, route)

		claims, _ := middleware.ClaimsFrom(c)

		var req locationUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		var orderID *primitive.ObjectID
		if req.OrderID != "" {
			id, err := primitive.ObjectIDFromHex(req.OrderID)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid order id")
				return
			}
			orderID = &id
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		if err := svc.UpdateDriverLocation(ctx, claims.UserID, *req.Lat, *req.Lng, req.Address, orderID); err != nil {
			respondEngineError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "location updated"})
	}
}

type validateDeliveryRequest struct {
	Code string `json:"code" binding:"required"`
}

func ValidateDelivery(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /driver/orders/:id/validate"
		defer handlePanic(c, route)

		claims, _ := middleware.ClaimsFrom(c)
		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid order id")
			return
		}

		var req validateDeliveryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		order, err := svc.ValidateDelivery(ctx, orderID, claims.UserID, req.Code)
		if err != nil {
			respondEngineError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

type availabilityRequest struct {
	IsAvailable *bool `json:"isAvailable" binding:"required"`
}

func SetAvailability(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /driver/availability"
		defer handlePanic(c, route)

		claims, _ := middleware.ClaimsFrom(c)

		var req availabilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		if err := svc.SetDriverAvailability(ctx, claims.UserID, *req.IsAvailable); err != nil {
			respondEngineError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"isAvailable": *req.IsAvailable})
	}
}
