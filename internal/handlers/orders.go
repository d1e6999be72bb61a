package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"homemeal/internal/middleware"
	"homemeal/internal/models"
	"homemeal/internal/orders"
)

type checkoutItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type checkoutAddressRequest struct {
	Street     string `json:"street" binding:"required"`
	City       string `json:"city" binding:"required"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country" binding:"required"`
	Note       string `json:"note"`
}

type checkoutDeliveryRequest struct {
	Mode        string     `json:"mode" binding:"required,deliverymode"`
	Slot        string     `json:"slot"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

type checkoutRequest struct {
	Items         []checkoutItemRequest   `json:"items" binding:"required,min=1,dive"`
	Address       checkoutAddressRequest  `json:"address" binding:"required"`
	Delivery      checkoutDeliveryRequest `json:"delivery" binding:"required"`
	PaymentMethod string                  `json:"paymentMethod" binding:"required"`
}

// CreateOrder is the checkout entry point. Prices come from the menu
// collection, never from the client; totals and the delivery code are
// produced by the lifecycle engine. Price resolution and the order insert
// run in one transaction so an item deactivated mid-checkout cannot end up
// on a freshly created order.
func CreateOrder(db *mongo.Database, svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		var req checkoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		claims, ok := middleware.ClaimsFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		session, err := db.Client().StartSession()
		if err != nil {
			log.Println("[ORDER] [ERROR] failed to start session:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		result, err := session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			items, err := resolveMenuItems(sessCtx, db, req.Items)
			if err != nil {
				return nil, err
			}

			return svc.Create(sessCtx, orders.CreateInput{
				UserID: claims.UserID,
				Items:  items,
				Address: models.OrderAddress{
					Street:     req.Address.Street,
					City:       req.Address.City,
					PostalCode: req.Address.PostalCode,
					Country:    req.Address.Country,
					Note:       req.Address.Note,
				},
				Mode:          models.DeliveryMode(req.Delivery.Mode),
				Slot:          req.Delivery.Slot,
				ScheduledAt:   req.Delivery.ScheduledAt,
				PaymentMethod: req.PaymentMethod,
			})
		})
		if err != nil {
			var invalid errInvalidProduct
			if errors.As(err, &invalid) {
				respondWithError(c, http.StatusBadRequest, route, invalid.Error())
				return
			}
			respondEngineError(c, route, err)
			return
		}

		order := result.(*models.Order)
		c.JSON(http.StatusCreated, gin.H{
			"orderId":     order.ID.Hex(),
			"orderNumber": order.OrderNumber,
			"totals":      order.Totals,
			"status":      order.Status,
		})
	}
}

// GetMyOrders lists the authenticated customer's orders.
func GetMyOrders(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		claims, ok := middleware.ClaimsFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		list, err := svc.ListForUser(ctx, claims.UserID)
		if err != nil {
			respondEngineError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// TrackOrder returns one order. The delivery code is only revealed to the
// order's owner, never to the assigned driver.
func TrackOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		claims, ok := middleware.ClaimsFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid order id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		order, err := svc.Get(ctx, orderID)
		if err != nil {
			respondEngineError(c, route, err)
			return
		}

		isOwner := order.UserID == claims.UserID
		isAssignedDriver := order.Delivery.AssignedDriverID != nil && *order.Delivery.AssignedDriverID == claims.UserID
		if !isOwner && !isAssignedDriver {
			respondWithError(c, http.StatusForbidden, route, "forbidden")
			return
		}

		resp := gin.H{"order": order}
		if isOwner {
			resp["deliveryCode"] = order.Delivery.DeliveryCode
		}
		c.JSON(http.StatusOK, resp)
	}
}

type paymentWebhookRequest struct {
	OrderID    string `json:"orderId" binding:"required"`
	Outcome    string `json:"outcome" binding:"required,oneof=succeeded failed refunded"`
	PaymentRef string `json:"paymentRef" binding:"required"`
}

// PaymentWebhook receives asynchronous outcomes from the payment provider.
// The provider retries on timeouts, so the underlying transition is
// idempotent; replays respond 200 without re-notifying anyone.
func PaymentWebhook(svc *orders.Service, webhookSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/webhook"
		defer handlePanic(c, route)

		secret := c.GetHeader("X-Webhook-Secret")
		if webhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(webhookSecret)) != 1 {
			respondWithError(c, http.StatusUnauthorized, route, "invalid webhook secret")
			return
		}

		var req paymentWebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		orderID, err := primitive.ObjectIDFromHex(req.OrderID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid order id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		order, err := svc.OnPaymentOutcome(ctx, orderID, models.PaymentStatus(req.Outcome), req.PaymentRef)
		if err != nil {
			respondEngineError(c, route, err)
			return
		}

		log.Println("[PAYMENT] [INFO] outcome applied:", order.OrderNumber, req.Outcome)
		c.JSON(http.StatusOK, gin.H{
			"orderId": order.ID.Hex(),
			"status":  order.Status,
		})
	}
}

func resolveMenuItems(ctx context.Context, db *mongo.Database, reqs []checkoutItemRequest) ([]models.OrderItem, error) {
	ids, quantities, err := mergeCheckoutItems(reqs)
	if err != nil {
		return nil, err
	}

	cursor, err := db.Collection("menu_items").Find(ctx, bson.M{
		"_id":         bson.M{"$in": ids},
		"isAvailable": true,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var menuItems []models.MenuItem
	if err := cursor.All(ctx, &menuItems); err != nil {
		return nil, err
	}

	found := make(map[primitive.ObjectID]models.MenuItem, len(menuItems))
	for _, m := range menuItems {
		found[m.ID] = m
	}
	return buildOrderItems(ids, quantities, found)
}

// mergeCheckoutItems collapses duplicate product lines while keeping the
// client's item order: ids holds each product once, in first-seen position.
func mergeCheckoutItems(reqs []checkoutItemRequest) ([]primitive.ObjectID, map[primitive.ObjectID]int, error) {
	ids := make([]primitive.ObjectID, 0, len(reqs))
	quantities := make(map[primitive.ObjectID]int, len(reqs))
	for _, r := range reqs {
		id, err := primitive.ObjectIDFromHex(r.ProductID)
		if err != nil {
			return nil, nil, errInvalidProduct{r.ProductID}
		}
		if _, seen := quantities[id]; !seen {
			ids = append(ids, id)
		}
		quantities[id] += r.Quantity
	}
	return ids, quantities, nil
}

func buildOrderItems(ids []primitive.ObjectID, quantities map[primitive.ObjectID]int, found map[primitive.ObjectID]models.MenuItem) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(ids))
	for _, id := range ids {
		m, ok := found[id]
		if !ok {
			return nil, errInvalidProduct{id.Hex()}
		}
		items = append(items, models.OrderItem{
			ProductID: id,
			Name:      m.Name,
			UnitPrice: m.Price,
			Quantity:  quantities[id],
		})
	}
	return items, nil
}

type errInvalidProduct struct {
	ProductID string
}

func (e errInvalidProduct) Error() string {
	return "menu item not available: " + e.ProductID
}
