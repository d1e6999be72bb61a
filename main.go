package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homemeal/internal/config"
	"homemeal/internal/database"
	"homemeal/internal/handlers"
	"homemeal/internal/middleware"
	"homemeal/internal/notify"
	"homemeal/internal/orders"
)

func main() {
	cfg := config.Load()

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(cfg.DBName)
	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("order index warning: %v", err)
	}
	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("user index warning: %v", err)
	}
	if err := database.EnsureTokenIndexes(db); err != nil {
		log.Printf("token index warning: %v", err)
	}

	hub := notify.NewHub()
	svc := orders.NewService(orders.NewMongoStore(db), orders.NewMongoUsers(db), hub)

	r := gin.Default()
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/auth/register", handlers.Register(db))
	r.POST("/auth/login", handlers.Login(db, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL))
	r.POST("/auth/refresh", handlers.Refresh(db, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL))
	r.POST("/auth/logout", handlers.Logout(db))
	r.GET("/auth/me", middleware.AuthGuard(cfg.JWTSecret), handlers.GetMe(db))

	r.GET("/menu", handlers.GetMenu(db))

	r.POST("/payments/webhook", handlers.PaymentWebhook(svc, cfg.PaymentWebhookSecret))

	r.GET("/events", middleware.AuthGuard(cfg.JWTSecret), handlers.Events(hub))

	customer := r.Group("/")
	customer.Use(middleware.AuthGuard(cfg.JWTSecret, "customer", "admin"))
	{
		customer.POST("/orders", handlers.CreateOrder(db, svc))
		customer.GET("/orders", handlers.GetMyOrders(svc))
		customer.GET("/user/addresses", handlers.GetUserAddresses(db))
		customer.POST("/user/addresses", handlers.CreateUserAddress(db))
		customer.DELETE("/user/addresses/:id", handlers.DeleteUserAddress(db))
	}

	// Tracking is shared: owners and the assigned driver may read an order.
	r.GET("/orders/:id", middleware.AuthGuard(cfg.JWTSecret), handlers.TrackOrder(svc))

	driver := r.Group("/driver")
	driver.Use(middleware.AuthGuard(cfg.JWTSecret, "driver"))
	{
		driver.GET("/orders/available", handlers.GetAvailableOrders(svc))
		driver.GET("/orders", handlers.GetMyDeliveries(svc))
		driver.POST("/orders/:id/accept", handlers.AcceptOrder(svc))
		driver.PATCH("/orders/:id/status", handlers.UpdateDeliveryStatus(svc))
		driver.POST("/orders/:id/validate", handlers.ValidateDelivery(svc))
		driver.POST("/location", handlers.UpdateLocation(svc))
		driver.PATCH("/availability", handlers.SetAvailability(svc))
	}

	admin := r.Group("/admin/api")
	admin.Use(middleware.AuthGuard(cfg.JWTSecret, "admin"))
	{
		admin.POST("/menu", handlers.CreateMenuItem(db))
		admin.PUT("/menu/:id", handlers.UpdateMenuItem(db))
		admin.DELETE("/menu/:id", handlers.DeleteMenuItem(db))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Println("listening on", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("server shutdown:", err)
	}
	if err := database.Disconnect(client); err != nil {
		log.Println("mongo disconnect:", err)
	}
	log.Println("stopped")
}
