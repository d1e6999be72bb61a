package orders

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"homemeal/internal/models"
)

// Dispatch projections. Both are read-only and safe to poll: they never
// mutate anything, and every call re-queries current store state.

// AvailableForDrivers lists orders a driver may claim: payment succeeded,
// dispatch still pending and nobody assigned, newest first. Unpaid orders
// are never exposed to drivers.
func (s *Service) AvailableForDrivers(ctx context.Context) ([]models.Order, error) {
	return s.store.ListAvailable(ctx)
}

// ActiveForDriver lists the orders currently in this driver's hands:
// assigned, picked_up or in_transit. Terminal orders drop out immediately.
func (s *Service) ActiveForDriver(ctx context.Context, driverID primitive.ObjectID) ([]models.Order, error) {
	return s.store.ListActiveByDriver(ctx, driverID)
}

// Get returns a single order without any mutation.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return s.store.Get(ctx, id)
}

// ListForUser returns a customer's own orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.store.ListByUser(ctx, userID)
}
