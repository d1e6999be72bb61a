package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"homemeal/internal/models"
)

// Store is the order persistence surface the engine runs on. Every mutation
// is a single conditional document write: the filter carries the expected
// current state, so a write that raced simply matches nothing and returns
// ErrNotFound for the caller to disambiguate.
type Store interface {
	Insert(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	ListAvailable(ctx context.Context) ([]models.Order, error)
	ListActiveByDriver(ctx context.Context, driverID primitive.ObjectID) ([]models.Order, error)

	MarkPaid(ctx context.Context, id primitive.ObjectID, ref string, now time.Time) (*models.Order, error)
	MarkPaymentFailed(ctx context.Context, id primitive.ObjectID, ref string, now time.Time) (*models.Order, error)
	MarkRefunded(ctx context.Context, id primitive.ObjectID, ref string, now time.Time, entry models.TrackingEntry) (*models.Order, error)

	Assign(ctx context.Context, id, driverID primitive.ObjectID, now time.Time, entry models.TrackingEntry) (*models.Order, error)
	UpdateDeliveryStatus(ctx context.Context, id, driverID primitive.ObjectID, from, to models.DeliveryStatus, now time.Time, entry models.TrackingEntry) (*models.Order, error)
	CompleteDelivery(ctx context.Context, id, driverID primitive.ObjectID, now time.Time, entry models.TrackingEntry) (*models.Order, error)
	SetCurrentLocation(ctx context.Context, id, driverID primitive.ObjectID, loc models.GeoPoint, withHistory bool) error
	IncCodeAttempts(ctx context.Context, id primitive.ObjectID) error

	NextSequence(ctx context.Context, key string) (int64, error)
}

// Users covers the driver-profile fields the engine reads and writes.
// AvailableDriverIDs is the read side of the availability flag: dispatch
// notifications go only to drivers who currently have it set.
type Users interface {
	SetLocation(ctx context.Context, id primitive.ObjectID, loc models.GeoPoint) error
	SetAvailability(ctx context.Context, id primitive.ObjectID, available bool) error
	IncDeliveries(ctx context.Context, id primitive.ObjectID) error
	AvailableDriverIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

type MongoStore struct {
	orders   *mongo.Collection
	counters *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		orders:   db.Collection("orders"),
		counters: db.Collection("counters"),
	}
}

func (s *MongoStore) Insert(ctx context.Context, o *models.Order) error {
	res, err := s.orders.InsertOne(ctx, o)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		o.ID = id
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var o models.Order
	err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (s *MongoStore) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.list(ctx, bson.M{"userId": userID})
}

// ListAvailable is the dispatch projection: paid, confirmed, unassigned and
// still pending dispatch, newest first. Read-only by construction.
func (s *MongoStore) ListAvailable(ctx context.Context) ([]models.Order, error) {
	return s.list(ctx, bson.M{
		"status":                    models.OrderConfirmed,
		"payment.status":            models.PaymentSucceeded,
		"delivery.status":           models.DeliveryPending,
		"delivery.assignedDriverId": nil,
	})
}

func (s *MongoStore) ListActiveByDriver(ctx context.Context, driverID primitive.ObjectID) ([]models.Order, error) {
	return s.list(ctx, bson.M{
		"delivery.assignedDriverId": driverID,
		"delivery.status": bson.M{"$in": []models.DeliveryStatus{
			models.DeliveryAssigned,
			models.DeliveryPickedUp,
			models.DeliveryInTransit,
		}},
	})
}

func (s *MongoStore) list(ctx context.Context, filter bson.M) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Order
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return out, nil
}

func (s *MongoStore) MarkPaid(ctx context.Context, id primitive.ObjectID, ref string, now time.Time) (*models.Order, error) {
	status := OrderStatusFor(models.PaymentSucceeded, models.DeliveryPending)
	return s.findOneAndUpdate(ctx,
		bson.M{"_id": id, "payment.status": models.PaymentPending},
		bson.M{"$set": bson.M{
			"payment.status": models.PaymentSucceeded,
			"payment.paidAt": now,
			"payment.ref":    ref,
			"status":         status,
			"orderProgress":  ProgressFor(status),
			"updatedAt":      now,
		}},
	)
}

func (s *MongoStore) MarkPaymentFailed(ctx context.Context, id primitive.ObjectID, ref string, now time.Time) (*models.Order, error) {
	return s.findOneAndUpdate(ctx,
		bson.M{"_id": id, "payment.status": models.PaymentPending},
		bson.M{"$set": bson.M{
			"payment.status":  models.PaymentFailed,
			"payment.ref":     ref,
			"status":          models.OrderCancelled,
			"delivery.status": models.DeliveryFailed,
			"orderProgress":   ProgressFor(models.OrderCancelled),
			"updatedAt":       now,
		}},
	)
}

// MarkRefunded is the forced cancellation path: it wins over any delivery
// progress, including in_transit.
func (s *MongoStore) MarkRefunded(ctx context.Context, id primitive.ObjectID, ref string, now time.Time, entry models.TrackingEntry) (*models.Order, error) {
	return s.findOneAndUpdate(ctx,
		bson.M{"_id": id, "payment.status": bson.M{"$in": []models.PaymentStatus{
			models.PaymentPending, models.PaymentSucceeded,
		}}},
		bson.M{
			"$set": bson.M{
				"payment.status":  models.PaymentRefunded,
				"payment.ref":     ref,
				"status":          models.OrderCancelled,
				"delivery.status": models.DeliveryFailed,
				"orderProgress":   ProgressFor(models.OrderCancelled),
				"updatedAt":       now,
			},
			"$push": bson.M{"delivery.trackingHistory": entry},
		},
	)
}

// Assign is the one cross-request race that matters: the filter requires
// assignedDriverId to still be unset, so of two concurrent accepts exactly
// one matches and the other sees ErrNotFound.
func (s *MongoStore) Assign(ctx context.Context, id, driverID primitive.ObjectID, now time.Time, entry models.TrackingEntry) (*models.Order, error) {
	status := OrderStatusFor(models.PaymentSucceeded, models.DeliveryAssigned)
	return s.findOneAndUpdate(ctx,
		bson.M{
			"_id":                       id,
			"payment.status":            models.PaymentSucceeded,
			"delivery.status":           models.DeliveryPending,
			"delivery.assignedDriverId": nil,
		},
		bson.M{
			"$set": bson.M{
				"delivery.assignedDriverId": driverID,
				"delivery.status":           models.DeliveryAssigned,
				"status":                    status,
				"orderProgress":             ProgressFor(status),
				"updatedAt":                 now,
			},
			"$push": bson.M{"delivery.trackingHistory": entry},
		},
	)
}

func (s *MongoStore) UpdateDeliveryStatus(ctx context.Context, id, driverID primitive.ObjectID, from, to models.DeliveryStatus, now time.Time, entry models.TrackingEntry) (*models.Order, error) {
	status := OrderStatusFor(models.PaymentSucceeded, to)
	set := bson.M{
		"delivery.status": to,
		"status":          status,
		"orderProgress":   ProgressFor(status),
		"updatedAt":       now,
	}
	switch to {
	case models.DeliveryPickedUp:
		set["delivery.pickupTime"] = now
	case models.DeliveryInTransit:
		set["delivery.inTransitAt"] = now
	}
	return s.findOneAndUpdate(ctx,
		bson.M{
			"_id":                       id,
			"delivery.assignedDriverId": driverID,
			"delivery.status":           from,
		},
		bson.M{
			"$set":  set,
			"$push": bson.M{"delivery.trackingHistory": entry},
		},
	)
}

func (s *MongoStore) CompleteDelivery(ctx context.Context, id, driverID primitive.ObjectID, now time.Time, entry models.TrackingEntry) (*models.Order, error) {
	return s.findOneAndUpdate(ctx,
		bson.M{
			"_id":                       id,
			"delivery.assignedDriverId": driverID,
			"delivery.status": bson.M{"$nin": []models.DeliveryStatus{
				models.DeliveryDelivered, models.DeliveryFailed,
			}},
		},
		bson.M{
			"$set": bson.M{
				"delivery.status":             models.DeliveryDelivered,
				"delivery.actualDeliveryTime": now,
				"status":                      models.OrderDelivered,
				"orderProgress":               ProgressFor(models.OrderDelivered),
				"updatedAt":                   now,
			},
			"$push": bson.M{"delivery.trackingHistory": entry},
		},
	)
}

func (s *MongoStore) SetCurrentLocation(ctx context.Context, id, driverID primitive.ObjectID, loc models.GeoPoint, withHistory bool) error {
	update := bson.M{"$set": bson.M{
		"delivery.currentLocation": loc,
		"updatedAt":                loc.UpdatedAt,
	}}
	if withHistory {
		update["$push"] = bson.M{"delivery.trackingHistory": models.TrackingEntry{
			Status:    "location_update",
			Location:  &loc,
			Timestamp: loc.UpdatedAt,
		}}
	}
	_, err := s.orders.UpdateOne(ctx, bson.M{
		"_id":                       id,
		"delivery.assignedDriverId": driverID,
		"delivery.status": bson.M{"$in": []models.DeliveryStatus{
			models.DeliveryAssigned, models.DeliveryPickedUp, models.DeliveryInTransit,
		}},
	}, update)
	if err != nil {
		return fmt.Errorf("update order location: %w", err)
	}
	return nil
}

func (s *MongoStore) IncCodeAttempts(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.orders.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"delivery.codeAttempts": 1}},
	)
	if err != nil {
		return fmt.Errorf("count code attempt: %w", err)
	}
	return nil
}

func (s *MongoStore) NextSequence(ctx context.Context, key string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", key, err)
	}
	return doc.Seq, nil
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var o models.Order
	err := s.orders.FindOneAndUpdate(ctx, filter, update, opts).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return &o, nil
}

type MongoUsers struct {
	users *mongo.Collection
}

func NewMongoUsers(db *mongo.Database) *MongoUsers {
	return &MongoUsers{users: db.Collection("users")}
}

func (u *MongoUsers) SetLocation(ctx context.Context, id primitive.ObjectID, loc models.GeoPoint) error {
	return u.set(ctx, id, bson.M{"location": loc, "updatedAt": loc.UpdatedAt})
}

func (u *MongoUsers) SetAvailability(ctx context.Context, id primitive.ObjectID, available bool) error {
	return u.set(ctx, id, bson.M{"isAvailable": available, "updatedAt": time.Now()})
}

func (u *MongoUsers) AvailableDriverIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := u.users.Find(ctx, bson.M{
		"role":        models.RoleDriver,
		"isAvailable": true,
		"isActive":    true,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("list available drivers: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode available drivers: %w", err)
	}

	ids := make([]primitive.ObjectID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (u *MongoUsers) IncDeliveries(ctx context.Context, id primitive.ObjectID) error {
	res, err := u.users.UpdateOne(ctx,
		bson.M{"_id": id, "role": models.RoleDriver},
		bson.M{"$inc": bson.M{"totalDeliveries": 1}},
	)
	if err != nil {
		return fmt.Errorf("increment deliveries: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (u *MongoUsers) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	res, err := u.users.UpdateOne(ctx,
		bson.M{"_id": id, "role": models.RoleDriver},
		bson.M{"$set": fields},
	)
	if err != nil {
		return fmt.Errorf("update driver profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
