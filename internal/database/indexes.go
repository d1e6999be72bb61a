package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("orders").Indexes()

	orderNumberIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "orderNumber", Value: 1}},
		Options: options.Index().
			SetName("orderNumber_unique").
			SetUnique(true),
	}

	// Backs the driver dispatch projections.
	dispatchIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "payment.status", Value: 1},
			{Key: "delivery.status", Value: 1},
			{Key: "delivery.assignedDriverId", Value: 1},
			{Key: "createdAt", Value: -1},
		},
		Options: options.Index().SetName("dispatch_index"),
	}

	userIDIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetName("userId_index"),
	}

	log.Println("EnsureOrderIndexes: creating order indexes")
	_, err := indexes.CreateMany(ctx, []mongo.IndexModel{orderNumberIndex, dispatchIndex, userIDIndex})
	if err != nil {
		log.Println("EnsureOrderIndexes: index error:", err)
		return err
	}
	return nil
}

func EnsureUserIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("users").Indexes()

	emailIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	}

	log.Println("EnsureUserIndexes: creating email_unique index")
	_, err := indexes.CreateOne(ctx, emailIndex)
	if err != nil {
		log.Println("EnsureUserIndexes: email index error:", err)
		return err
	}
	return nil
}

func EnsureTokenIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("refresh_tokens").Indexes()

	tokenHashIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "tokenHash", Value: 1}},
		Options: options.Index().SetName("tokenHash_index"),
	}

	log.Println("EnsureTokenIndexes: creating tokenHash_index index")
	_, err := indexes.CreateOne(ctx, tokenHashIndex)
	if err != nil {
		log.Println("EnsureTokenIndexes: tokenHash index error:", err)
		return err
	}
	return nil
}
