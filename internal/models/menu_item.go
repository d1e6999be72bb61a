package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MenuItem is a dish offered for order. Checkout snapshots its name and
// price into the order, so later edits never rewrite past orders.
type MenuItem struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Price       float64            `bson:"price" json:"price"`
	Category    string             `bson:"category,omitempty" json:"category,omitempty"`
	ImagePath   string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	IsAvailable bool               `bson:"isAvailable" json:"isAvailable"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
