package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleCustomer = "customer"
	RoleDriver   = "driver"
	RoleAdmin    = "admin"
)

// Address represents a saved address entry in a user's address book.
type Address struct {
	ID         string `bson:"id" json:"id"`
	Title      string `bson:"title" json:"title"`
	Street     string `bson:"street" json:"street"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
	Country    string `bson:"country" json:"country"`
	Note       string `bson:"note,omitempty" json:"note,omitempty"`
	IsDefault  bool   `bson:"isDefault" json:"isDefault"`
}

// User represents any account: customers, delivery drivers and admins share
// one collection and are distinguished by Role. The driver profile fields are
// only meaningful when Role is "driver".
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Name         string             `bson:"name" json:"name"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Role         string             `bson:"role" json:"role"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	Addresses    []Address          `bson:"addresses" json:"addresses"`

	IsAvailable     bool      `bson:"isAvailable" json:"isAvailable"`
	VehicleType     string    `bson:"vehicleType,omitempty" json:"vehicleType,omitempty"`
	DeliveryZone    string    `bson:"deliveryZone,omitempty" json:"deliveryZone,omitempty"`
	Rating          float64   `bson:"rating" json:"rating"`
	TotalDeliveries int       `bson:"totalDeliveries" json:"totalDeliveries"`
	Location        *GeoPoint `bson:"location,omitempty" json:"location,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
