package handlers

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"homemeal/internal/models"
)

func TestMergeCheckoutItemsKeepsClientOrder(t *testing.T) {
	first := primitive.NewObjectID()
	second := primitive.NewObjectID()
	third := primitive.NewObjectID()

	reqs := []checkoutItemRequest{
		{ProductID: first.Hex(), Quantity: 1},
		{ProductID: second.Hex(), Quantity: 2},
		{ProductID: first.Hex(), Quantity: 3},
		{ProductID: third.Hex(), Quantity: 1},
	}

	ids, quantities, err := mergeCheckoutItems(reqs)
	if err != nil {
		t.Fatal(err)
	}

	want := []primitive.ObjectID{first, second, third}
	if len(ids) != len(want) {
		t.Fatalf("expected %d distinct ids, got %d", len(want), len(ids))
	}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("id at position %d out of order", i)
		}
	}
	if quantities[first] != 4 {
		t.Errorf("expected duplicate lines merged to quantity 4, got %d", quantities[first])
	}
	if quantities[second] != 2 || quantities[third] != 1 {
		t.Error("quantities not carried per product")
	}
}

func TestMergeCheckoutItemsRejectsBadID(t *testing.T) {
	_, _, err := mergeCheckoutItems([]checkoutItemRequest{{ProductID: "nope", Quantity: 1}})
	if err == nil {
		t.Fatal("expected an error for a malformed product id")
	}
}

func TestBuildOrderItemsFollowsIDOrder(t *testing.T) {
	first := primitive.NewObjectID()
	second := primitive.NewObjectID()

	found := map[primitive.ObjectID]models.MenuItem{
		first:  {ID: first, Name: "Soup", Price: 4.20},
		second: {ID: second, Name: "Pie", Price: 7.80},
	}
	quantities := map[primitive.ObjectID]int{first: 2, second: 1}

	items, err := buildOrderItems([]primitive.ObjectID{second, first}, quantities, found)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Name != "Pie" || items[1].Name != "Soup" {
		t.Fatal("line items do not follow the requested order")
	}
	if items[1].Quantity != 2 || items[1].UnitPrice != 4.20 {
		t.Error("item fields not resolved from the menu")
	}
}

func TestBuildOrderItemsMissingProduct(t *testing.T) {
	missing := primitive.NewObjectID()
	_, err := buildOrderItems([]primitive.ObjectID{missing}, map[primitive.ObjectID]int{missing: 1}, nil)
	if err == nil {
		t.Fatal("expected an error when the product is not on the menu")
	}
}
