package firestore

import (
	"reflect"
	"testing"
	"time"

	domain "github.com/bloom-bouquet/api/internal/domain"
)

func TestOrderDocRoundTrip(t *testing.T) {
	customerID := "cus_01"
	line2 := "Unit 4B"
	paidAt := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	order := domain.Order{
		ID:            "ord_01",
		OrderNumber:   "BB-20250614-0001",
		CustomerID:    &customerID,
		Status:        domain.OrderStatusProcessing,
		PaymentStatus: domain.PaymentStatusPaid,
		Subtotal:      250000,
		ShippingCost:  20000,
		TotalAmount:   270000,
		Items: []domain.OrderLineItem{
			{ProductRef: "products/rose-bouquet", Name: "Rose Bouquet", UnitPrice: 125000, Quantity: 2},
		},
		DeliveryAddress: &domain.DeliveryAddress{
			Recipient:  "Sari Gunawan",
			Phone:      "+62-811-0000-111",
			Line1:      "Jl. Melati 12",
			Line2:      &line2,
			City:       "Bandung",
			PostalCode: "40115",
		},
		Note:            "morning delivery",
		StatusUpdatedBy: "admin:7",
		CreatedAt:       time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2025, 6, 14, 9, 31, 0, 0, time.UTC),
		PaidAt:          &paidAt,
		Version:         3,
	}

	decoded := decodeOrder(order.ID, encodeOrder(order))
	if !reflect.DeepEqual(decoded, order) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, order)
	}
}

func TestOrderDocWithoutAddress(t *testing.T) {
	order := domain.Order{
		ID:            "ord_02",
		OrderNumber:   "BB-20250614-0002",
		Status:        domain.OrderStatusWaitingForPayment,
		PaymentStatus: domain.PaymentStatusPending,
		TotalAmount:   90000,
		CreatedAt:     time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC),
		Version:       1,
	}

	doc := encodeOrder(order)
	if doc.DeliveryAddress != nil {
		t.Fatalf("encoded address = %+v, want nil", doc.DeliveryAddress)
	}

	decoded := decodeOrder(order.ID, doc)
	if decoded.DeliveryAddress != nil {
		t.Fatalf("decoded address = %+v, want nil", decoded.DeliveryAddress)
	}
	if decoded.CustomerID != nil {
		t.Fatalf("decoded customer id = %q, want nil", *decoded.CustomerID)
	}
	if !reflect.DeepEqual(decoded, order) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, order)
	}
}
