package events

import (
	"encoding/json"
	"testing"
	"time"

	domain "github.com/bloom-bouquet/api/internal/domain"
	"github.com/bloom-bouquet/api/internal/services"
)

func TestEventEnvelopeRoundTrip(t *testing.T) {
	occurredAt := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	event := services.OrderEvent{
		Type:           "order.status_updated",
		OrderID:        "ord_01",
		OrderNumber:    "BB-20250614-0001",
		PreviousStatus: domain.OrderStatusProcessing,
		CurrentStatus:  domain.OrderStatusShipping,
		PaymentStatus:  domain.PaymentStatusPaid,
		Actor:          "admin:7",
		OccurredAt:     occurredAt,
	}

	data, err := json.Marshal(eventEnvelope{
		Type:           event.Type,
		OrderID:        event.OrderID,
		OrderNumber:    event.OrderNumber,
		PreviousStatus: string(event.PreviousStatus),
		CurrentStatus:  string(event.CurrentStatus),
		PaymentStatus:  string(event.PaymentStatus),
		Actor:          event.Actor,
		OccurredAt:     event.OccurredAt,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "order.status_updated" {
		t.Errorf("type = %v", decoded["type"])
	}
	if decoded["previous_status"] != "processing" || decoded["current_status"] != "shipping" {
		t.Errorf("statuses = %v -> %v", decoded["previous_status"], decoded["current_status"])
	}
	if _, ok := decoded["data"]; ok {
		t.Error("empty data should be omitted")
	}
}

func TestEventAttributes(t *testing.T) {
	attrs := eventAttributes(services.OrderEvent{
		Type:    "order.payment_updated",
		OrderID: "ord_01",
		Actor:   "payment_system",
	})
	if attrs["type"] != "order.payment_updated" || attrs["orderId"] != "ord_01" {
		t.Fatalf("attrs = %v", attrs)
	}
	if _, ok := attrs["orderNumber"]; ok {
		t.Fatal("blank attributes must be dropped")
	}
	if attrs["actor"] != "payment_system" {
		t.Fatalf("actor attr = %q", attrs["actor"])
	}
}
