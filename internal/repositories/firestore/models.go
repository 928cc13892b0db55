package firestore

import (
	"time"

	domain "github.com/bloom-bouquet/api/internal/domain"
)

// Collection names.
const (
	collectionOrders        = "orders"
	collectionStatusHistory = "order_status_history"
	collectionNotifications = "notifications"
	collectionAdmins        = "admin_accounts"
	collectionCustomers     = "customers"
)

type orderDoc struct {
	OrderNumber   string  `firestore:"order_number"`
	CustomerID    *string `firestore:"customer_id"`
	Status        string  `firestore:"status"`
	PaymentStatus string  `firestore:"payment_status"`

	Subtotal     int64          `firestore:"subtotal"`
	ShippingCost int64          `firestore:"shipping_cost"`
	TotalAmount  int64          `firestore:"total_amount"`
	Items        []orderItemDoc `firestore:"items"`

	DeliveryAddress *addressDoc `firestore:"delivery_address"`
	Note            string      `firestore:"note"`

	StatusUpdatedBy string `firestore:"status_updated_by"`

	CreatedAt           time.Time  `firestore:"created_at"`
	UpdatedAt           time.Time  `firestore:"updated_at"`
	StatusUpdatedAt     *time.Time `firestore:"status_updated_at"`
	PaidAt              *time.Time `firestore:"paid_at"`
	ProcessingStartedAt *time.Time `firestore:"processing_started_at"`
	ShippedAt           *time.Time `firestore:"shipped_at"`
	DeliveredAt         *time.Time `firestore:"delivered_at"`
	CancelledAt         *time.Time `firestore:"cancelled_at"`

	Version int64 `firestore:"version"`
}

type orderItemDoc struct {
	ProductRef string `firestore:"product_ref"`
	Name       string `firestore:"name"`
	UnitPrice  int64  `firestore:"unit_price"`
	Quantity   int    `firestore:"quantity"`
}

type addressDoc struct {
	Recipient  string  `firestore:"recipient"`
	Phone      string  `firestore:"phone"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2"`
	City       string  `firestore:"city"`
	PostalCode string  `firestore:"postal_code"`
}

// encodeAddress maps the optional delivery address. Guest webhook updates
// regularly carry orders without one, so nil stays nil on both sides.
func encodeAddress(addr *domain.DeliveryAddress) *addressDoc {
	if addr == nil {
		return nil
	}
	return &addressDoc{
		Recipient:  addr.Recipient,
		Phone:      addr.Phone,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		PostalCode: addr.PostalCode,
	}
}

func decodeAddress(doc *addressDoc) *domain.DeliveryAddress {
	if doc == nil {
		return nil
	}
	return &domain.DeliveryAddress{
		Recipient:  doc.Recipient,
		Phone:      doc.Phone,
		Line1:      doc.Line1,
		Line2:      doc.Line2,
		City:       doc.City,
		PostalCode: doc.PostalCode,
	}
}

func encodeOrder(order domain.Order) orderDoc {
	var items []orderItemDoc
	for _, item := range order.Items {
		items = append(items, orderItemDoc{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}
	return orderDoc{
		OrderNumber:         order.OrderNumber,
		CustomerID:          order.CustomerID,
		Status:              string(order.Status),
		PaymentStatus:       string(order.PaymentStatus),
		Subtotal:            order.Subtotal,
		ShippingCost:        order.ShippingCost,
		TotalAmount:         order.TotalAmount,
		Items:               items,
		DeliveryAddress:     encodeAddress(order.DeliveryAddress),
		Note:                order.Note,
		StatusUpdatedBy:     order.StatusUpdatedBy,
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
		StatusUpdatedAt:     order.StatusUpdatedAt,
		PaidAt:              order.PaidAt,
		ProcessingStartedAt: order.ProcessingStartedAt,
		ShippedAt:           order.ShippedAt,
		DeliveredAt:         order.DeliveredAt,
		CancelledAt:         order.CancelledAt,
		Version:             order.Version,
	}
}

func decodeOrder(id string, doc orderDoc) domain.Order {
	var items []domain.OrderLineItem
	for _, item := range doc.Items {
		items = append(items, domain.OrderLineItem{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}
	return domain.Order{
		ID:                  id,
		OrderNumber:         doc.OrderNumber,
		CustomerID:          doc.CustomerID,
		Status:              domain.OrderStatus(doc.Status),
		PaymentStatus:       domain.PaymentStatus(doc.PaymentStatus),
		Subtotal:            doc.Subtotal,
		ShippingCost:        doc.ShippingCost,
		TotalAmount:         doc.TotalAmount,
		Items:               items,
		DeliveryAddress:     decodeAddress(doc.DeliveryAddress),
		Note:                doc.Note,
		StatusUpdatedBy:     doc.StatusUpdatedBy,
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
		StatusUpdatedAt:     doc.StatusUpdatedAt,
		PaidAt:              doc.PaidAt,
		ProcessingStartedAt: doc.ProcessingStartedAt,
		ShippedAt:           doc.ShippedAt,
		DeliveredAt:         doc.DeliveredAt,
		CancelledAt:         doc.CancelledAt,
		Version:             doc.Version,
	}
}

type historyDoc struct {
	OrderID    string    `firestore:"order_id"`
	FromStatus string    `firestore:"from_status"`
	ToStatus   string    `firestore:"to_status"`
	Actor      string    `firestore:"actor"`
	Note       string    `firestore:"note"`
	CreatedAt  time.Time `firestore:"created_at"`
}

func encodeHistory(entry domain.StatusHistoryEntry) historyDoc {
	return historyDoc{
		OrderID:    entry.OrderID,
		FromStatus: string(entry.FromStatus),
		ToStatus:   string(entry.ToStatus),
		Actor:      entry.Actor,
		Note:       entry.Note,
		CreatedAt:  entry.CreatedAt,
	}
}

func decodeHistory(id string, doc historyDoc) domain.StatusHistoryEntry {
	return domain.StatusHistoryEntry{
		ID:         id,
		OrderID:    doc.OrderID,
		FromStatus: domain.OrderStatus(doc.FromStatus),
		ToStatus:   domain.OrderStatus(doc.ToStatus),
		Actor:      doc.Actor,
		Note:       doc.Note,
		CreatedAt:  doc.CreatedAt,
	}
}

type notificationDoc struct {
	RecipientRef  string         `firestore:"recipient_ref"`
	RecipientKind string         `firestore:"recipient_kind"`
	Kind          string         `firestore:"kind"`
	Title         string         `firestore:"title"`
	Message       string         `firestore:"message"`
	Data          map[string]any `firestore:"data"`
	Unread        bool           `firestore:"unread"`
	CreatedAt     time.Time      `firestore:"created_at"`
	ReadAt        *time.Time     `firestore:"read_at"`
}

func encodeNotification(notification domain.Notification) notificationDoc {
	return notificationDoc{
		RecipientRef:  notification.RecipientRef,
		RecipientKind: string(notification.RecipientKind),
		Kind:          string(notification.Kind),
		Title:         notification.Title,
		Message:       notification.Message,
		Data:          notification.Data,
		Unread:        notification.Unread,
		CreatedAt:     notification.CreatedAt,
	}
}

func decodeNotification(id string, doc notificationDoc) domain.Notification {
	return domain.Notification{
		ID:            id,
		RecipientRef:  doc.RecipientRef,
		RecipientKind: domain.RecipientKind(doc.RecipientKind),
		Kind:          domain.NotificationKind(doc.Kind),
		Title:         doc.Title,
		Message:       doc.Message,
		Data:          doc.Data,
		Unread:        doc.Unread,
		CreatedAt:     doc.CreatedAt,
	}
}

type adminDoc struct {
	DisplayName string    `firestore:"display_name"`
	Email       string    `firestore:"email"`
	Locale      string    `firestore:"locale"`
	IsActive    bool      `firestore:"is_active"`
	CreatedAt   time.Time `firestore:"created_at"`
}

func decodeAdmin(id string, doc adminDoc) domain.AdminAccount {
	return domain.AdminAccount{
		ID:          id,
		DisplayName: doc.DisplayName,
		Email:       doc.Email,
		Locale:      doc.Locale,
		IsActive:    doc.IsActive,
		CreatedAt:   doc.CreatedAt,
	}
}

type customerDoc struct {
	DisplayName string    `firestore:"display_name"`
	Email       string    `firestore:"email"`
	Phone       string    `firestore:"phone"`
	Locale      string    `firestore:"locale"`
	CreatedAt   time.Time `firestore:"created_at"`
}

func decodeCustomer(id string, doc customerDoc) domain.CustomerProfile {
	return domain.CustomerProfile{
		ID:          id,
		DisplayName: doc.DisplayName,
		Email:       doc.Email,
		Phone:       doc.Phone,
		Locale:      doc.Locale,
		CreatedAt:   doc.CreatedAt,
	}
}
