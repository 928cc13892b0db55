package domain

import (
	"fmt"
	"strings"
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderStatus enumerates valid fulfillment stages for orders.
type OrderStatus string

const (
	// OrderStatusWaitingForPayment indicates the order awaits payment settlement.
	OrderStatusWaitingForPayment OrderStatus = "waiting_for_payment"
	// OrderStatusProcessing indicates payment cleared and the bouquet is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipping indicates the order has been handed to the courier.
	OrderStatusShipping OrderStatus = "shipping"
	// OrderStatusDelivered indicates the order reached the customer. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every known order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusWaitingForPayment,
	OrderStatusProcessing,
	OrderStatusShipping,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// PaymentStatus enumerates gateway-reported settlement states. There is no
// transition graph for payment statuses: gateways replay and reorder
// callbacks, so any value may follow any other.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no settlement has been reported yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates the gateway reported a successful settlement.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed indicates the gateway reported a failed charge.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusExpired indicates the payment window lapsed.
	PaymentStatusExpired PaymentStatus = "expired"
	// PaymentStatusRefunded indicates a settled payment was returned.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentStatuses lists every known payment status.
var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusExpired,
	PaymentStatusRefunded,
}

// ActorKind classifies who performed a transition.
type ActorKind string

const (
	// ActorKindAdmin identifies a staff account acting through the admin surface.
	ActorKindAdmin ActorKind = "admin"
	// ActorKindCustomer identifies the order's customer.
	ActorKindCustomer ActorKind = "customer"
	// ActorKindSystem identifies automatic transitions not requested by anyone.
	ActorKindSystem ActorKind = "system"
	// ActorKindPaymentSystem identifies the payment gateway callback pipeline.
	ActorKindPaymentSystem ActorKind = "payment_system"
)

// Actor records the identity responsible for a transition, kept for audit.
type Actor struct {
	Kind ActorKind
	ID   string
}

// SystemActor is used when no explicit or ambient actor applies.
var SystemActor = Actor{Kind: ActorKindSystem, ID: "auto"}

// PaymentSystemActor tags transitions driven by normalized gateway callbacks.
var PaymentSystemActor = Actor{Kind: ActorKindPaymentSystem}

// Tag renders the audit representation, e.g. "admin:3" or "system:auto".
func (a Actor) Tag() string {
	kind := strings.TrimSpace(string(a.Kind))
	if kind == "" {
		return SystemActor.Tag()
	}
	id := strings.TrimSpace(a.ID)
	if kind == string(ActorKindPaymentSystem) && id == "" {
		return kind
	}
	if kind == string(ActorKindCustomer) {
		// Customer tags keep the legacy "user:" prefix existing integrations parse.
		kind = "user"
	}
	if id == "" {
		return kind
	}
	return fmt.Sprintf("%s:%s", kind, id)
}

// IsZero reports whether the actor carries no identity at all.
func (a Actor) IsZero() bool {
	return strings.TrimSpace(string(a.Kind)) == "" && strings.TrimSpace(a.ID) == ""
}

// Order captures a customer purchase progressing through the delivery lifecycle.
type Order struct {
	ID            string
	OrderNumber   string
	CustomerID    *string
	Status        OrderStatus
	PaymentStatus PaymentStatus

	Subtotal     int64
	ShippingCost int64
	TotalAmount  int64

	Items []OrderLineItem

	DeliveryAddress *DeliveryAddress
	Note            string

	StatusUpdatedBy string

	CreatedAt           time.Time
	UpdatedAt           time.Time
	StatusUpdatedAt     *time.Time
	PaidAt              *time.Time
	ProcessingStartedAt *time.Time
	ShippedAt           *time.Time
	DeliveredAt         *time.Time
	CancelledAt         *time.Time

	// Version supports optimistic concurrency on the mutate-and-persist step.
	Version int64
}

// OrderLineItem snapshots a product at purchase time so historical orders
// survive later catalog edits.
type OrderLineItem struct {
	ProductRef string
	Name       string
	UnitPrice  int64
	Quantity   int
}

// DeliveryAddress stores the drop-off location snapshot for an order.
type DeliveryAddress struct {
	Recipient  string
	Phone      string
	Line1      string
	Line2      *string
	City       string
	PostalCode string
}

// StatusHistoryEntry is one immutable record of an accepted transition.
type StatusHistoryEntry struct {
	ID         string
	OrderID    string
	FromStatus OrderStatus
	ToStatus   OrderStatus
	Actor      string
	Note       string
	CreatedAt  time.Time
}

// NotificationKind tags the machine-readable category of a notification.
type NotificationKind string

const (
	// NotificationKindNewOrder announces a freshly placed order to admins.
	NotificationKindNewOrder NotificationKind = "new_order"
	// NotificationKindOrderStatusChange reports an order status transition.
	NotificationKindOrderStatusChange NotificationKind = "order_status_change"
	// NotificationKindPaymentStatusChange reports a payment status update.
	NotificationKindPaymentStatusChange NotificationKind = "payment_status_change"
	// NotificationKindPaymentCompleted reports the first pending-to-paid flip.
	NotificationKindPaymentCompleted NotificationKind = "payment_completed"
)

// RecipientKind distinguishes notification audiences.
type RecipientKind string

const (
	// RecipientKindCustomer addresses the order's owning customer.
	RecipientKindCustomer RecipientKind = "customer"
	// RecipientKindAdmin addresses a staff account.
	RecipientKindAdmin RecipientKind = "admin"
)

// Notification stores one fan-out record for a single recipient.
type Notification struct {
	ID            string
	RecipientRef  string
	RecipientKind RecipientKind
	Kind          NotificationKind
	Title         string
	Message       string
	Data          map[string]any
	Unread        bool
	CreatedAt     time.Time
}

// AdminAccount is a staff directory record used for notification fan-out.
type AdminAccount struct {
	ID          string
	DisplayName string
	Email       string
	Locale      string
	IsActive    bool
	CreatedAt   time.Time
}

// CustomerProfile is the customer directory projection used by this core.
type CustomerProfile struct {
	ID          string
	DisplayName string
	Email       string
	Phone       string
	Locale      string
	CreatedAt   time.Time
}
