package services

import (
	"context"
	"time"

	domain "github.com/bloom-bouquet/api/internal/domain"
	"github.com/bloom-bouquet/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Order              = domain.Order
	OrderLineItem      = domain.OrderLineItem
	OrderStatus        = domain.OrderStatus
	PaymentStatus      = domain.PaymentStatus
	Actor              = domain.Actor
	Notification       = domain.Notification
	NotificationKind   = domain.NotificationKind
	RecipientKind      = domain.RecipientKind
	StatusHistoryEntry = domain.StatusHistoryEntry
	AdminAccount       = domain.AdminAccount
	CustomerProfile    = domain.CustomerProfile

	OrderListFilter = repositories.OrderListFilter
	RecipientRef    = repositories.RecipientRef
)

// OrderService owns the order status/payment state machine and admin read paths.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (StatusChange, error)
	UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (PaymentChange, error)
}

// UpdateStatusCommand requests a fulfillment status transition.
type UpdateStatusCommand struct {
	OrderID   string
	NewStatus OrderStatus
	// Actor overrides any identity resolved from the request context. When
	// zero, the service falls back to the ambient actor, then system:auto.
	Actor Actor
	Note  string
}

// StatusChange summarises the outcome of UpdateStatus.
type StatusChange struct {
	OrderID   string
	OldStatus OrderStatus
	NewStatus OrderStatus
	UpdatedBy string
	UpdatedAt time.Time
	Changed   bool
}

// UpdatePaymentStatusCommand applies a normalized gateway settlement update.
type UpdatePaymentStatusCommand struct {
	OrderID          string
	NewPaymentStatus PaymentStatus
	// UpdatedBy tags the audit trail; defaults to "payment_system".
	UpdatedBy string
}

// PaymentChange summarises the outcome of UpdatePaymentStatus, including any
// automatic order status transition it triggered.
type PaymentChange struct {
	OrderID              string
	OldPaymentStatus     PaymentStatus
	NewPaymentStatus     PaymentStatus
	OldOrderStatus       OrderStatus
	NewOrderStatus       OrderStatus
	PaymentStatusChanged bool
	StatusChanged        bool
}

// NotificationPayload carries the structured data blob attached to each
// notification record of a fan-out.
type NotificationPayload struct {
	OldStatus        OrderStatus
	NewStatus        OrderStatus
	OldPaymentStatus PaymentStatus
	NewPaymentStatus PaymentStatus
	OccurredAt       time.Time
}

// Notifier fans out one notification per recipient for a state change.
// Implementations are best-effort: per-recipient failures are logged and
// skipped, and the call never fails the triggering transition.
type Notifier interface {
	Notify(ctx context.Context, kind NotificationKind, order Order, payload NotificationPayload)
}

// NotificationService extends the dispatcher with the admin/customer feed.
type NotificationService interface {
	Notifier
	ListForRecipient(ctx context.Context, recipient RecipientRef, pager Pagination) (domain.CursorPage[Notification], error)
	MarkRead(ctx context.Context, recipient RecipientRef, notificationID string) error
}

// HistoryRecorder appends transition audit records. Best-effort: failures are
// logged, never propagated, so history can lag without blocking orders.
type HistoryRecorder interface {
	Record(ctx context.Context, order Order, from, to OrderStatus, actor string, note string)
}

// HistoryService extends the recorder with the order timeline read path.
type HistoryService interface {
	HistoryRecorder
	ListByOrder(ctx context.Context, orderID string) ([]StatusHistoryEntry, error)
}

// OrderEventPublisher publishes order domain events for downstream consumers
// such as the realtime admin feed. Fire-and-forget.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus OrderStatus
	CurrentStatus  OrderStatus
	PaymentStatus  PaymentStatus
	Actor          string
	OccurredAt     time.Time
	Data           map[string]any
}

// ActorResolver resolves the ambient actor from the request context, if any.
// Callers authenticate upstream and stash the identity on the context; the
// state machine never reads authentication state directly.
type ActorResolver func(ctx context.Context) (Actor, bool)
