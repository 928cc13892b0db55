package repositories

import (
	"context"
	"time"

	domain "github.com/bloom-bouquet/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Notifications() NotificationRepository
	StatusHistory() StatusHistoryRepository
	Admins() AdminAccountRepository
	Customers() CustomerRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order records for the state machine and admin reads.
//
// Update must enforce optimistic concurrency: the write succeeds only when the
// stored Version equals order.Version-1 (the version read before mutation),
// otherwise it returns a RepositoryError with IsConflict.
type OrderRepository interface {
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// NotificationRepository stores per-recipient notification records.
type NotificationRepository interface {
	Insert(ctx context.Context, notification domain.Notification) error
	ListForRecipient(ctx context.Context, recipient RecipientRef, pager domain.Pagination) (domain.CursorPage[domain.Notification], error)
	MarkRead(ctx context.Context, recipient RecipientRef, notificationID string, readAt time.Time) error
}

// StatusHistoryRepository appends immutable transition records.
type StatusHistoryRepository interface {
	Append(ctx context.Context, entry domain.StatusHistoryEntry) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.StatusHistoryEntry, error)
}

// AdminAccountRepository lists staff accounts for notification fan-out.
type AdminAccountRepository interface {
	ListActive(ctx context.Context) ([]domain.AdminAccount, error)
}

// CustomerRepository resolves customer directory records.
type CustomerRepository interface {
	FindByID(ctx context.Context, customerID string) (domain.CustomerProfile, error)
}

// RecipientRef addresses one notification audience member.
type RecipientRef struct {
	Kind domain.RecipientKind
	ID   string
}

// OrderListFilter narrows admin order listings.
type OrderListFilter struct {
	CustomerID    string
	Status        []domain.OrderStatus
	PaymentStatus []domain.PaymentStatus
	DateRange     domain.RangeQuery[time.Time]
	Pagination    domain.Pagination
}
