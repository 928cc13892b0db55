package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	platform "github.com/bloom-bouquet/api/internal/platform/firestore"
	"github.com/bloom-bouquet/api/internal/repositories"
)

var errNilProvider = errors.New("firestore: provider is required")

// Registry wires Firestore backed repositories behind the repositories.Registry interface.
type Registry struct {
	provider *platform.Provider

	orders        *orderRepository
	notifications *notificationRepository
	history       *historyRepository
	admins        *adminRepository
	customers     *customerRepository
}

// NewRegistry constructs the registry on top of a shared Firestore provider.
func NewRegistry(provider *platform.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errNilProvider
	}
	return &Registry{
		provider:      provider,
		orders:        newOrderRepository(provider),
		notifications: newNotificationRepository(provider),
		history:       newHistoryRepository(provider),
		admins:        newAdminRepository(provider),
		customers:     newCustomerRepository(provider),
	}, nil
}

var _ repositories.Registry = (*Registry)(nil)

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository {
	return r.orders
}

// Notifications returns the notification repository.
func (r *Registry) Notifications() repositories.NotificationRepository {
	return r.notifications
}

// StatusHistory returns the status history repository.
func (r *Registry) StatusHistory() repositories.StatusHistoryRepository {
	return r.history
}

// Admins returns the admin account repository.
func (r *Registry) Admins() repositories.AdminAccountRepository {
	return r.admins
}

// Customers returns the customer directory repository.
func (r *Registry) Customers() repositories.CustomerRepository {
	return r.customers
}

// RunInTx executes fn inside a Firestore transaction. Repository calls made
// with the callback context join the transaction automatically.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(withTx(ctx, tx))
	})
}
