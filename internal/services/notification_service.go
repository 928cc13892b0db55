package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bloom-bouquet/api/internal/domain"
	"github.com/bloom-bouquet/api/internal/repositories"
)

// Notification service errors.
var (
	ErrNotificationInvalidInput = errors.New("notification: invalid input")
	ErrNotificationNotFound     = errors.New("notification: not found")
	ErrNotificationUnavailable  = errors.New("notification: storage unavailable")
)

// NotificationServiceDeps wires repository and platform dependencies.
type NotificationServiceDeps struct {
	Notifications repositories.NotificationRepository
	Admins        repositories.AdminAccountRepository
	Customers     repositories.CustomerRepository

	// AdminLocale is the locale used for staff-facing copy. Customer copy
	// follows the customer profile's preferred locale when one is set.
	AdminLocale string

	IDGenerator func() string
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	notifications repositories.NotificationRepository
	admins        repositories.AdminAccountRepository
	customers     repositories.CustomerRepository
	adminLocale   string
	newID         func() string
	now           func() time.Time
	log           func(ctx context.Context, event string, fields map[string]any)
}

// NewNotificationService builds the notification dispatcher.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Notifications == nil {
		return nil, errors.New("notification service: notification repository is required")
	}
	if deps.Admins == nil {
		return nil, errors.New("notification service: admin repository is required")
	}
	if deps.Customers == nil {
		return nil, errors.New("notification service: customer repository is required")
	}

	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return "" }
	}
	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	log := deps.Logger
	if log == nil {
		log = func(context.Context, string, map[string]any) {}
	}
	adminLocale := deps.AdminLocale
	if adminLocale == "" {
		adminLocale = "en"
	}
	return &notificationService{
		notifications: deps.Notifications,
		admins:        deps.Admins,
		customers:     deps.Customers,
		adminLocale:   adminLocale,
		newID:         newID,
		now:           now,
		log:           log,
	}, nil
}

// Notify fans a single business event out to the order's customer and every
// active admin account. Delivery is best effort: a failed insert for one
// recipient is logged and never blocks the others, and no error escapes to
// the caller.
func (s *notificationService) Notify(ctx context.Context, kind NotificationKind, order Order, payload NotificationPayload) {
	if order.ID == "" {
		return
	}

	if order.CustomerID != nil && *order.CustomerID != "" {
		locale := s.customerLocale(ctx, *order.CustomerID)
		title, message := renderNotification(kind, order, payload, locale, domain.RecipientKindCustomer)
		s.deliver(ctx, RecipientRef{Kind: domain.RecipientKindCustomer, ID: *order.CustomerID}, kind, order, payload, title, message)
	}

	admins, err := s.admins.ListActive(ctx)
	if err != nil {
		s.log(ctx, "notification.admin_list_failed", map[string]any{
			"order_id": order.ID,
			"kind":     string(kind),
			"error":    err.Error(),
		})
		return
	}
	title, message := renderNotification(kind, order, payload, s.adminLocale, domain.RecipientKindAdmin)
	for _, admin := range admins {
		s.deliver(ctx, RecipientRef{Kind: domain.RecipientKindAdmin, ID: admin.ID}, kind, order, payload, title, message)
	}
}

func (s *notificationService) deliver(ctx context.Context, recipient RecipientRef, kind NotificationKind, order Order, payload NotificationPayload, title, message string) {
	notification := domain.Notification{
		ID:            s.newID(),
		RecipientRef:  recipient.ID,
		RecipientKind: recipient.Kind,
		Kind:          kind,
		Title:         title,
		Message:       message,
		Data:          notificationData(kind, order, payload),
		Unread:        true,
		CreatedAt:     s.now(),
	}
	if err := s.notifications.Insert(ctx, notification); err != nil {
		s.log(ctx, "notification.insert_failed", map[string]any{
			"order_id":  order.ID,
			"kind":      string(kind),
			"recipient": string(recipient.Kind) + ":" + recipient.ID,
			"error":     err.Error(),
		})
	}
}

func (s *notificationService) customerLocale(ctx context.Context, customerID string) string {
	profile, err := s.customers.FindByID(ctx, customerID)
	if err != nil || profile.Locale == "" {
		return s.adminLocale
	}
	return profile.Locale
}

// ListForRecipient returns the recipient's notifications, newest first.
func (s *notificationService) ListForRecipient(ctx context.Context, recipient RecipientRef, pager Pagination) (domain.CursorPage[Notification], error) {
	if recipient.ID == "" {
		return domain.CursorPage[Notification]{}, fmt.Errorf("%w: recipient id is required", ErrNotificationInvalidInput)
	}
	page, err := s.notifications.ListForRecipient(ctx, recipient, pager)
	if err != nil {
		return domain.CursorPage[Notification]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// MarkRead marks a single notification as read for the recipient.
func (s *notificationService) MarkRead(ctx context.Context, recipient RecipientRef, notificationID string) error {
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return fmt.Errorf("%w: notification id is required", ErrNotificationInvalidInput)
	}
	if recipient.ID == "" {
		return fmt.Errorf("%w: recipient id is required", ErrNotificationInvalidInput)
	}
	if err := s.notifications.MarkRead(ctx, recipient, notificationID, s.now()); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *notificationService) mapRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %s", ErrNotificationNotFound, err.Error())
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %s", ErrNotificationUnavailable, err.Error())
		}
	}
	return err
}

func renderNotification(kind NotificationKind, order Order, payload NotificationPayload, locale string, audience domain.RecipientKind) (title, message string) {
	switch kind {
	case domain.NotificationKindNewOrder:
		if audience == domain.RecipientKindAdmin {
			return "New Order", fmt.Sprintf("Order %s is waiting to be processed.", order.OrderNumber)
		}
		return "Order Received", fmt.Sprintf("We received your order %s.", order.OrderNumber)
	case domain.NotificationKindOrderStatusChange:
		label := StatusLabel(locale, payload.NewStatus)
		return "Order Status Updated", fmt.Sprintf("Order %s is now %s.", order.OrderNumber, label)
	case domain.NotificationKindPaymentStatusChange:
		label := PaymentStatusLabel(locale, payload.NewPaymentStatus)
		return "Payment Status Updated", fmt.Sprintf("Payment for order %s is now %s.", order.OrderNumber, label)
	case domain.NotificationKindPaymentCompleted:
		if audience == domain.RecipientKindAdmin {
			return "Payment Received", fmt.Sprintf("Order %s has been paid and is ready to process.", order.OrderNumber)
		}
		return "Payment Confirmed", fmt.Sprintf("Payment for order %s has been confirmed. We are preparing your flowers.", order.OrderNumber)
	default:
		return "Order Update", fmt.Sprintf("Order %s has been updated.", order.OrderNumber)
	}
}

func notificationData(kind NotificationKind, order Order, payload NotificationPayload) map[string]any {
	data := map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"kind":         string(kind),
		"total_amount": order.TotalAmount,
	}
	if !payload.OccurredAt.IsZero() {
		data["occurred_at"] = payload.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	if payload.OldStatus != "" {
		data["old_status"] = string(payload.OldStatus)
	}
	if payload.NewStatus != "" {
		data["new_status"] = string(payload.NewStatus)
	}
	if payload.OldPaymentStatus != "" {
		data["old_payment_status"] = string(payload.OldPaymentStatus)
	}
	if payload.NewPaymentStatus != "" {
		data["new_payment_status"] = string(payload.NewPaymentStatus)
	}
	return data
}
