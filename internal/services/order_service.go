package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/bloom-bouquet/api/internal/domain"
	"github.com/bloom-bouquet/api/internal/repositories"
)

const (
	orderEventStatusUpdated  = "order.status_updated"
	orderEventPaymentUpdated = "order.payment_updated"

	defaultPaymentUpdatedBy = "payment_system"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates the requested status is unreachable
	// from the current status.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderPaymentRequired indicates the transition is blocked until the
	// order's payment is completed.
	ErrOrderPaymentRequired = errors.New("order: payment required")
	// ErrOrderConflict indicates optimistic concurrency conflicts.
	ErrOrderConflict = errors.New("order: conflict")
)

// orderStateTransitions is the directed edge set of the fulfillment lifecycle.
// Absence of an edge means the transition is rejected. Terminal statuses have
// no outgoing edges.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusWaitingForPayment: {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing:        {domain.OrderStatusShipping, domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusShipping:          {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusDelivered:         {},
	domain.OrderStatusCancelled:         {},
}

// CanTransition reports whether the transition graph contains the from→to
// edge. Same-status calls are not edges; the caller treats them as a no-op
// before consulting the graph.
func CanTransition(from, to domain.OrderStatus) bool {
	next, ok := orderStateTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(next, to)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	UnitOfWork   repositories.UnitOfWork
	History      HistoryRecorder
	Notifier     Notifier
	Events       OrderEventPublisher
	ResolveActor ActorResolver
	Clock        func() time.Time
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders       repositories.OrderRepository
	unitOfWork   repositories.UnitOfWork
	history      HistoryRecorder
	notifier     Notifier
	events       OrderEventPublisher
	resolveActor ActorResolver
	clock        func() time.Time
	logger       func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	resolve := deps.ResolveActor
	if resolve == nil {
		resolve = func(context.Context) (Actor, bool) { return Actor{}, false }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:       deps.Orders,
		unitOfWork:   unit,
		history:      deps.History,
		notifier:     deps.Notifier,
		events:       deps.Events,
		resolveActor: resolve,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (StatusChange, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return StatusChange{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.NewStatus
	if !slices.Contains(domain.OrderStatuses, target) {
		return StatusChange{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return StatusChange{}, s.mapRepositoryError(err)
	}

	// Same-status calls are idempotent no-ops: duplicate webhook or double
	// click deliveries must not mint history entries or notifications, and
	// the record is left untouched (StatusUpdatedAt included).
	if target == order.Status {
		return StatusChange{
			OrderID:   order.ID,
			OldStatus: order.Status,
			NewStatus: order.Status,
			UpdatedBy: order.StatusUpdatedBy,
			UpdatedAt: derefTime(order.StatusUpdatedAt),
			Changed:   false,
		}, nil
	}

	// The edge check runs before the payment gate. Callers depend on a
	// missing edge surfacing as invalid_transition even when payment would
	// also have blocked it.
	if !CanTransition(order.Status, target) {
		return StatusChange{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, order.Status, target)
	}

	if target != domain.OrderStatusCancelled &&
		target != domain.OrderStatusWaitingForPayment &&
		order.PaymentStatus != domain.PaymentStatusPaid {
		return StatusChange{}, fmt.Errorf("%w: order %s is %s", ErrOrderPaymentRequired, order.ID, order.PaymentStatus)
	}

	actor := s.effectiveActor(ctx, cmd.Actor)
	now := s.clock()
	from := order.Status

	s.applyStatusTransition(&order, target, actor, now)
	order.Version++

	if err := s.persistOrder(ctx, order); err != nil {
		return StatusChange{}, err
	}

	s.afterTransition(ctx, order, from, target, actor, cmd.Note, now)

	return StatusChange{
		OrderID:   order.ID,
		OldStatus: from,
		NewStatus: target,
		UpdatedBy: actor,
		UpdatedAt: now,
		Changed:   true,
	}, nil
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (PaymentChange, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return PaymentChange{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.NewPaymentStatus
	if !slices.Contains(domain.PaymentStatuses, target) {
		return PaymentChange{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, target)
	}

	updatedBy := strings.TrimSpace(cmd.UpdatedBy)
	if updatedBy == "" {
		updatedBy = defaultPaymentUpdatedBy
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return PaymentChange{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	oldPayment := order.PaymentStatus
	oldStatus := order.Status
	becamePaid := false

	// Payment statuses carry no transition graph: gateways report pending
	// after paid, paid after failed retries, refunds after settlement. Every
	// write is accepted and idempotency hangs off PaidAt and the status
	// auto-advance being unreachable twice.
	order.PaymentStatus = target
	order.UpdatedAt = now
	order.Version++

	switch {
	case target == domain.PaymentStatusPaid:
		if order.PaidAt == nil {
			order.PaidAt = &now
			becamePaid = true
		}
		if order.Status == domain.OrderStatusWaitingForPayment {
			// The one sanctioned automatic transition, bypassing the
			// validator: settlement promotes the order into preparation.
			s.applyStatusTransition(&order, domain.OrderStatusProcessing, updatedBy, now)
			s.logger(ctx, "order.payment.auto_advance", map[string]any{
				"order": order.ID,
				"from":  string(oldStatus),
				"to":    string(order.Status),
				"actor": updatedBy,
			})
		}
	case target == domain.PaymentStatusFailed || target == domain.PaymentStatusExpired:
		if order.Status == domain.OrderStatusProcessing {
			// A paid determination was reversed before shipment; park the
			// order back in the payment queue.
			s.applyStatusTransition(&order, domain.OrderStatusWaitingForPayment, updatedBy, now)
			s.logger(ctx, "order.payment.auto_revert", map[string]any{
				"order": order.ID,
				"from":  string(oldStatus),
				"to":    string(order.Status),
				"actor": updatedBy,
			})
		}
	}

	if err := s.persistOrder(ctx, order); err != nil {
		return PaymentChange{}, err
	}

	statusChanged := order.Status != oldStatus
	paymentChanged := order.PaymentStatus != oldPayment

	payload := NotificationPayload{
		OldStatus:        oldStatus,
		NewStatus:        order.Status,
		OldPaymentStatus: oldPayment,
		NewPaymentStatus: order.PaymentStatus,
		OccurredAt:       now,
	}

	if becamePaid && s.notifier != nil {
		s.notifier.Notify(ctx, domain.NotificationKindPaymentCompleted, order, payload)
	} else if paymentChanged && s.notifier != nil {
		s.notifier.Notify(ctx, domain.NotificationKindPaymentStatusChange, order, payload)
	}

	if statusChanged {
		s.afterTransition(ctx, order, oldStatus, order.Status, updatedBy, "payment status: "+string(target), now)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventPaymentUpdated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentStatus: order.PaymentStatus,
		Actor:         updatedBy,
		OccurredAt:    now,
		Data: map[string]any{
			"old_payment_status": string(oldPayment),
			"new_payment_status": string(order.PaymentStatus),
		},
	})

	return PaymentChange{
		OrderID:              order.ID,
		OldPaymentStatus:     oldPayment,
		NewPaymentStatus:     order.PaymentStatus,
		OldOrderStatus:       oldStatus,
		NewOrderStatus:       order.Status,
		PaymentStatusChanged: paymentChanged,
		StatusChanged:        statusChanged,
	}, nil
}

// applyStatusTransition mutates the order for an already-validated transition.
// Status-specific timestamps are set exactly once; StatusUpdatedAt moves on
// every accepted transition.
func (s *orderService) applyStatusTransition(order *Order, target domain.OrderStatus, actor string, now time.Time) {
	order.Status = target
	order.StatusUpdatedAt = &now
	order.StatusUpdatedBy = actor
	order.UpdatedAt = now

	switch target {
	case domain.OrderStatusProcessing:
		if order.ProcessingStartedAt == nil {
			order.ProcessingStartedAt = &now
		}
	case domain.OrderStatusShipping:
		if order.ShippedAt == nil {
			order.ShippedAt = &now
		}
	case domain.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
	case domain.OrderStatusCancelled:
		if order.CancelledAt == nil {
			order.CancelledAt = &now
		}
	}
}

// afterTransition runs the best-effort side effects of an accepted transition.
// Each one is isolated: a broken notification channel or history store can
// never roll back or block the committed state change.
func (s *orderService) afterTransition(ctx context.Context, order Order, from, to domain.OrderStatus, actor, note string, now time.Time) {
	if s.history != nil {
		s.history.Record(ctx, order, from, to, actor, note)
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, domain.NotificationKindOrderStatusChange, order, NotificationPayload{
			OldStatus:        from,
			NewStatus:        to,
			OldPaymentStatus: order.PaymentStatus,
			NewPaymentStatus: order.PaymentStatus,
			OccurredAt:       now,
		})
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusUpdated,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: from,
		CurrentStatus:  to,
		PaymentStatus:  order.PaymentStatus,
		Actor:          actor,
		OccurredAt:     now,
	})
}

// effectiveActor applies the precedence: explicit command actor, then the
// ambient identity resolved from the request context, then system:auto.
func (s *orderService) effectiveActor(ctx context.Context, explicit Actor) string {
	if !explicit.IsZero() {
		return explicit.Tag()
	}
	if actor, ok := s.resolveActor(ctx); ok && !actor.IsZero() {
		return actor.Tag()
	}
	return domain.SystemActor.Tag()
}

func (s *orderService) persistOrder(ctx context.Context, order Order) error {
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		return s.orders.Update(txCtx, order)
	})
	if err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
