package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/bloom-bouquet/api/internal/domain"
	"github.com/bloom-bouquet/api/internal/repositories"
)

type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return e.msg }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

type stubOrderRepository struct {
	order     domain.Order
	findErr   error
	updateErr error
	updates   []domain.Order
}

func (r *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r.findErr != nil {
		return domain.Order{}, r.findErr
	}
	return r.order, nil
}

func (r *stubOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	return r.order, r.findErr
}

func (r *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return domain.CursorPage[domain.Order]{Items: []domain.Order{r.order}}, nil
}

func (r *stubOrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updates = append(r.updates, order)
	r.order = order
	return nil
}

type recordedHistory struct {
	order domain.Order
	from  domain.OrderStatus
	to    domain.OrderStatus
	actor string
	note  string
}

type stubHistoryRecorder struct {
	records []recordedHistory
}

func (h *stubHistoryRecorder) Record(ctx context.Context, order domain.Order, from, to domain.OrderStatus, actor string, note string) {
	h.records = append(h.records, recordedHistory{order: order, from: from, to: to, actor: actor, note: note})
}

type recordedNotification struct {
	kind    domain.NotificationKind
	order   domain.Order
	payload NotificationPayload
}

type stubNotifier struct {
	sent []recordedNotification
}

func (n *stubNotifier) Notify(ctx context.Context, kind domain.NotificationKind, order domain.Order, payload NotificationPayload) {
	n.sent = append(n.sent, recordedNotification{kind: kind, order: order, payload: payload})
}

type stubEventPublisher struct {
	events []OrderEvent
	err    error
}

func (p *stubEventPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type orderFixture struct {
	repo     *stubOrderRepository
	history  *stubHistoryRecorder
	notifier *stubNotifier
	events   *stubEventPublisher
	now      time.Time
	service  OrderService
}

func newOrderFixture(t *testing.T, order domain.Order, opts ...func(*OrderServiceDeps)) *orderFixture {
	t.Helper()
	f := &orderFixture{
		repo:     &stubOrderRepository{order: order},
		history:  &stubHistoryRecorder{},
		notifier: &stubNotifier{},
		events:   &stubEventPublisher{},
		now:      time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
	}
	deps := OrderServiceDeps{
		Orders:   f.repo,
		History:  f.history,
		Notifier: f.notifier,
		Events:   f.events,
		Clock:    func() time.Time { return f.now },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	service, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	f.service = service
	return f
}

func paidOrder(status domain.OrderStatus) domain.Order {
	customerID := "cus_01"
	paidAt := time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:            "ord_01",
		OrderNumber:   "BB-20250614-0001",
		CustomerID:    &customerID,
		Status:        status,
		PaymentStatus: domain.PaymentStatusPaid,
		PaidAt:        &paidAt,
		Version:       3,
	}
}

func unpaidOrder(status domain.OrderStatus) domain.Order {
	order := paidOrder(status)
	order.PaymentStatus = domain.PaymentStatusPending
	order.PaidAt = nil
	return order
}

func TestCanTransitionTable(t *testing.T) {
	allowed := map[[2]domain.OrderStatus]bool{
		{domain.OrderStatusWaitingForPayment, domain.OrderStatusProcessing}: true,
		{domain.OrderStatusWaitingForPayment, domain.OrderStatusCancelled}:  true,
		{domain.OrderStatusProcessing, domain.OrderStatusShipping}:          true,
		{domain.OrderStatusProcessing, domain.OrderStatusDelivered}:         true,
		{domain.OrderStatusProcessing, domain.OrderStatusCancelled}:         true,
		{domain.OrderStatusShipping, domain.OrderStatusDelivered}:           true,
		{domain.OrderStatusShipping, domain.OrderStatusCancelled}:           true,
	}
	for _, from := range domain.OrderStatuses {
		for _, to := range domain.OrderStatuses {
			want := allowed[[2]domain.OrderStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestUpdateStatusValidTransition(t *testing.T) {
	f := newOrderFixture(t, paidOrder(domain.OrderStatusProcessing))

	change, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		OrderID:   "ord_01",
		NewStatus: domain.OrderStatusShipping,
		Actor:     domain.Actor{Kind: domain.ActorKindAdmin, ID: "7"},
		Note:      "courier picked up",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !change.Changed {
		t.Fatal("expected Changed=true")
	}
	if change.OldStatus != domain.OrderStatusProcessing || change.NewStatus != domain.OrderStatusShipping {
		t.Fatalf("unexpected change %s -> %s", change.OldStatus, change.NewStatus)
	}
	if change.UpdatedBy != "admin:7" {
		t.Fatalf("UpdatedBy = %q, want admin:7", change.UpdatedBy)
	}
	if !change.UpdatedAt.Equal(f.now) {
		t.Fatalf("UpdatedAt = %v, want %v", change.UpdatedAt, f.now)
	}

	if len(f.repo.updates) != 1 {
		t.Fatalf("expected 1 persisted update, got %d", len(f.repo.updates))
	}
	saved := f.repo.updates[0]
	if saved.Status != domain.OrderStatusShipping {
		t.Fatalf("persisted status = %s", saved.Status)
	}
	if saved.Version != 4 {
		t.Fatalf("persisted version = %d, want 4", saved.Version)
	}
	if saved.ShippedAt == nil || !saved.ShippedAt.Equal(f.now) {
		t.Fatalf("ShippedAt = %v, want %v", saved.ShippedAt, f.now)
	}
	if saved.StatusUpdatedBy != "admin:7" {
		t.Fatalf("StatusUpdatedBy = %q", saved.StatusUpdatedBy)
	}

	if len(f.history.records) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(f.history.records))
	}
	rec := f.history.records[0]
	if rec.from != domain.OrderStatusProcessing || rec.to != domain.OrderStatusShipping {
		t.Fatalf("history %s -> %s", rec.from, rec.to)
	}
	if rec.actor != "admin:7" || rec.note != "courier picked up" {
		t.Fatalf("history actor=%q note=%q", rec.actor, rec.note)
	}

	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(f.notifier.sent))
	}
	if f.notifier.sent[0].kind != domain.NotificationKindOrderStatusChange {
		t.Fatalf("notification kind = %s", f.notifier.sent[0].kind)
	}

	if len(f.events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.events.events))
	}
	event := f.events.events[0]
	if event.Type != "order.status_updated" {
		t.Fatalf("event type = %s", event.Type)
	}
	if event.PreviousStatus != domain.OrderStatusProcessing || event.CurrentStatus != domain.OrderStatusShipping {
		t.Fatalf("event statuses %s -> %s", event.PreviousStatus, event.CurrentStatus)
	}
}

func TestUpdateStatusInvalidTransitions(t *testing.T) {
	cases := []struct {
		from domain.OrderStatus
		to   domain.OrderStatus
	}{
		{domain.OrderStatusWaitingForPayment, domain.OrderStatusShipping},
		{domain.OrderStatusWaitingForPayment, domain.OrderStatusDelivered},
		{domain.OrderStatusProcessing, domain.OrderStatusWaitingForPayment},
		{domain.OrderStatusShipping, domain.OrderStatusProcessing},
		{domain.OrderStatusShipping, domain.OrderStatusWaitingForPayment},
		{domain.OrderStatusDelivered, domain.OrderStatusProcessing},
		{domain.OrderStatusDelivered, domain.OrderStatusShipping},
		{domain.OrderStatusDelivered, domain.OrderStatusCancelled},
		{domain.OrderStatusDelivered, domain.OrderStatusWaitingForPayment},
		{domain.OrderStatusCancelled, domain.OrderStatusProcessing},
		{domain.OrderStatusCancelled, domain.OrderStatusShipping},
		{domain.OrderStatusCancelled, domain.OrderStatusDelivered},
		{domain.OrderStatusCancelled, domain.OrderStatusWaitingForPayment},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			f := newOrderFixture(t, paidOrder(tc.from))
			_, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
				OrderID:   "ord_01",
				NewStatus: tc.to,
			})
			if !errors.Is(err, ErrOrderInvalidTransition) {
				t.Fatalf("err = %v, want ErrOrderInvalidTransition", err)
			}
			if len(f.repo.updates) != 0 {
				t.Fatal("rejected transition must not persist")
			}
			if len(f.history.records) != 0 || len(f.notifier.sent) != 0 || len(f.events.events) != 0 {
				t.Fatal("rejected transition must not emit side effects")
			}
		})
	}
}

func TestUpdateStatusPaymentGate(t *testing.T) {
	for _, payment := range []domain.PaymentStatus{
		domain.PaymentStatusPending,
		domain.PaymentStatusFailed,
		domain.PaymentStatusExpired,
		domain.PaymentStatusRefunded,
	} {
		t.Run(string(payment), func(t *testing.T) {
			order := unpaidOrder(domain.OrderStatusWaitingForPayment)
			order.PaymentStatus = payment
			f := newOrderFixture(t, order)

			_, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
				OrderID:   "ord_01",
				NewStatus: domain.OrderStatusProcessing,
			})
			if !errors.Is(err, ErrOrderPaymentRequired) {
				t.Fatalf("err = %v, want ErrOrderPaymentRequired", err)
			}
			if len(f.repo.updates) != 0 {
				t.Fatal("gated transition must not persist")
			}
		})
	}
}

func TestUpdateStatusCancellationBypassesPaymentGate(t *testing.T) {
	f := newOrderFixture(t, unpaidOrder(domain.OrderStatusWaitingForPayment))

	change, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		OrderID:   "ord_01",
		NewStatus: domain.OrderStatusCancelled,
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if change.NewStatus != domain.OrderStatusCancelled {
		t.Fatalf("NewStatus = %s", change.NewStatus)
	}
	saved := f.repo.updates[0]
	if saved.CancelledAt == nil {
		t.Fatal("CancelledAt not set")
	}
}

func TestUpdateStatusInvalidTransitionCheckedBeforePaymentGate(t *testing.T) {
	// An unpaid order asked for an unreachable status must report the missing
	// edge, not the payment gate. Gateway integrations branch on the code.
	f := newOrderFixture(t, unpaidOrder(domain.OrderStatusWaitingForPayment))

	_, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		OrderID:   "ord_01",
		NewStatus: domain.OrderStatusShipping,
	})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("err = %v, want ErrOrderInvalidTransition", err)
	}
	if errors.Is(err, ErrOrderPaymentRequired) {
		t.Fatal("payment gate must not mask the missing edge")
	}
}

func TestUpdateStatusSameStatusIsNoOp(t *testing.T) {
	statusUpdatedAt := time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC)
	order := paidOrder(domain.OrderStatusProcessing)
	order.StatusUpdatedAt = &statusUpdatedAt
	order.StatusUpdatedBy = "admin:2"
	f := newOrderFixture(t, order)

	change, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		OrderID:   "ord_01",
		NewStatus: domain.OrderStatusProcessing,
		Actor:     domain.Actor{Kind: domain.ActorKindAdmin, ID: "9"},
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if change.Changed {
		t.Fatal("same-status update must report Changed=false")
	}
	if change.UpdatedBy != "admin:2" {
		t.Fatalf("UpdatedBy = %q, want the stored actor", change.UpdatedBy)
	}
	if !change.UpdatedAt.Equal(statusUpdatedAt) {
		t.Fatalf("UpdatedAt = %v, want stored %v", change.UpdatedAt, statusUpdatedAt)
	}
	if len(f.repo.updates) != 0 {
		t.Fatal("no-op must not persist")
	}
	if len(f.history.records) != 0 || len(f.notifier.sent) != 0 || len(f.events.events) != 0 {
		t.Fatal("no-op must not emit side effects")
	}
}

func TestUpdateStatusActorPrecedence(t *testing.T) {
	t.Run("ambient actor from context", func(t *testing.T) {
		f := newOrderFixture(t, paidOrder(domain.OrderStatusProcessing), func(deps *OrderServiceDeps) {
			deps.ResolveActor = func(ctx context.Context) (domain.Actor, bool) {
				return domain.Actor{Kind: domain.ActorKindCustomer, ID: "42"}, true
			}
		})
		change, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
			OrderID:   "ord_01",
			NewStatus: domain.OrderStatusShipping,
		})
		if err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
		if change.UpdatedBy != "user:42" {
			t.Fatalf("UpdatedBy = %q, want user:42", change.UpdatedBy)
		}
	})

	t.Run("explicit actor wins over ambient", func(t *testing.T) {
		f := newOrderFixture(t, paidOrder(domain.OrderStatusProcessing), func(deps *OrderServiceDeps) {
			deps.ResolveActor = func(ctx context.Context) (domain.Actor, bool) {
				return domain.Actor{Kind: domain.ActorKindCustomer, ID: "42"}, true
			}
		})
		change, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
			OrderID:   "ord_01",
			NewStatus: domain.OrderStatusShipping,
			Actor:     domain.Actor{Kind: domain.ActorKindAdmin, ID: "1"},
		})
		if err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
		if change.UpdatedBy != "admin:1" {
			t.Fatalf("UpdatedBy = %q, want admin:1", change.UpdatedBy)
		}
	})

	t.Run("falls back to system", func(t *testing.T) {
		f := newOrderFixture(t, paidOrder(domain.OrderStatusProcessing))
		change, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
			OrderID:   "ord_01",
			NewStatus: domain.OrderStatusShipping,
		})
		if err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
		if change.UpdatedBy != "system:auto" {
			t.Fatalf("UpdatedBy = %q, want system:auto", change.UpdatedBy)
		}
	})
}

func TestUpdateStatusValidationErrors(t *testing.T) {
	f := newOrderFixture(t, paidOrder(domain.OrderStatusProcessing))

	if _, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		OrderID:   "  ",
		NewStatus: domain.OrderStatusShipping,
	}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("blank id: err = %v", err)
	}

	if _, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		OrderID:   "ord_01",
		NewStatus: domain.OrderStatus("sent_to_moon"),
	}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("unknown status: err = %v", err)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	f := newOrderFixture(t, domain.Order{})
	f.repo.findErr = stubRepoError{msg: "missing", notFound: true}

	_, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		OrderID:   "ord_zz",
		NewStatus: domain.OrderStatusProcessing,
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestUpdateStatusConflict(t *testing.T) {
	f := newOrderFixture(t, paidOrder(domain.OrderStatusProcessing))
	f.repo.updateErr = stubRepoError{msg: "version mismatch", conflict: true}

	_, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		OrderID:   "ord_01",
		NewStatus: domain.OrderStatusShipping,
	})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("err = %v, want ErrOrderConflict", err)
	}
	if len(f.history.records) != 0 || len(f.notifier.sent) != 0 || len(f.events.events) != 0 {
		t.Fatal("failed persist must not emit side effects")
	}
}

func TestUpdateStatusPublishFailureDoesNotFailTransition(t *testing.T) {
	f := newOrderFixture(t, paidOrder(domain.OrderStatusProcessing))
	f.events.err = errors.New("broker down")

	change, err := f.service.UpdateStatus(context.Background(), UpdateStatusCommand{
		OrderID:   "ord_01",
		NewStatus: domain.OrderStatusShipping,
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !change.Changed {
		t.Fatal("expected Changed=true despite publish failure")
	}
	if len(f.repo.updates) != 1 {
		t.Fatal("transition must still persist")
	}
}

func TestUpdatePaymentStatusPaidAutoAdvances(t *testing.T) {
	f := newOrderFixture(t, unpaidOrder(domain.OrderStatusWaitingForPayment))

	change, err := f.service.UpdatePaymentStatus(context.Background(), UpdatePaymentStatusCommand{
		OrderID:          "ord_01",
		NewPaymentStatus: domain.PaymentStatusPaid,
	})
	if err != nil {
		t.Fatalf("UpdatePaymentStatus: %v", err)
	}
	if !change.PaymentStatusChanged || !change.StatusChanged {
		t.Fatalf("change flags = %+v", change)
	}
	if change.NewOrderStatus != domain.OrderStatusProcessing {
		t.Fatalf("NewOrderStatus = %s, want processing", change.NewOrderStatus)
	}

	saved := f.repo.updates[0]
	if saved.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("persisted payment status = %s", saved.PaymentStatus)
	}
	if saved.PaidAt == nil || !saved.PaidAt.Equal(f.now) {
		t.Fatalf("PaidAt = %v, want %v", saved.PaidAt, f.now)
	}
	if saved.ProcessingStartedAt == nil {
		t.Fatal("ProcessingStartedAt not set by auto-advance")
	}
	if saved.StatusUpdatedBy != "payment_system" {
		t.Fatalf("StatusUpdatedBy = %q, want payment_system", saved.StatusUpdatedBy)
	}
	if saved.Version != 4 {
		t.Fatalf("persisted version = %d, want 4", saved.Version)
	}

	if len(f.history.records) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(f.history.records))
	}
	rec := f.history.records[0]
	if rec.from != domain.OrderStatusWaitingForPayment || rec.to != domain.OrderStatusProcessing {
		t.Fatalf("history %s -> %s", rec.from, rec.to)
	}
	if rec.actor != "payment_system" {
		t.Fatalf("history actor = %q", rec.actor)
	}
	if rec.note != "payment status: paid" {
		t.Fatalf("history note = %q", rec.note)
	}

	kinds := make([]domain.NotificationKind, 0, len(f.notifier.sent))
	for _, sent := range f.notifier.sent {
		kinds = append(kinds, sent.kind)
	}
	if len(kinds) != 2 || kinds[0] != domain.NotificationKindPaymentCompleted || kinds[1] != domain.NotificationKindOrderStatusChange {
		t.Fatalf("notification kinds = %v", kinds)
	}

	if len(f.events.events) != 2 {
		t.Fatalf("expected status + payment events, got %d", len(f.events.events))
	}
}

func TestUpdatePaymentStatusDuplicatePaidIsIdempotent(t *testing.T) {
	f := newOrderFixture(t, unpaidOrder(domain.OrderStatusWaitingForPayment))

	if _, err := f.service.UpdatePaymentStatus(context.Background(), UpdatePaymentStatusCommand{
		OrderID:          "ord_01",
		NewPaymentStatus: domain.PaymentStatusPaid,
	}); err != nil {
		t.Fatalf("first paid: %v", err)
	}
	firstPaidAt := *f.repo.order.PaidAt

	f.now = f.now.Add(5 * time.Minute)
	change, err := f.service.UpdatePaymentStatus(context.Background(), UpdatePaymentStatusCommand{
		OrderID:          "ord_01",
		NewPaymentStatus: domain.PaymentStatusPaid,
	})
	if err != nil {
		t.Fatalf("second paid: %v", err)
	}
	if change.PaymentStatusChanged {
		t.Fatal("duplicate paid must report PaymentStatusChanged=false")
	}
	if change.StatusChanged {
		t.Fatal("duplicate paid must not advance the order again")
	}
	if !f.repo.order.PaidAt.Equal(firstPaidAt) {
		t.Fatalf("PaidAt moved: %v -> %v", firstPaidAt, f.repo.order.PaidAt)
	}
	if f.repo.order.Status != domain.OrderStatusProcessing {
		t.Fatalf("status = %s, want processing", f.repo.order.Status)
	}

	// side effects from the first call only, plus one payment event per call
	if len(f.history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(f.history.records))
	}
	if len(f.notifier.sent) != 2 {
		t.Fatalf("notifications = %d, want 2", len(f.notifier.sent))
	}
}

func TestUpdatePaymentStatusFailedRevertsProcessing(t *testing.T) {
	for _, payment := range []domain.PaymentStatus{domain.PaymentStatusFailed, domain.PaymentStatusExpired} {
		t.Run(string(payment), func(t *testing.T) {
			f := newOrderFixture(t, paidOrder(domain.OrderStatusProcessing))

			change, err := f.service.UpdatePaymentStatus(context.Background(), UpdatePaymentStatusCommand{
				OrderID:          "ord_01",
				NewPaymentStatus: payment,
			})
			if err != nil {
				t.Fatalf("UpdatePaymentStatus: %v", err)
			}
			if !change.StatusChanged {
				t.Fatal("expected auto-revert")
			}
			if change.NewOrderStatus != domain.OrderStatusWaitingForPayment {
				t.Fatalf("NewOrderStatus = %s", change.NewOrderStatus)
			}
			if len(f.history.records) != 1 {
				t.Fatalf("history records = %d", len(f.history.records))
			}
			if f.history.records[0].to != domain.OrderStatusWaitingForPayment {
				t.Fatalf("history to = %s", f.history.records[0].to)
			}
		})
	}
}

func TestUpdatePaymentStatusFailedLeavesShippedOrdersAlone(t *testing.T) {
	f := newOrderFixture(t, paidOrder(domain.OrderStatusShipping))

	change, err := f.service.UpdatePaymentStatus(context.Background(), UpdatePaymentStatusCommand{
		OrderID:          "ord_01",
		NewPaymentStatus: domain.PaymentStatusFailed,
	})
	if err != nil {
		t.Fatalf("UpdatePaymentStatus: %v", err)
	}
	if change.StatusChanged {
		t.Fatal("failed payment must not revert a shipped order")
	}
	if f.repo.order.Status != domain.OrderStatusShipping {
		t.Fatalf("status = %s", f.repo.order.Status)
	}
	if f.repo.order.PaymentStatus != domain.PaymentStatusFailed {
		t.Fatalf("payment status = %s", f.repo.order.PaymentStatus)
	}
}

func TestUpdatePaymentStatusRefundedAfterDelivery(t *testing.T) {
	f := newOrderFixture(t, paidOrder(domain.OrderStatusDelivered))

	change, err := f.service.UpdatePaymentStatus(context.Background(), UpdatePaymentStatusCommand{
		OrderID:          "ord_01",
		NewPaymentStatus: domain.PaymentStatusRefunded,
		UpdatedBy:        "admin:3",
	})
	if err != nil {
		t.Fatalf("UpdatePaymentStatus: %v", err)
	}
	if change.StatusChanged {
		t.Fatal("refund must not move a delivered order")
	}
	if !change.PaymentStatusChanged {
		t.Fatal("expected PaymentStatusChanged=true")
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].kind != domain.NotificationKindPaymentStatusChange {
		t.Fatalf("notifications = %+v", f.notifier.sent)
	}
}

func TestUpdatePaymentStatusUnknownValue(t *testing.T) {
	f := newOrderFixture(t, paidOrder(domain.OrderStatusProcessing))

	_, err := f.service.UpdatePaymentStatus(context.Background(), UpdatePaymentStatusCommand{
		OrderID:          "ord_01",
		NewPaymentStatus: domain.PaymentStatus("settled"),
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("err = %v, want ErrOrderInvalidInput", err)
	}
}

func TestOrderLifecycleHappyPath(t *testing.T) {
	f := newOrderFixture(t, unpaidOrder(domain.OrderStatusWaitingForPayment))
	ctx := context.Background()

	if _, err := f.service.UpdatePaymentStatus(ctx, UpdatePaymentStatusCommand{
		OrderID:          "ord_01",
		NewPaymentStatus: domain.PaymentStatusPaid,
	}); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := f.service.UpdateStatus(ctx, UpdateStatusCommand{
		OrderID:   "ord_01",
		NewStatus: domain.OrderStatusShipping,
		Actor:     domain.Actor{Kind: domain.ActorKindAdmin, ID: "1"},
	}); err != nil {
		t.Fatalf("ship: %v", err)
	}
	if _, err := f.service.UpdateStatus(ctx, UpdateStatusCommand{
		OrderID:   "ord_01",
		NewStatus: domain.OrderStatusDelivered,
		Actor:     domain.Actor{Kind: domain.ActorKindAdmin, ID: "1"},
	}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	final := f.repo.order
	if final.Status != domain.OrderStatusDelivered {
		t.Fatalf("final status = %s", final.Status)
	}
	if final.PaidAt == nil || final.ProcessingStartedAt == nil || final.ShippedAt == nil || final.DeliveredAt == nil {
		t.Fatalf("missing lifecycle timestamps: %+v", final)
	}
	if final.Version != 6 {
		t.Fatalf("final version = %d, want 6", final.Version)
	}

	if len(f.history.records) != 3 {
		t.Fatalf("history records = %d, want 3", len(f.history.records))
	}
	trail := [][2]domain.OrderStatus{
		{domain.OrderStatusWaitingForPayment, domain.OrderStatusProcessing},
		{domain.OrderStatusProcessing, domain.OrderStatusShipping},
		{domain.OrderStatusShipping, domain.OrderStatusDelivered},
	}
	for i, want := range trail {
		got := f.history.records[i]
		if got.from != want[0] || got.to != want[1] {
			t.Fatalf("history[%d] = %s -> %s, want %s -> %s", i, got.from, got.to, want[0], want[1])
		}
	}

	// delivered is terminal
	if _, err := f.service.UpdateStatus(ctx, UpdateStatusCommand{
		OrderID:   "ord_01",
		NewStatus: domain.OrderStatusProcessing,
	}); !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("terminal transition err = %v", err)
	}
}

func TestGetOrder(t *testing.T) {
	f := newOrderFixture(t, paidOrder(domain.OrderStatusProcessing))

	order, err := f.service.GetOrder(context.Background(), "ord_01")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.ID != "ord_01" {
		t.Fatalf("order id = %q", order.ID)
	}

	if _, err := f.service.GetOrder(context.Background(), ""); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("blank id err = %v", err)
	}

	f.repo.findErr = stubRepoError{msg: "gone", notFound: true}
	if _, err := f.service.GetOrder(context.Background(), "ord_zz"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("missing order err = %v", err)
	}
}
