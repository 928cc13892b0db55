package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/bloom-bouquet/api/internal/domain"
	"github.com/bloom-bouquet/api/internal/repositories"
)

// History service errors.
var (
	ErrHistoryInvalidInput = errors.New("status history: invalid input")
	ErrHistoryUnavailable  = errors.New("status history: storage unavailable")
)

// HistoryServiceDeps wires repository and platform dependencies.
type HistoryServiceDeps struct {
	History repositories.StatusHistoryRepository

	IDGenerator func() string
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type historyService struct {
	history repositories.StatusHistoryRepository
	newID   func() string
	now     func() time.Time
	log     func(ctx context.Context, event string, fields map[string]any)
}

// NewHistoryService builds the status history recorder.
func NewHistoryService(deps HistoryServiceDeps) HistoryService {
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
	return &historyService{
		history: deps.History,
		newID:   newID,
		now:     now,
		log:     log,
	}
}

// Record appends an audit entry for a committed transition. The append is
// best effort: a storage failure is logged and never surfaced to the caller,
// since the transition itself has already been persisted.
func (s *historyService) Record(ctx context.Context, order Order, from, to OrderStatus, actor string, note string) {
	if order.ID == "" {
		return
	}
	entry := domain.StatusHistoryEntry{
		ID:         s.newID(),
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Note:       note,
		CreatedAt:  s.now(),
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.log(ctx, "status_history.append_failed", map[string]any{
			"order_id": order.ID,
			"from":     string(from),
			"to":       string(to),
			"error":    err.Error(),
		})
	}
}

// ListByOrder returns the order's transition trail, oldest first.
func (s *historyService) ListByOrder(ctx context.Context, orderID string) ([]StatusHistoryEntry, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrHistoryInvalidInput)
	}
	entries, err := s.history.ListByOrder(ctx, orderID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			return nil, fmt.Errorf("%w: %s", ErrHistoryUnavailable, err.Error())
		}
		return nil, err
	}
	return entries, nil
}
