package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	domain "github.com/bloom-bouquet/api/internal/domain"
	platform "github.com/bloom-bouquet/api/internal/platform/firestore"
	"github.com/bloom-bouquet/api/internal/platform/pagination"
	"github.com/bloom-bouquet/api/internal/repositories"
)

type orderRepository struct {
	base     *platform.BaseRepository[orderDoc]
	provider *platform.Provider
}

func newOrderRepository(provider *platform.Provider) *orderRepository {
	return &orderRepository{
		base:     platform.NewBaseRepository[orderDoc](provider, collectionOrders, nil),
		provider: provider,
	}
}

var _ repositories.OrderRepository = (*orderRepository)(nil)

func (r *orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if tx, ok := txFromContext(ctx); ok {
		return r.findByIDTx(ctx, tx, orderID)
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

func (r *orderRepository) findByIDTx(ctx context.Context, tx *firestore.Transaction, orderID string) (domain.Order, error) {
	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	snapshot, err := tx.Get(ref)
	if err != nil {
		return domain.Order{}, platform.WrapError(r.base.Op("get"), err)
	}
	doc, err := r.base.Decode(snapshot)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(snapshot.Ref.ID, doc), nil
}

func (r *orderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("order_number", "==", orderNumber).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, platform.NewNotFound(r.base.Op("find_by_number"),
			fmt.Errorf("order %q does not exist", orderNumber))
	}
	return decodeOrder(docs[0].ID, docs[0].Data), nil
}

// Update writes the order guarded by optimistic concurrency: the stored
// version must equal order.Version-1 or the write fails with a conflict.
// When the context carries an active transaction the compare and the write
// both happen inside it.
func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	if tx, ok := txFromContext(ctx); ok {
		return r.updateTx(ctx, tx, order)
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return r.updateTx(ctx, tx, order)
	})
}

func (r *orderRepository) updateTx(ctx context.Context, tx *firestore.Transaction, order domain.Order) error {
	ref, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	snapshot, err := tx.Get(ref)
	if err != nil {
		return platform.WrapError(r.base.Op("update"), err)
	}
	stored, err := r.base.Decode(snapshot)
	if err != nil {
		return err
	}
	if stored.Version != order.Version-1 {
		return platform.NewConflict(r.base.Op("update"),
			fmt.Errorf("order %s version %d does not match expected %d", order.ID, stored.Version, order.Version-1))
	}
	if err := tx.Set(ref, encodeOrder(order)); err != nil {
		return platform.WrapError(r.base.Op("update"), err)
	}
	return nil
}

func (r *orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, platform.WrapError(r.base.Op("list"), err)
	}

	pageSize := pagination.Clamp(filter.Pagination.PageSize, pagination.DefaultPageSize, pagination.DefaultMaxPageSize)

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.CustomerID != "" {
			query = query.Where("customer_id", "==", filter.CustomerID)
		}
		if len(filter.Status) > 0 {
			query = query.Where("status", "in", statusStrings(filter.Status))
		}
		if len(filter.PaymentStatus) > 0 {
			query = query.Where("payment_status", "in", paymentStrings(filter.PaymentStatus))
		}
		if filter.DateRange.From != nil {
			query = query.Where("created_at", ">=", *filter.DateRange.From)
		}
		if filter.DateRange.To != nil {
			query = query.Where("created_at", "<=", *filter.DateRange.To)
		}
		query = query.
			OrderBy("created_at", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if len(cursor.StartAfter) > 0 {
			query = query.StartAfter(cursor.StartAfter...)
		}
		// one extra row to detect whether a next page exists
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}

	page := domain.CursorPage[domain.Order]{Items: orders}
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.Data.CreatedAt, last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, platform.WrapError(r.base.Op("list"), err)
		}
		page.NextPageToken = token
	}
	return page, nil
}

func statusStrings(statuses []domain.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

func paymentStrings(statuses []domain.PaymentStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
