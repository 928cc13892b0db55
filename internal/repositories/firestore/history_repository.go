package firestore

import (
	"context"

	"cloud.google.com/go/firestore"

	domain "github.com/bloom-bouquet/api/internal/domain"
	platform "github.com/bloom-bouquet/api/internal/platform/firestore"
	"github.com/bloom-bouquet/api/internal/repositories"
)

type historyRepository struct {
	base *platform.BaseRepository[historyDoc]
}

func newHistoryRepository(provider *platform.Provider) *historyRepository {
	return &historyRepository{
		base: platform.NewBaseRepository[historyDoc](provider, collectionStatusHistory, nil),
	}
}

var _ repositories.StatusHistoryRepository = (*historyRepository)(nil)

func (r *historyRepository) Append(ctx context.Context, entry domain.StatusHistoryEntry) error {
	return r.base.Set(ctx, entry.ID, encodeHistory(entry))
}

func (r *historyRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.StatusHistoryEntry, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("order_id", "==", orderID).
			OrderBy("created_at", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.StatusHistoryEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, decodeHistory(doc.ID, doc.Data))
	}
	return entries, nil
}
