package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/bloom-bouquet/api/internal/domain"
	platform "github.com/bloom-bouquet/api/internal/platform/firestore"
	"github.com/bloom-bouquet/api/internal/platform/pagination"
	"github.com/bloom-bouquet/api/internal/repositories"
)

type notificationRepository struct {
	base     *platform.BaseRepository[notificationDoc]
	provider *platform.Provider
}

func newNotificationRepository(provider *platform.Provider) *notificationRepository {
	return &notificationRepository{
		base:     platform.NewBaseRepository[notificationDoc](provider, collectionNotifications, nil),
		provider: provider,
	}
}

var _ repositories.NotificationRepository = (*notificationRepository)(nil)

func (r *notificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	return r.base.Set(ctx, notification.ID, encodeNotification(notification))
}

func (r *notificationRepository) ListForRecipient(ctx context.Context, recipient repositories.RecipientRef, pager domain.Pagination) (domain.CursorPage[domain.Notification], error) {
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Notification]{}, platform.WrapError(r.base.Op("list"), err)
	}

	pageSize := pagination.Clamp(pager.PageSize, pagination.DefaultPageSize, pagination.DefaultMaxPageSize)

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.
			Where("recipient_kind", "==", string(recipient.Kind)).
			Where("recipient_ref", "==", recipient.ID).
			OrderBy("created_at", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if len(cursor.StartAfter) > 0 {
			query = query.StartAfter(cursor.StartAfter...)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Notification]{}, err
	}

	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}

	items := make([]domain.Notification, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeNotification(doc.ID, doc.Data))
	}

	page := domain.CursorPage[domain.Notification]{Items: items}
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.Data.CreatedAt, last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Notification]{}, platform.WrapError(r.base.Op("list"), err)
		}
		page.NextPageToken = token
	}
	return page, nil
}

// MarkRead flips the unread flag, verifying the notification belongs to the
// recipient so one account cannot clear another's feed.
func (r *notificationRepository) MarkRead(ctx context.Context, recipient repositories.RecipientRef, notificationID string, readAt time.Time) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, notificationID)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return platform.WrapError(r.base.Op("mark_read"), err)
		}
		doc, err := r.base.Decode(snapshot)
		if err != nil {
			return err
		}
		if doc.RecipientKind != string(recipient.Kind) || doc.RecipientRef != recipient.ID {
			return platform.NewNotFound(r.base.Op("mark_read"),
				fmt.Errorf("notification %s does not belong to %s:%s", notificationID, recipient.Kind, recipient.ID))
		}
		if !doc.Unread {
			return nil
		}
		err = tx.Update(ref, []firestore.Update{
			{Path: "unread", Value: false},
			{Path: "read_at", Value: readAt},
		})
		return platform.WrapError(r.base.Op("mark_read"), err)
	})
}
