package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/bloom-bouquet/api/internal/domain"
	"github.com/bloom-bouquet/api/internal/platform/httpx"
	"github.com/bloom-bouquet/api/internal/platform/pagination"
	"github.com/bloom-bouquet/api/internal/platform/requestctx"
	"github.com/bloom-bouquet/api/internal/repositories"
	"github.com/bloom-bouquet/api/internal/services"
)

// NotificationHandlers exposes the per-recipient notification feed.
type NotificationHandlers struct {
	notifications   services.NotificationService
	defaultPageSize int
	maxPageSize     int
}

// NotificationOption customises the notification handlers.
type NotificationOption func(*NotificationHandlers)

// WithNotificationPageLimits overrides the default and maximum list page sizes.
func WithNotificationPageLimits(defaultSize, maxSize int) NotificationOption {
	return func(h *NotificationHandlers) {
		if defaultSize > 0 {
			h.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			h.maxPageSize = maxSize
		}
	}
}

// NewNotificationHandlers constructs a new NotificationHandlers instance.
func NewNotificationHandlers(notifications services.NotificationService, opts ...NotificationOption) *NotificationHandlers {
	h := &NotificationHandlers{
		notifications:   notifications,
		defaultPageSize: pagination.DefaultPageSize,
		maxPageSize:     pagination.DefaultMaxPageSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /admin/notifications endpoints.
func (h *NotificationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listNotifications)
	r.Post("/{notificationID}:read", h.markRead)
}

func (h *NotificationHandlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.notifications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service unavailable", http.StatusServiceUnavailable))
		return
	}

	recipient, ok := recipientFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "caller identity required", http.StatusUnauthorized))
		return
	}

	query := r.URL.Query()
	pageSize, err := pagination.ParsePageSize(query)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be a positive integer", http.StatusBadRequest))
		return
	}

	page, err := h.notifications.ListForRecipient(ctx, recipient, domain.Pagination{
		PageSize:  pagination.Clamp(pageSize, h.defaultPageSize, h.maxPageSize),
		PageToken: strings.TrimSpace(query.Get("page_token")),
	})
	if err != nil {
		writeNotificationError(ctx, w, err)
		return
	}

	items := make([]notificationPayload, 0, len(page.Items))
	for _, notification := range page.Items {
		items = append(items, buildNotificationPayload(notification))
	}

	writeJSONResponse(w, http.StatusOK, notificationListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *NotificationHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.notifications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service unavailable", http.StatusServiceUnavailable))
		return
	}

	recipient, ok := recipientFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "caller identity required", http.StatusUnauthorized))
		return
	}

	notificationID := strings.TrimSpace(chi.URLParam(r, "notificationID"))
	if notificationID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "notification id is required", http.StatusBadRequest))
		return
	}

	if err := h.notifications.MarkRead(ctx, recipient, notificationID); err != nil {
		writeNotificationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"notification_id": notificationID,
		"read":            true,
	})
}

// recipientFromContext maps the ambient actor to a notification feed owner.
func recipientFromContext(ctx context.Context) (repositories.RecipientRef, bool) {
	actor, ok := requestctx.Actor(ctx)
	if !ok || strings.TrimSpace(actor.ID) == "" {
		return repositories.RecipientRef{}, false
	}
	switch actor.Kind {
	case domain.ActorKindAdmin:
		return repositories.RecipientRef{Kind: domain.RecipientKindAdmin, ID: actor.ID}, true
	case domain.ActorKindCustomer:
		return repositories.RecipientRef{Kind: domain.RecipientKindCustomer, ID: actor.ID}, true
	default:
		return repositories.RecipientRef{}, false
	}
}

type notificationListResponse struct {
	Items         []notificationPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type notificationPayload struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Unread    bool           `json:"unread"`
	CreatedAt string         `json:"created_at"`
}

func buildNotificationPayload(notification domain.Notification) notificationPayload {
	return notificationPayload{
		ID:        notification.ID,
		Kind:      string(notification.Kind),
		Title:     notification.Title,
		Message:   notification.Message,
		Data:      notification.Data,
		Unread:    notification.Unread,
		CreatedAt: formatTime(notification.CreatedAt),
	}
}

func writeNotificationError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrNotificationInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotificationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("notification_not_found", "notification not found", http.StatusNotFound))
	case errors.Is(err, services.ErrNotificationUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("notification_unavailable", "notification storage unavailable; retry later", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("notification_error", "failed to process notification request", http.StatusInternalServerError))
	}
}
