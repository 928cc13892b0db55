package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/bloom-bouquet/api/internal/domain"
	"github.com/bloom-bouquet/api/internal/platform/httpx"
	"github.com/bloom-bouquet/api/internal/platform/pagination"
	"github.com/bloom-bouquet/api/internal/platform/requestctx"
	"github.com/bloom-bouquet/api/internal/repositories"
	"github.com/bloom-bouquet/api/internal/services"
)

const maxOrderBodySize = 4 * 1024

var validOrderStatuses = func() map[domain.OrderStatus]struct{} {
	set := make(map[domain.OrderStatus]struct{}, len(domain.OrderStatuses))
	for _, status := range domain.OrderStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var validPaymentStatuses = func() map[domain.PaymentStatus]struct{} {
	set := make(map[domain.PaymentStatus]struct{}, len(domain.PaymentStatuses))
	for _, status := range domain.PaymentStatuses {
		set[status] = struct{}{}
	}
	return set
}()

type updateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type updatePaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
	UpdatedBy     string `json:"updated_by"`
}

// OrderHandlers exposes the admin order endpoints.
type OrderHandlers struct {
	orders          services.OrderService
	history         services.HistoryService
	paymentGuard    func(http.Handler) http.Handler
	defaultPageSize int
	maxPageSize     int
}

// OrderOption customises the order handlers.
type OrderOption func(*OrderHandlers)

// WithOrderPageLimits overrides the default and maximum list page sizes.
func WithOrderPageLimits(defaultSize, maxSize int) OrderOption {
	return func(h *OrderHandlers) {
		if defaultSize > 0 {
			h.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			h.maxPageSize = maxSize
		}
	}
}

// WithPaymentGuard wraps the payment callback endpoint with an extra
// middleware, typically the gateway service token check.
func WithPaymentGuard(guard func(http.Handler) http.Handler) OrderOption {
	return func(h *OrderHandlers) {
		h.paymentGuard = guard
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, history services.HistoryService, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{
		orders:          orders,
		history:         history,
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

// Routes registers the /admin/orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:status", h.updateStatus)
	if h.paymentGuard != nil {
		r.With(h.paymentGuard).Post("/{orderID}:payment", h.updatePaymentStatus)
		return
	}
	r.Post("/{orderID}:payment", h.updatePaymentStatus)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()

	statusFilters, ok := parseOrderStatusFilters(parseFilterValues(query["status"]))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status contains an unknown order status", http.StatusBadRequest))
		return
	}
	paymentFilters, ok := parsePaymentStatusFilters(parseFilterValues(query["payment_status"]))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment_status contains an unknown payment status", http.StatusBadRequest))
		return
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}

	pageSize, err := pagination.ParsePageSize(query)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be a positive integer", http.StatusBadRequest))
		return
	}

	filter := repositories.OrderListFilter{
		CustomerID:    strings.TrimSpace(query.Get("customer_id")),
		Status:        statusFilters,
		PaymentStatus: paymentFilters,
		DateRange:     dateRange,
		Pagination: domain.Pagination{
			PageSize:  pagination.Clamp(pageSize, h.defaultPageSize, h.maxPageSize),
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}

	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := buildOrderPayload(order)
	if h.history != nil {
		// The timeline is best-effort: write lag should not hide the order.
		entries, err := h.history.ListByOrder(ctx, orderID)
		if err != nil {
			requestctx.Logger(ctx).Warn("order history unavailable", zap.String("order_id", orderID), zap.Error(err))
		} else {
			payload.StatusHistory = buildHistoryEntries(entries)
		}
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: payload})
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req updateStatusRequest
	if !decodeRequestBody(ctx, w, r, &req) {
		return
	}

	status, ok := parseOrderStatus(req.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
		return
	}

	change, err := h.orders.UpdateStatus(ctx, services.UpdateStatusCommand{
		OrderID:   orderID,
		NewStatus: status,
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, statusChangeResponse{
		OrderID:   change.OrderID,
		OldStatus: string(change.OldStatus),
		NewStatus: string(change.NewStatus),
		UpdatedBy: change.UpdatedBy,
		UpdatedAt: formatTime(change.UpdatedAt),
		Changed:   change.Changed,
	})
}

func (h *OrderHandlers) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req updatePaymentRequest
	if !decodeRequestBody(ctx, w, r, &req) {
		return
	}

	status, ok := parsePaymentStatus(req.PaymentStatus)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment_status must be a valid payment status", http.StatusBadRequest))
		return
	}

	change, err := h.orders.UpdatePaymentStatus(ctx, services.UpdatePaymentStatusCommand{
		OrderID:          orderID,
		NewPaymentStatus: status,
		UpdatedBy:        strings.TrimSpace(req.UpdatedBy),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentChangeResponse{
		OrderID:              change.OrderID,
		OldPaymentStatus:     string(change.OldPaymentStatus),
		NewPaymentStatus:     string(change.NewPaymentStatus),
		OldOrderStatus:       string(change.OldOrderStatus),
		NewOrderStatus:       string(change.NewOrderStatus),
		PaymentStatusChanged: change.PaymentStatusChanged,
		OrderStatusChanged:   change.StatusChanged,
	})
}

func decodeRequestBody(ctx context.Context, w http.ResponseWriter, r *http.Request, target any) bool {
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func parseOrderStatus(raw string) (domain.OrderStatus, bool) {
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validOrderStatuses[status]; !ok {
		return "", false
	}
	return status, true
}

func parsePaymentStatus(raw string) (domain.PaymentStatus, bool) {
	status := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validPaymentStatuses[status]; !ok {
		return "", false
	}
	return status, true
}

func parseOrderStatusFilters(values []string) ([]domain.OrderStatus, bool) {
	if len(values) == 0 {
		return nil, true
	}
	statuses := make([]domain.OrderStatus, 0, len(values))
	for _, value := range values {
		status, ok := parseOrderStatus(value)
		if !ok {
			return nil, false
		}
		statuses = append(statuses, status)
	}
	return statuses, true
}

func parsePaymentStatusFilters(values []string) ([]domain.PaymentStatus, bool) {
	if len(values) == 0 {
		return nil, true
	}
	statuses := make([]domain.PaymentStatus, 0, len(values))
	for _, value := range values {
		status, ok := parsePaymentStatus(value)
		if !ok {
			return nil, false
		}
		statuses = append(statuses, status)
	}
	return statuses, true
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID            string `json:"id"`
	OrderNumber   string `json:"order_number"`
	CustomerID    string `json:"customer_id,omitempty"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	TotalAmount   int64  `json:"total_amount"`
	CreatedAt     string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID              string                `json:"id"`
	OrderNumber     string                `json:"order_number"`
	CustomerID      string                `json:"customer_id,omitempty"`
	Status          string                `json:"status"`
	PaymentStatus   string                `json:"payment_status"`
	Subtotal        int64                 `json:"subtotal"`
	ShippingCost    int64                 `json:"shipping_cost"`
	TotalAmount     int64                 `json:"total_amount"`
	Items           []orderItemPayload    `json:"items"`
	DeliveryAddress *addressPayload       `json:"delivery_address,omitempty"`
	Note            string                `json:"note,omitempty"`
	StatusUpdatedBy string                `json:"status_updated_by,omitempty"`
	CreatedAt       string                `json:"created_at"`
	UpdatedAt       string                `json:"updated_at"`
	StatusUpdatedAt string                `json:"status_updated_at,omitempty"`
	PaidAt          string                `json:"paid_at,omitempty"`
	ShippedAt       string                `json:"shipped_at,omitempty"`
	DeliveredAt     string                `json:"delivered_at,omitempty"`
	CancelledAt     string                `json:"cancelled_at,omitempty"`
	StatusHistory   []historyEntryPayload `json:"status_history,omitempty"`
}

type orderItemPayload struct {
	ProductRef string `json:"product_ref"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

type addressPayload struct {
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

type historyEntryPayload struct {
	ID         string `json:"id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Actor      string `json:"actor"`
	Note       string `json:"note,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type statusChangeResponse struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	UpdatedBy string `json:"updated_by"`
	UpdatedAt string `json:"updated_at"`
	Changed   bool   `json:"changed"`
}

type paymentChangeResponse struct {
	OrderID              string `json:"order_id"`
	OldPaymentStatus     string `json:"old_payment_status"`
	NewPaymentStatus     string `json:"new_payment_status"`
	OldOrderStatus       string `json:"old_order_status"`
	NewOrderStatus       string `json:"new_order_status"`
	PaymentStatusChanged bool   `json:"payment_status_changed"`
	OrderStatusChanged   bool   `json:"order_status_changed"`
}

func buildOrderSummary(order domain.Order) orderSummaryPayload {
	summary := orderSummaryPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   order.TotalAmount,
		CreatedAt:     formatTime(order.CreatedAt),
	}
	if order.CustomerID != nil {
		summary.CustomerID = *order.CustomerID
	}
	return summary
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		Subtotal:        order.Subtotal,
		ShippingCost:    order.ShippingCost,
		TotalAmount:     order.TotalAmount,
		Note:            order.Note,
		StatusUpdatedBy: order.StatusUpdatedBy,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		StatusUpdatedAt: formatTimePointer(order.StatusUpdatedAt),
		PaidAt:          formatTimePointer(order.PaidAt),
		ShippedAt:       formatTimePointer(order.ShippedAt),
		DeliveredAt:     formatTimePointer(order.DeliveredAt),
		CancelledAt:     formatTimePointer(order.CancelledAt),
	}
	if order.CustomerID != nil {
		payload.CustomerID = *order.CustomerID
	}
	payload.Items = make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}
	if order.DeliveryAddress != nil {
		address := addressPayload{
			Recipient:  order.DeliveryAddress.Recipient,
			Phone:      order.DeliveryAddress.Phone,
			Line1:      order.DeliveryAddress.Line1,
			City:       order.DeliveryAddress.City,
			PostalCode: order.DeliveryAddress.PostalCode,
		}
		if order.DeliveryAddress.Line2 != nil {
			address.Line2 = *order.DeliveryAddress.Line2
		}
		payload.DeliveryAddress = &address
	}
	return payload
}

func buildHistoryEntries(entries []domain.StatusHistoryEntry) []historyEntryPayload {
	if len(entries) == 0 {
		return nil
	}
	result := make([]historyEntryPayload, 0, len(entries))
	for _, entry := range entries {
		result = append(result, historyEntryPayload{
			ID:         entry.ID,
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			Actor:      entry.Actor,
			Note:       entry.Note,
			CreatedAt:  formatTime(entry.CreatedAt),
		})
	}
	return result
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderPaymentRequired):
		httpx.WriteError(ctx, w, httpx.NewError("payment_required", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order changed concurrently; retry", http.StatusConflict))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order storage unavailable; retry later", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
