package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/storefront-checkout/internal/checkout/app"
	"github.com/jcmexdev/storefront-checkout/internal/checkout/domain"
	"github.com/jcmexdev/storefront-checkout/internal/pkg/cache"
)

// OrderService is the slice of the application layer the HTTP handler
// needs. app.Placer satisfies it.
type OrderService interface {
	PlaceOrder(ctx context.Context, in app.PlaceOrderInput) (*app.PlacementResult, error)
	GetOrder(ctx context.Context, number string) (*domain.Order, error)
}

// Handler handles incoming HTTP requests for the checkout surface.
type Handler struct {
	orders OrderService
	idem   cache.Cache // nil-safe: idempotent replay skipped if nil
}

// NewHandler initializes the handler. idem may be nil — in that case the
// Idempotency-Key header is ignored and every POST places a fresh order.
func NewHandler(orders OrderService, idem cache.Cache) *Handler {
	return &Handler{orders: orders, idem: idem}
}

// PlaceOrder receives the cart, runs the placement transaction, and
// returns the committed order identifiers.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), "")
		return
	}

	if req.StoreID <= 0 || req.CustomerName == "" || req.CustomerPhone == "" || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request",
			"store_id, customer_name, customer_phone and items are required", "")
		return
	}

	items := make([]app.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_item",
				"product_id and quantity must be positive", "items")
			return
		}
		items = append(items, app.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	ctx := r.Context()
	idemKey, _ := ctx.Value(ContextKeyIdempotencyKey).(string)

	if rec, ok := h.replay(ctx, idemKey); ok {
		slog.InfoContext(ctx, "replaying idempotent placement", "order_number", rec.OrderNumber)
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, http.StatusOK, PlacementResponse(rec))
		return
	}

	slog.InfoContext(ctx, "placing order",
		"store_id", req.StoreID,
		"lines", len(req.Items),
		"voucher", req.VoucherCode != "",
	)

	result, err := h.orders.PlaceOrder(ctx, app.PlaceOrderInput{
		StoreID:       req.StoreID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Notes:         req.Notes,
		VoucherCode:   req.VoucherCode,
		Items:         items,
	})
	if err != nil {
		writePlacementError(w, r, err)
		return
	}

	h.remember(ctx, idemKey, result)

	writeJSON(w, http.StatusCreated, PlacementResponse{
		OrderID:     result.OrderID,
		OrderNumber: result.OrderNumber,
		Subtotal:    result.Subtotal,
		Discount:    result.Discount,
		Total:       result.Total,
	})
}

// GetOrderByNumber retrieves a committed order by its human-readable number.
func (h *Handler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if number == "" {
		writeError(w, http.StatusBadRequest, "order_number_required", "", "")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), number)
	if err != nil {
		writePlacementError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func (h *Handler) replay(ctx context.Context, key string) (cache.PlacementRecord, bool) {
	if h.idem == nil || key == "" {
		return cache.PlacementRecord{}, false
	}
	rec, ok, err := h.idem.LookupPlacement(ctx, key)
	if err != nil {
		// A cache outage must not block order placement.
		slog.WarnContext(ctx, "idempotency lookup failed, placing fresh order", "error", err)
		return cache.PlacementRecord{}, false
	}
	return rec, ok
}

func (h *Handler) remember(ctx context.Context, key string, result *app.PlacementResult) {
	if h.idem == nil || key == "" {
		return
	}
	err := h.idem.StorePlacement(ctx, key, cache.PlacementRecord{
		OrderID:     result.OrderID,
		OrderNumber: result.OrderNumber,
		Subtotal:    result.Subtotal,
		Discount:    result.Discount,
		Total:       result.Total,
	})
	if err != nil {
		slog.WarnContext(ctx, "idempotency store failed", "order_number", result.OrderNumber, "error", err)
	}
}

// writePlacementError maps the error taxonomy onto HTTP statuses. The
// deterministic kinds get 4xx; conflict gets 503 + Retry-After because the
// client should retry the identical request.
func writePlacementError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *domain.PlacementError
	if !errors.As(err, &pe) {
		pe = &domain.PlacementError{Kind: domain.KindInternal, Message: "internal error"}
	}

	switch kind := pe.Kind; kind {
	case domain.KindNotFound:
		writeError(w, http.StatusNotFound, string(kind), pe.Message, pe.Field)
	case domain.KindInsufficientStock:
		writeError(w, http.StatusConflict, string(kind), pe.Message, pe.Field)
	case domain.KindInvalidVoucher:
		writeError(w, http.StatusUnprocessableEntity, string(kind), pe.Message, pe.Field)
	case domain.KindConflict:
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, string(kind), pe.Message, pe.Field)
	default:
		slog.ErrorContext(r.Context(), "placement failed", "error", err)
		writeError(w, http.StatusInternalServerError, string(domain.KindInternal), "internal error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg, field string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
		Field:   field,
	})
}
