package httpx

import (
	"time"

	"github.com/jcmexdev/storefront-checkout/internal/checkout/domain"
)

type PlaceOrderRequest struct {
	StoreID       int64               `json:"store_id"`
	CustomerName  string              `json:"customer_name"`
	CustomerPhone string              `json:"customer_phone"`
	CustomerEmail string              `json:"customer_email,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	VoucherCode   string              `json:"voucher_code,omitempty"`
	Items         []PlaceOrderItemDTO `json:"items"`
}

type PlaceOrderItemDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type PlacementResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Subtotal    int64  `json:"subtotal"`
	Discount    int64  `json:"discount"`
	Total       int64  `json:"total"`
}

type OrderResponse struct {
	OrderNumber   string                 `json:"order_number"`
	StoreID       int64                  `json:"store_id"`
	CustomerName  string                 `json:"customer_name"`
	CustomerPhone string                 `json:"customer_phone"`
	CustomerEmail string                 `json:"customer_email,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
	Status        string                 `json:"status"`
	Subtotal      int64                  `json:"subtotal"`
	Discount      int64                  `json:"discount"`
	Total         int64                  `json:"total"`
	VoucherCode   string                 `json:"voucher_code,omitempty"`
	Items         []OrderItemResponse    `json:"items"`
	History       []StatusChangeResponse `json:"history"`
	CreatedAt     string                 `json:"created_at"`
}

type OrderItemResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

type StatusChangeResponse struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
	Actor  string `json:"actor,omitempty"`
	At     string `json:"at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

func mapOrderToResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		OrderNumber:   o.Number,
		StoreID:       o.StoreID,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		CustomerEmail: o.CustomerEmail,
		Notes:         o.Notes,
		Status:        string(o.Status),
		Subtotal:      o.Subtotal,
		Discount:      o.Discount,
		Total:         o.Total,
		VoucherCode:   o.VoucherCode,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			SKU:       it.SKU,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		})
	}
	for _, h := range o.History {
		resp.History = append(resp.History, StatusChangeResponse{
			Status: string(h.Status),
			Note:   h.Note,
			Actor:  h.Actor,
			At:     h.At.Format(time.RFC3339),
		})
	}
	return resp
}
