package transport

import (
	"fmt"

	"confectionery/pkg/domain/model"
)

// Pointer fields tell a missing value apart from an explicit zero.
type orderItemRequest struct {
	ProductID *int64   `json:"produto_id"`
	Quantity  *float64 `json:"quantidade"`
	UnitPrice *float64 `json:"preco_unitario"`
	OrderID   *int64   `json:"pedido_id"`
}

type createOrderRequest struct {
	ClientID   *int64             `json:"cliente_id"`
	Items      []orderItemRequest `json:"itens_pedido"`
	TotalPrice *float64           `json:"preco_total"`
}

type updateOrderRequest struct {
	ClientID   *int64              `json:"cliente_id"`
	Items      *[]orderItemRequest `json:"itens_pedido"`
	ItemCount  *float64            `json:"quantidade"`
	TotalPrice *float64            `json:"preco_total"`
}

type itemResponse struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"pedido_id"`
	ProductID int64   `json:"produto_id"`
	Quantity  float64 `json:"quantidade"`
	UnitPrice float64 `json:"preco_unitario"`
}

type saleResponse struct {
	ID            int64  `json:"id"`
	OrderID       int64  `json:"pedido_id"`
	PaymentMethod string `json:"forma_pagamento"`
	Status        string `json:"status_venda"`
}

type orderResponse struct {
	ID         int64          `json:"id"`
	ClientID   int64          `json:"cliente_id"`
	ItemCount  int            `json:"quantidade"`
	TotalPrice float64        `json:"preco_total"`
	Items      []itemResponse `json:"itens_pedido"`
	Sale       *saleResponse  `json:"venda"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// toDraft checks presence only; value rules belong to the order service.
// preco_total and pedido_id are accepted and ignored.
func (req createOrderRequest) toDraft() (model.OrderDraft, error) {
	if req.ClientID == nil {
		return model.OrderDraft{}, model.NewValidationError("cliente_id", "is required")
	}
	if req.Items == nil {
		return model.OrderDraft{}, model.NewValidationError("itens_pedido", "is required")
	}
	lines, err := toLines(req.Items)
	if err != nil {
		return model.OrderDraft{}, err
	}
	return model.OrderDraft{ClientID: *req.ClientID, Lines: lines}, nil
}

func (req updateOrderRequest) toPatch() (model.OrderPatch, error) {
	if req.TotalPrice != nil {
		return model.OrderPatch{}, model.NewValidationError("preco_total", "is derived from the items and cannot be changed")
	}
	if req.ItemCount != nil {
		return model.OrderPatch{}, model.NewValidationError("quantidade", "is derived from the items and cannot be changed")
	}

	patch := model.OrderPatch{ClientID: req.ClientID}
	if req.Items != nil {
		lines, err := toLines(*req.Items)
		if err != nil {
			return model.OrderPatch{}, err
		}
		patch.Lines = &lines
	}
	return patch, nil
}

func toLines(items []orderItemRequest) ([]model.OrderLine, error) {
	lines := make([]model.OrderLine, 0, len(items))
	for i, item := range items {
		switch {
		case item.ProductID == nil:
			return nil, model.NewValidationError(itemPath(i, "produto_id"), "is required")
		case item.Quantity == nil:
			return nil, model.NewValidationError(itemPath(i, "quantidade"), "is required")
		case item.UnitPrice == nil:
			return nil, model.NewValidationError(itemPath(i, "preco_unitario"), "is required")
		}
		lines = append(lines, model.OrderLine{
			ProductID: *item.ProductID,
			Quantity:  *item.Quantity,
			UnitPrice: *item.UnitPrice,
		})
	}
	return lines, nil
}

func itemPath(i int, field string) string {
	return fmt.Sprintf("itens_pedido[%d].%s", i, field)
}

func newOrderResponse(order *model.Order) orderResponse {
	resp := orderResponse{
		ID:         order.ID,
		ClientID:   order.ClientID,
		ItemCount:  order.ItemCount,
		TotalPrice: order.TotalPrice,
		Items:      make([]itemResponse, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, itemResponse{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if order.Sale != nil {
		resp.Sale = &saleResponse{
			ID:            order.Sale.ID,
			OrderID:       order.Sale.OrderID,
			PaymentMethod: order.Sale.PaymentMethod,
			Status:        order.Sale.Status,
		}
	}
	return resp
}
