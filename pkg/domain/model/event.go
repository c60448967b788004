package model

type OrderCreated struct {
	OrderID    int64   `json:"order_id"`
	ClientID   int64   `json:"client_id"`
	ItemCount  int     `json:"item_count"`
	TotalPrice float64 `json:"total_price"`
}

func (e OrderCreated) Type() string { return "OrderCreated" }

type OrderUpdated struct {
	OrderID    int64   `json:"order_id"`
	ItemCount  int     `json:"item_count"`
	TotalPrice float64 `json:"total_price"`
}

func (e OrderUpdated) Type() string { return "OrderUpdated" }

type OrderDeleted struct {
	OrderID int64 `json:"order_id"`
}

func (e OrderDeleted) Type() string { return "OrderDeleted" }
