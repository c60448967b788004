package storage

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"confectionery/pkg/domain/model"
)

type orderRow struct {
	ID         int64   `db:"id"`
	ClientID   int64   `db:"cliente_id"`
	ItemCount  int     `db:"quantidade"`
	TotalPrice float64 `db:"preco_total"`
}

type itemRow struct {
	ID        int64   `db:"id"`
	OrderID   int64   `db:"pedido_id"`
	ProductID int64   `db:"produto_id"`
	Quantity  float64 `db:"quantidade"`
	UnitPrice float64 `db:"preco_unitario"`
}

type saleRow struct {
	ID            int64  `db:"id"`
	OrderID       int64  `db:"pedido_id"`
	PaymentMethod string `db:"forma_pagamento"`
	Status        string `db:"status_venda"`
}

type orderRepository struct {
	q sqlx.ExtContext
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	id, err := insertReturningID(ctx, r.q,
		`INSERT INTO pedidos (cliente_id, quantidade, preco_total) VALUES (?, ?, ?)`,
		order.ClientID, order.ItemCount, order.TotalPrice,
	)
	if err != nil {
		return classify(err, "insert order")
	}
	order.ID = id
	return nil
}

func (r *orderRepository) AddItems(ctx context.Context, orderID int64, items []model.Item) error {
	for i := range items {
		id, err := insertReturningID(ctx, r.q,
			`INSERT INTO itens_pedido (pedido_id, produto_id, quantidade, preco_unitario) VALUES (?, ?, ?, ?)`,
			orderID, items[i].ProductID, items[i].Quantity, items[i].UnitPrice,
		)
		if err != nil {
			return classify(err, "insert order item")
		}
		items[i].ID = id
		items[i].OrderID = orderID
	}
	return nil
}

func (r *orderRepository) DeleteItems(ctx context.Context, orderID int64) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`DELETE FROM itens_pedido WHERE pedido_id = ?`), orderID)
	return classify(err, "delete order items")
}

func (r *orderRepository) UpdateHeader(ctx context.Context, order *model.Order) error {
	_, err := r.q.ExecContext(ctx,
		r.q.Rebind(`UPDATE pedidos SET cliente_id = ?, quantidade = ?, preco_total = ? WHERE id = ?`),
		order.ClientID, order.ItemCount, order.TotalPrice, order.ID,
	)
	return classify(err, "update order")
}

func (r *orderRepository) Find(ctx context.Context, id int64) (*model.Order, error) {
	var row orderRow
	err := sqlx.GetContext(ctx, r.q, &row,
		r.q.Rebind(`SELECT id, cliente_id, quantidade, preco_total FROM pedidos WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(model.ErrOrderNotFound, "order %d", id)
	}
	if err != nil {
		return nil, classify(err, "select order")
	}

	orders, err := r.hydrate(ctx, []orderRow{row})
	if err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *orderRepository) List(ctx context.Context, offset, limit int) ([]model.Order, error) {
	var rows []orderRow
	err := sqlx.SelectContext(ctx, r.q, &rows,
		r.q.Rebind(`SELECT id, cliente_id, quantidade, preco_total FROM pedidos ORDER BY id LIMIT ? OFFSET ?`),
		limit, offset)
	if err != nil {
		return nil, classify(err, "select orders")
	}
	return r.hydrate(ctx, rows)
}

func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	for _, query := range []string{
		`DELETE FROM vendas WHERE pedido_id = ?`,
		`DELETE FROM pedido_idempotencia WHERE pedido_id = ?`,
		`DELETE FROM itens_pedido WHERE pedido_id = ?`,
	} {
		if _, err := r.q.ExecContext(ctx, r.q.Rebind(query), id); err != nil {
			return classify(err, "delete order dependents")
		}
	}

	result, err := r.q.ExecContext(ctx, r.q.Rebind(`DELETE FROM pedidos WHERE id = ?`), id)
	if err != nil {
		return classify(err, "delete order")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return classify(err, "delete order")
	}
	if affected == 0 {
		return errors.Wrapf(model.ErrOrderNotFound, "order %d", id)
	}
	return nil
}

type idempotencyRow struct {
	OrderID     int64  `db:"pedido_id"`
	Fingerprint string `db:"hash_requisicao"`
}

func (r *orderRepository) BindIdempotencyKey(ctx context.Context, key, fingerprint string, orderID int64) error {
	_, err := r.q.ExecContext(ctx,
		r.q.Rebind(`INSERT INTO pedido_idempotencia (chave, hash_requisicao, pedido_id) VALUES (?, ?, ?)`),
		key, fingerprint, orderID)
	return classify(err, "bind idempotency key")
}

func (r *orderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*model.Order, string, error) {
	var row idempotencyRow
	err := sqlx.GetContext(ctx, r.q, &row,
		r.q.Rebind(`SELECT pedido_id, hash_requisicao FROM pedido_idempotencia WHERE chave = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", errors.Wrap(model.ErrOrderNotFound, "idempotency key")
	}
	if err != nil {
		return nil, "", classify(err, "select idempotency key")
	}
	order, err := r.Find(ctx, row.OrderID)
	if err != nil {
		return nil, "", err
	}
	return order, row.Fingerprint, nil
}

// hydrate loads items and sales for all rows with one IN query per table.
func (r *orderRepository) hydrate(ctx context.Context, rows []orderRow) ([]model.Order, error) {
	orders := make([]model.Order, 0, len(rows))
	if len(rows) == 0 {
		return orders, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var items []itemRow
	if err := r.selectIn(ctx, &items,
		`SELECT id, pedido_id, produto_id, quantidade, preco_unitario FROM itens_pedido WHERE pedido_id IN (?) ORDER BY pedido_id, id`,
		ids); err != nil {
		return nil, classify(err, "select order items")
	}

	var sales []saleRow
	if err := r.selectIn(ctx, &sales,
		`SELECT id, pedido_id, forma_pagamento, status_venda FROM vendas WHERE pedido_id IN (?)`,
		ids); err != nil {
		return nil, classify(err, "select sales")
	}

	itemsByOrder := make(map[int64][]model.Item, len(rows))
	for _, item := range items {
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], model.Item{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	salesByOrder := make(map[int64]*model.Sale, len(sales))
	for _, sale := range sales {
		salesByOrder[sale.OrderID] = &model.Sale{
			ID:            sale.ID,
			OrderID:       sale.OrderID,
			PaymentMethod: sale.PaymentMethod,
			Status:        sale.Status,
		}
	}

	for _, row := range rows {
		orderItems := itemsByOrder[row.ID]
		if orderItems == nil {
			orderItems = []model.Item{}
		}
		orders = append(orders, model.Order{
			ID:         row.ID,
			ClientID:   row.ClientID,
			ItemCount:  row.ItemCount,
			TotalPrice: row.TotalPrice,
			Items:      orderItems,
			Sale:       salesByOrder[row.ID],
		})
	}
	return orders, nil
}

func (r *orderRepository) selectIn(ctx context.Context, dest interface{}, query string, ids []int64) error {
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, r.q, dest, r.q.Rebind(query), args...)
}
