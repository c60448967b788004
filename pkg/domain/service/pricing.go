package service

import (
	"context"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"confectionery/pkg/domain/model"
)

// PriceSource decides where a line's unit price comes from when an order is written.
type PriceSource string

const (
	// PriceFromRequest keeps the unit price submitted by the caller as the order's price snapshot.
	PriceFromRequest PriceSource = "request"
	// PriceFromCatalog replaces the submitted price with the product's current catalog price.
	PriceFromCatalog PriceSource = "catalog"
)

func ParsePriceSource(s string) (PriceSource, error) {
	switch PriceSource(strings.ToLower(strings.TrimSpace(s))) {
	case "", PriceFromRequest:
		return PriceFromRequest, nil
	case PriceFromCatalog:
		return PriceFromCatalog, nil
	default:
		return "", errors.Errorf("unknown price source %q", s)
	}
}

func (s *orderService) resolveItems(ctx context.Context, products model.ProductRepository, lines []model.OrderLine) ([]model.Item, error) {
	items := make([]model.Item, 0, len(lines))
	for _, line := range lines {
		item := model.Item{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
		if s.priceSource == PriceFromCatalog {
			product, err := products.Find(ctx, line.ProductID)
			if errors.Is(err, model.ErrProductNotFound) {
				return nil, errors.Wrapf(model.ErrReferentialIntegrity, "product %d", line.ProductID)
			}
			if err != nil {
				return nil, err
			}
			item.UnitPrice = product.UnitPrice
		}
		items = append(items, item)
	}
	return items, nil
}

// recalculateTotal stores the exact sum of quantity x unit price. A total
// that does not fit in a float64 is rejected before anything is written.
func (s *orderService) recalculateTotal(order *model.Order) error {
	total := decimal.Zero
	for _, item := range order.Items {
		total = total.Add(decimal.NewFromFloat(item.Quantity).Mul(decimal.NewFromFloat(item.UnitPrice)))
	}

	totalPrice := total.InexactFloat64()
	if math.IsInf(totalPrice, 0) || math.IsNaN(totalPrice) {
		return model.NewValidationError("itens_pedido", "order total is too large")
	}
	order.ItemCount = len(order.Items)
	order.TotalPrice = totalPrice
	return nil
}
