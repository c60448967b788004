package service

import (
	"fmt"
	"math"

	"confectionery/pkg/domain/model"
)

const (
	maxIdempotencyKeyLength = 128
	maxPageSize             = 100
)

func validateDraft(draft model.OrderDraft) error {
	if draft.ClientID <= 0 {
		return model.NewValidationError("cliente_id", "must be a positive id")
	}
	if len(draft.IdempotencyKey) > maxIdempotencyKeyLength {
		return model.NewValidationError("Idempotency-Key", fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLength))
	}
	return validateLines(draft.Lines)
}

func validateLines(lines []model.OrderLine) error {
	if len(lines) == 0 {
		return model.NewValidationError("itens_pedido", "at least one item is required")
	}
	for i, line := range lines {
		if line.ProductID <= 0 {
			return model.NewValidationError(linePath(i, "produto_id"), "must be a positive id")
		}
		if math.IsNaN(line.Quantity) || math.IsInf(line.Quantity, 0) || line.Quantity <= 0 {
			return model.NewValidationError(linePath(i, "quantidade"), "must be greater than zero")
		}
		if math.IsNaN(line.UnitPrice) || math.IsInf(line.UnitPrice, 0) || line.UnitPrice < 0 {
			return model.NewValidationError(linePath(i, "preco_unitario"), "must not be negative")
		}
	}
	return nil
}

func validatePatch(patch model.OrderPatch) error {
	if patch.Empty() {
		return model.NewValidationError("", "nothing to update: only cliente_id and itens_pedido can change")
	}
	if patch.ClientID != nil && *patch.ClientID <= 0 {
		return model.NewValidationError("cliente_id", "must be a positive id")
	}
	if patch.Lines != nil {
		return validateLines(*patch.Lines)
	}
	return nil
}

func validatePage(page, pageSize int) error {
	if page < 1 {
		return model.NewValidationError("page", "must be at least 1")
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return model.NewValidationError("page_size", fmt.Sprintf("must be between 1 and %d", maxPageSize))
	}
	return nil
}

func linePath(i int, field string) string {
	return fmt.Sprintf("itens_pedido[%d].%s", i, field)
}
