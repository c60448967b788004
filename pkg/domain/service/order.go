package service

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"confectionery/pkg/domain/model"
)

type Event interface {
	Type() string
}

type EventDispatcher interface {
	Dispatch(event Event) error
}

type OrderService interface {
	// CreateOrder persists the header and every line of draft atomically and
	// returns the reloaded aggregate. The bool is true when draft carried an
	// idempotency key that was already bound to an order; that order is
	// returned untouched.
	CreateOrder(ctx context.Context, draft model.OrderDraft) (*model.Order, bool, error)
	FindOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrders(ctx context.Context, page, pageSize int) ([]model.Order, error)
	UpdateOrder(ctx context.Context, id int64, patch model.OrderPatch) (*model.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

func NewOrderService(
	uow model.UnitOfWork,
	reader model.RepositoryProvider,
	dispatcher EventDispatcher,
	priceSource PriceSource,
) OrderService {
	return &orderService{
		uow:         uow,
		reader:      reader,
		dispatcher:  dispatcher,
		priceSource: priceSource,
	}
}

type orderService struct {
	uow         model.UnitOfWork
	reader      model.RepositoryProvider
	dispatcher  EventDispatcher
	priceSource PriceSource
}

func (s *orderService) CreateOrder(ctx context.Context, draft model.OrderDraft) (*model.Order, bool, error) {
	if err := validateDraft(draft); err != nil {
		return nil, false, err
	}

	var fingerprint string
	if draft.IdempotencyKey != "" {
		fingerprint = requestFingerprint(draft)
		existing, err := s.findReplay(ctx, draft.IdempotencyKey, fingerprint)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	var orderID int64
	err := s.uow.Execute(ctx, func(ctx context.Context, provider model.RepositoryProvider) error {
		items, err := s.resolveItems(ctx, provider.ProductRepository(), draft.Lines)
		if err != nil {
			return err
		}

		order := &model.Order{ClientID: draft.ClientID, Items: items}
		if err := s.recalculateTotal(order); err != nil {
			return err
		}

		repo := provider.OrderRepository()
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		if err := repo.AddItems(ctx, order.ID, order.Items); err != nil {
			return err
		}
		if draft.IdempotencyKey != "" {
			if err := repo.BindIdempotencyKey(ctx, draft.IdempotencyKey, fingerprint, order.ID); err != nil {
				return err
			}
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		if draft.IdempotencyKey != "" && errors.Is(err, model.ErrDuplicate) {
			// Lost the race against a concurrent submission with the same key.
			existing, findErr := s.findReplay(ctx, draft.IdempotencyKey, fingerprint)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	order, err := s.reload(ctx, orderID)
	if err != nil {
		return nil, false, err
	}

	s.dispatch(model.OrderCreated{
		OrderID:    order.ID,
		ClientID:   order.ClientID,
		ItemCount:  order.ItemCount,
		TotalPrice: order.TotalPrice,
	})
	return order, false, nil
}

func (s *orderService) FindOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.reader.OrderRepository().Find(ctx, id)
}

func (s *orderService) ListOrders(ctx context.Context, page, pageSize int) ([]model.Order, error) {
	if err := validatePage(page, pageSize); err != nil {
		return nil, err
	}
	return s.reader.OrderRepository().List(ctx, (page-1)*pageSize, pageSize)
}

func (s *orderService) UpdateOrder(ctx context.Context, id int64, patch model.OrderPatch) (*model.Order, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	err := s.uow.Execute(ctx, func(ctx context.Context, provider model.RepositoryProvider) error {
		repo := provider.OrderRepository()
		order, err := repo.Find(ctx, id)
		if err != nil {
			return err
		}

		if patch.ClientID != nil {
			order.ClientID = *patch.ClientID
		}
		if patch.Lines != nil {
			items, err := s.resolveItems(ctx, provider.ProductRepository(), *patch.Lines)
			if err != nil {
				return err
			}
			order.Items = items
			if err := s.recalculateTotal(order); err != nil {
				return err
			}
			if err := repo.DeleteItems(ctx, id); err != nil {
				return err
			}
			if err := repo.AddItems(ctx, id, order.Items); err != nil {
				return err
			}
		}

		return repo.UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.reader.OrderRepository().Find(ctx, id)
	if err != nil {
		return nil, err
	}

	s.dispatch(model.OrderUpdated{OrderID: id, ItemCount: order.ItemCount, TotalPrice: order.TotalPrice})
	return order, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, id int64) error {
	err := s.uow.Execute(ctx, func(ctx context.Context, provider model.RepositoryProvider) error {
		return provider.OrderRepository().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.dispatch(model.OrderDeleted{OrderID: id})
	return nil
}

// findReplay returns the order already bound to key, or nil when the key is
// unused. Reusing a key for a different request is a validation error.
func (s *orderService) findReplay(ctx context.Context, key, fingerprint string) (*model.Order, error) {
	order, stored, err := s.reader.OrderRepository().FindByIdempotencyKey(ctx, key)
	if errors.Is(err, model.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if stored != "" && stored != fingerprint {
		return nil, model.NewValidationError("Idempotency-Key", "was already used for a different order")
	}
	return order, nil
}

func (s *orderService) reload(ctx context.Context, id int64) (*model.Order, error) {
	order, err := s.reader.OrderRepository().Find(ctx, id)
	if errors.Is(err, model.ErrOrderNotFound) {
		log.WithField("order_id", id).Error("committed order could not be reloaded")
		return nil, errors.Wrapf(model.ErrInternalInconsistency, "order %d", id)
	}
	return order, err
}

func (s *orderService) dispatch(event Event) {
	if err := s.dispatcher.Dispatch(event); err != nil {
		log.WithError(err).WithField("event", event.Type()).Error("failed to dispatch event")
	}
}
