package tests

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"confectionery/pkg/domain/model"
	"confectionery/pkg/domain/service"
)

// memoryStore keeps committed state in maps. Execute snapshots it and
// restores the snapshot when the callback fails, like a rolled back tx.
type memoryStore struct {
	orders      map[int64]*model.Order
	idempotency map[string]binding
	products    map[int64]*model.Product
	clients     map[int64]*model.Client
	categories  map[int64]*model.Category
	nextID      int64

	commits   int
	rollbacks int

	failItemInsert int
	itemInserts    int
	hideKeyOnce    bool
	dropOnCommit   bool
	commitErr      error
}

type binding struct {
	orderID     int64
	fingerprint string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders:      make(map[int64]*model.Order),
		idempotency: make(map[string]binding),
		products:    make(map[int64]*model.Product),
		clients:     make(map[int64]*model.Client),
		categories:  make(map[int64]*model.Category),
	}
}

var (
	_ model.UnitOfWork         = &memoryStore{}
	_ model.RepositoryProvider = &memoryStore{}
)

func (s *memoryStore) Execute(ctx context.Context, fn func(ctx context.Context, provider model.RepositoryProvider) error) error {
	snapshot := s.snapshot()

	err := fn(ctx, s)
	if err == nil {
		err = s.commitErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.restore(snapshot)
		s.rollbacks++
		return err
	}

	s.commits++
	if s.dropOnCommit {
		for id := range s.orders {
			if _, ok := snapshot.orders[id]; !ok {
				delete(s.orders, id)
			}
		}
	}
	return nil
}

func (s *memoryStore) OrderRepository() model.OrderRepository {
	return &mockOrderRepository{s: s}
}

func (s *memoryStore) ProductRepository() model.ProductRepository {
	return &mockProductRepository{s: s}
}

func (s *memoryStore) ClientRepository() model.ClientRepository {
	return &mockClientRepository{s: s}
}

func (s *memoryStore) CategoryRepository() model.CategoryRepository {
	return &mockCategoryRepository{s: s}
}

func (s *memoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memoryStore) snapshot() *memoryStore {
	clone := newMemoryStore()
	for id, order := range s.orders {
		clone.orders[id] = cloneOrder(order)
	}
	for key, b := range s.idempotency {
		clone.idempotency[key] = b
	}
	for id, p := range s.products {
		product := *p
		clone.products[id] = &product
	}
	for id, c := range s.clients {
		client := *c
		clone.clients[id] = &client
	}
	for id, c := range s.categories {
		category := *c
		clone.categories[id] = &category
	}
	return clone
}

func (s *memoryStore) restore(snapshot *memoryStore) {
	s.orders = snapshot.orders
	s.idempotency = snapshot.idempotency
	s.products = snapshot.products
	s.clients = snapshot.clients
	s.categories = snapshot.categories
}

func (s *memoryStore) addClient() int64 {
	id := s.id()
	s.clients[id] = &model.Client{ID: id, Name: "Maria"}
	return id
}

func (s *memoryStore) addProduct(price float64) int64 {
	id := s.id()
	s.products[id] = &model.Product{ID: id, Name: "Brigadeiro", UnitPrice: price}
	return id
}

func cloneOrder(order *model.Order) *model.Order {
	clone := *order
	clone.Items = append([]model.Item{}, order.Items...)
	return &clone
}

var _ model.OrderRepository = &mockOrderRepository{}

type mockOrderRepository struct {
	s *memoryStore
}

func (m *mockOrderRepository) Create(ctx context.Context, order *model.Order) error {
	if _, ok := m.s.clients[order.ClientID]; !ok {
		return errors.Wrap(model.ErrReferentialIntegrity, "insert order")
	}
	order.ID = m.s.id()
	stored := cloneOrder(order)
	stored.Items = []model.Item{}
	m.s.orders[order.ID] = stored
	return nil
}

func (m *mockOrderRepository) AddItems(ctx context.Context, orderID int64, items []model.Item) error {
	order, ok := m.s.orders[orderID]
	if !ok {
		return errors.Wrap(model.ErrReferentialIntegrity, "insert order item")
	}
	for i := range items {
		m.s.itemInserts++
		if m.s.itemInserts == m.s.failItemInsert {
			return errors.Wrap(model.ErrStoreUnavailable, "insert order item")
		}
		if _, ok := m.s.products[items[i].ProductID]; !ok {
			return errors.Wrap(model.ErrReferentialIntegrity, "insert order item")
		}
		items[i].ID = m.s.id()
		items[i].OrderID = orderID
		order.Items = append(order.Items, items[i])
	}
	return nil
}

func (m *mockOrderRepository) DeleteItems(ctx context.Context, orderID int64) error {
	if order, ok := m.s.orders[orderID]; ok {
		order.Items = []model.Item{}
	}
	return nil
}

func (m *mockOrderRepository) UpdateHeader(ctx context.Context, order *model.Order) error {
	stored, ok := m.s.orders[order.ID]
	if !ok {
		return model.ErrOrderNotFound
	}
	if _, ok := m.s.clients[order.ClientID]; !ok {
		return errors.Wrap(model.ErrReferentialIntegrity, "update order")
	}
	stored.ClientID = order.ClientID
	stored.ItemCount = order.ItemCount
	stored.TotalPrice = order.TotalPrice
	return nil
}

func (m *mockOrderRepository) Find(ctx context.Context, id int64) (*model.Order, error) {
	order, ok := m.s.orders[id]
	if !ok {
		return nil, errors.Wrapf(model.ErrOrderNotFound, "order %d", id)
	}
	return cloneOrder(order), nil
}

func (m *mockOrderRepository) List(ctx context.Context, offset, limit int) ([]model.Order, error) {
	ids := make([]int64, 0, len(m.s.orders))
	for id := range m.s.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	orders := []model.Order{}
	for i := offset; i < len(ids) && len(orders) < limit; i++ {
		orders = append(orders, *cloneOrder(m.s.orders[ids[i]]))
	}
	return orders, nil
}

func (m *mockOrderRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.s.orders[id]; !ok {
		return errors.Wrapf(model.ErrOrderNotFound, "order %d", id)
	}
	delete(m.s.orders, id)
	for key, b := range m.s.idempotency {
		if b.orderID == id {
			delete(m.s.idempotency, key)
		}
	}
	return nil
}

func (m *mockOrderRepository) BindIdempotencyKey(ctx context.Context, key, fingerprint string, orderID int64) error {
	if _, exists := m.s.idempotency[key]; exists {
		return errors.Wrap(model.ErrDuplicate, "bind idempotency key")
	}
	m.s.idempotency[key] = binding{orderID: orderID, fingerprint: fingerprint}
	return nil
}

func (m *mockOrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*model.Order, string, error) {
	b, ok := m.s.idempotency[key]
	if !ok || m.s.hideKeyOnce {
		m.s.hideKeyOnce = false
		return nil, "", errors.Wrap(model.ErrOrderNotFound, "idempotency key")
	}
	order, err := m.Find(ctx, b.orderID)
	if err != nil {
		return nil, "", err
	}
	return order, b.fingerprint, nil
}

type mockProductRepository struct {
	s *memoryStore
}

func (m *mockProductRepository) Create(ctx context.Context, product *model.Product) error {
	if _, ok := m.s.categories[product.CategoryID]; !ok {
		return errors.Wrap(model.ErrReferentialIntegrity, "insert product")
	}
	product.ID = m.s.id()
	stored := *product
	m.s.products[product.ID] = &stored
	return nil
}

func (m *mockProductRepository) Find(ctx context.Context, id int64) (*model.Product, error) {
	product, ok := m.s.products[id]
	if !ok {
		return nil, errors.Wrapf(model.ErrProductNotFound, "product %d", id)
	}
	clone := *product
	return &clone, nil
}

type mockClientRepository struct {
	s *memoryStore
}

func (m *mockClientRepository) Create(ctx context.Context, client *model.Client) error {
	client.ID = m.s.id()
	stored := *client
	m.s.clients[client.ID] = &stored
	return nil
}

type mockCategoryRepository struct {
	s *memoryStore
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *model.Category) error {
	category.ID = m.s.id()
	stored := *category
	m.s.categories[category.ID] = &stored
	return nil
}

var _ service.EventDispatcher = &mockEventDispatcher{}

type mockEventDispatcher struct {
	events []service.Event
	err    error
}

func (m *mockEventDispatcher) Dispatch(event service.Event) error {
	m.events = append(m.events, event)
	return m.err
}

func (m *mockEventDispatcher) Reset() {
	m.events = nil
}
