package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/arbiter/internal/core/domain"
	"github.com/vietddude/arbiter/internal/infra/storage"
)

type MemoryStorage struct {
	products map[int64]*domain.Product
	bySource map[string]int64
	listings map[string]*domain.Listing
	orders   map[string]*domain.Order
	profits  []*domain.ProfitRecord
	nextID   int64
	clock    clock.Clock
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		products: make(map[int64]*domain.Product),
		bySource: make(map[string]int64),
		listings: make(map[string]*domain.Listing),
		orders:   make(map[string]*domain.Order),
		clock:    clock.New(),
	}
}

// SetClock replaces the time source used for created/recorded timestamps.
func (s *MemoryStorage) SetClock(c clock.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = c
}

// Repositories returns repositories backed by this store.
func (s *MemoryStorage) Repositories() storage.Repositories {
	return storage.Repositories{
		Products: NewProductRepo(s),
		Orders:   NewOrderRepo(s),
		Profits:  NewProfitRepo(s),
	}
}

func (s *MemoryStorage) id() int64 {
	s.nextID++
	return s.nextID
}

// -----------------------------------------------------------------------------
// Product Repository
// -----------------------------------------------------------------------------

type ProductRepo struct {
	store *MemoryStorage
}

func NewProductRepo(store *MemoryStorage) *ProductRepo {
	return &ProductRepo{store: store}
}

func (r *ProductRepo) Upsert(ctx context.Context, p *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if id, ok := r.store.bySource[p.SourceID]; ok {
		cur := r.store.products[id]
		cur.Title = p.Title
		cur.SourcePrice = p.SourcePrice
		cur.Category = p.Category
		cur.ImageURL = p.ImageURL
		cur.Description = p.Description
		p.ID, p.CreatedAt = cur.ID, cur.CreatedAt
		return nil
	}

	cp := *p
	cp.ID = r.store.id()
	cp.CreatedAt = r.store.clock.Now()
	r.store.products[cp.ID] = &cp
	r.store.bySource[cp.SourceID] = cp.ID
	p.ID, p.CreatedAt = cp.ID, cp.CreatedAt
	return nil
}

func (r *ProductRepo) ListUnlisted(ctx context.Context, limit int) ([]*domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Product
	for _, p := range r.store.products {
		if !p.IsListed {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProfitMargin != out[j].ProfitMargin {
			return out[i].ProfitMargin > out[j].ProfitMargin
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ProductRepo) List(ctx context.Context) ([]*domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Product, 0, len(r.store.products))
	for _, p := range r.store.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ProductRepo) UpdatePricing(ctx context.Context, id int64, destPrice, margin float64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.products[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.DestPrice = destPrice
	p.ProfitMargin = margin
	return nil
}

func (r *ProductRepo) MarkListed(ctx context.Context, id int64, listingID, title string, price float64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.products[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.IsListed = true

	now := r.store.clock.Now()
	if l, ok := r.store.listings[listingID]; ok {
		l.CurrentPrice = price
		l.UpdatedAt = now
		return nil
	}
	r.store.listings[listingID] = &domain.Listing{
		ID:           r.store.id(),
		ProductID:    id,
		ListingID:    listingID,
		Title:        title,
		CurrentPrice: price,
		Quantity:     1,
		Status:       domain.ListingStatusActive,
		ListedAt:     now,
		UpdatedAt:    now,
	}
	return nil
}

// -----------------------------------------------------------------------------
// Order Repository
// -----------------------------------------------------------------------------

type OrderRepo struct {
	store *MemoryStorage
}

func NewOrderRepo(store *MemoryStorage) *OrderRepo {
	return &OrderRepo{store: store}
}

func (r *OrderRepo) Add(ctx context.Context, o *domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.orders[o.DestOrderID]; ok {
		return nil
	}
	cp := *o
	cp.ID = r.store.id()
	if cp.Status == "" {
		cp.Status = domain.OrderStatusNew
	}
	if cp.OrderedAt.IsZero() {
		cp.OrderedAt = r.store.clock.Now()
	}
	r.store.orders[cp.DestOrderID] = &cp
	o.ID = cp.ID
	return nil
}

func (r *OrderRepo) Get(ctx context.Context, destOrderID string) (*domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	o, ok := r.store.orders[destOrderID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *OrderRepo) Pending(ctx context.Context) ([]*domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Order
	for _, o := range r.store.orders {
		if o.Status == domain.OrderStatusNew {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderedAt.Equal(out[j].OrderedAt) {
			return out[i].OrderedAt.Before(out[j].OrderedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *OrderRepo) Transition(ctx context.Context, destOrderID string, from, to domain.OrderStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.orders[destOrderID]
	if !ok || o.Status != from {
		return storage.ErrNotFound
	}
	o.Status = to
	return nil
}

func (r *OrderRepo) MarkFulfilled(ctx context.Context, destOrderID, sourceOrderID, tracking string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.orders[destOrderID]
	if !ok {
		return storage.ErrNotFound
	}
	now := r.store.clock.Now()
	o.SourceOrderID = sourceOrderID
	o.TrackingNumber = tracking
	o.Status = domain.OrderStatusFulfilled
	o.FulfilledAt = &now
	return nil
}

// -----------------------------------------------------------------------------
// Profit Repository
// -----------------------------------------------------------------------------

type ProfitRepo struct {
	store *MemoryStorage
}

func NewProfitRepo(store *MemoryStorage) *ProfitRepo {
	return &ProfitRepo{store: store}
}

func (r *ProfitRepo) Record(ctx context.Context, rec *domain.ProfitRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec.ComputeNet()
	rec.ID = r.store.id()
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = r.store.clock.Now()
	}
	cp := *rec
	r.store.profits = append(r.store.profits, &cp)
	return nil
}

func (r *ProfitRepo) Totals(ctx context.Context, since time.Time) (domain.ProfitSummary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var s domain.ProfitSummary
	for _, rec := range r.store.profits {
		if !rec.RecordedAt.Before(since) {
			add(&s, rec)
		}
	}
	return s, nil
}

func (r *ProfitRepo) Daily(ctx context.Context, since time.Time) ([]domain.ProfitSummary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	days := make(map[string]*domain.ProfitSummary)
	for _, rec := range r.store.profits {
		if rec.RecordedAt.Before(since) {
			continue
		}
		day := rec.RecordedAt.UTC().Format(time.DateOnly)
		s, ok := days[day]
		if !ok {
			s = &domain.ProfitSummary{Day: day}
			days[day] = s
		}
		add(s, rec)
	}

	out := make([]domain.ProfitSummary, 0, len(days))
	for _, s := range days {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	return out, nil
}

func add(s *domain.ProfitSummary, rec *domain.ProfitRecord) {
	s.Orders++
	s.Cost += rec.SourceCost
	s.Revenue += rec.DestRevenue
	s.MarketplaceFee += rec.MarketplaceFee
	s.PaymentFee += rec.PaymentFee
	s.Profit += rec.NetProfit
}
