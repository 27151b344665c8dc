package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/arbiter/internal/core/domain"
	"github.com/vietddude/arbiter/internal/infra/storage"
	"github.com/vietddude/arbiter/internal/infra/storage/memory"
	"github.com/vietddude/arbiter/internal/market"
	"github.com/vietddude/arbiter/internal/market/pricing"
)

// fakeGateway serves canned responses per operation and records requests.
type fakeGateway struct {
	mu        sync.Mutex
	responses map[string]any
	status    map[string]int
	calls     []string
	bodies    map[string][]byte
	auth      []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		responses: make(map[string]any),
		status:    make(map[string]int),
		bodies:    make(map[string][]byte),
	}
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimPrefix(r.URL.Path, "/")

	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	var body json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.bodies[op] = body
	status, resp := f.status[op], f.responses[op]
	f.mu.Unlock()

	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusBadRequest)
		return
	}
	if status != 0 {
		http.Error(w, "nope", status)
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func setup(t *testing.T) (*Client, *fakeGateway, *memory.MemoryStorage) {
	t.Helper()
	fake := newFakeGateway()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store := memory.NewMemoryStorage()
	repos := store.Repositories()
	c := NewClient(Config{BaseURL: server.URL + "/", Timeout: 5 * time.Second}, repos, pricing.New(pricing.Config{}, repos.Products))
	return c, fake, store
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(Config{}, memory.NewMemoryStorage().Repositories(), nil)
	err := c.FindProducts(context.Background())
	assert.ErrorIs(t, err, market.ErrNotConfigured)
}

func TestClient_FindProducts(t *testing.T) {
	c, fake, store := setup(t)
	fake.responses["find_products"] = map[string]any{
		"products": []map[string]any{
			{"source_id": "B1", "title": "Lamp", "source_price": 20.0},
			{"source_id": "B2", "title": "Kettle", "source_price": 30.0},
		},
	}

	require.NoError(t, c.FindProducts(context.Background()))

	products, err := store.Repositories().Products.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Lamp", products[0].Title)
}

func TestClient_StatusErrorsCarryStatusText(t *testing.T) {
	c, fake, _ := setup(t)
	fake.status["find_products"] = http.StatusUnauthorized

	err := c.FindProducts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 unauthorized")
}

func TestClient_ListProducts(t *testing.T) {
	ctx := context.Background()
	c, fake, store := setup(t)
	repos := store.Repositories()

	priced := &domain.Product{SourceID: "B1", Title: "Lamp", SourcePrice: 20}
	unpriced := &domain.Product{SourceID: "B2", Title: "Kettle", SourcePrice: 30}
	require.NoError(t, repos.Products.Upsert(ctx, priced))
	require.NoError(t, repos.Products.Upsert(ctx, unpriced))
	require.NoError(t, repos.Products.UpdatePricing(ctx, priced.ID, 25, 0.2))

	fake.responses["list_product"] = map[string]any{"listing_id": "L-1"}

	require.NoError(t, c.ListProducts(ctx, 20))

	left, err := repos.Products.ListUnlisted(ctx, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "B2", left[0].SourceID)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"list_product"}, fake.calls)
}

func TestClient_OrderFlowRecordsProfit(t *testing.T) {
	ctx := context.Background()
	c, fake, store := setup(t)
	repos := store.Repositories()

	fake.responses["new_orders"] = map[string]any{
		"orders": []map[string]any{{"dest_order_id": "E-1", "listing_id": "L-1", "total": 100.0}},
	}
	fake.responses["fulfill_order"] = map[string]any{
		"source_order_id": "S-1", "source_cost": 60.0, "tracking_number": "",
	}

	require.NoError(t, c.ProcessNewOrders(ctx))
	require.NoError(t, c.ProcessOrders(ctx))

	o, err := repos.Orders.Get(ctx, "E-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFulfilled, o.Status)
	assert.Equal(t, "S-1", o.SourceOrderID)

	totals, err := repos.Profits.Totals(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Orders)
	// 100 - 60 - 10 (marketplace) - 3.20 (payment)
	assert.InDelta(t, 26.8, totals.Profit, 1e-9)

	pending, err := repos.Orders.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// brokenOrders fails MarkFulfilled after the purchase went through.
type brokenOrders struct {
	storage.OrderRepository
}

func (brokenOrders) MarkFulfilled(ctx context.Context, destOrderID, sourceOrderID, tracking string) error {
	return errors.New("connection reset")
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func TestClient_FailedPurchaseReopensOrder(t *testing.T) {
	ctx := context.Background()
	c, fake, store := setup(t)
	repos := store.Repositories()

	require.NoError(t, repos.Orders.Add(ctx, &domain.Order{DestOrderID: "E-1", Total: 100}))
	fake.status["fulfill_order"] = http.StatusBadGateway

	err := c.ProcessOrders(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E-1")

	o, err := repos.Orders.Get(ctx, "E-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusNew, o.Status)
}

func TestClient_BookkeepingFailureDoesNotBuyTwice(t *testing.T) {
	ctx := context.Background()
	_, fake, store := setup(t)
	base := store.Repositories()
	repos := storage.Repositories{
		Products: base.Products,
		Orders:   brokenOrders{base.Orders},
		Profits:  base.Profits,
	}

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	c := NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second}, repos, pricing.New(pricing.Config{}, repos.Products))

	require.NoError(t, repos.Orders.Add(ctx, &domain.Order{DestOrderID: "E-1", Total: 100}))
	fake.responses["fulfill_order"] = map[string]any{"source_order_id": "S-1", "source_cost": 60.0}

	require.NoError(t, c.ProcessOrders(ctx))
	require.NoError(t, c.ProcessOrders(ctx))

	assert.Equal(t, 1, fake.count("fulfill_order"))

	o, err := repos.Orders.Get(ctx, "E-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, o.Status)

	totals, err := repos.Profits.Totals(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Orders)
}

func TestClient_LoginAndClose(t *testing.T) {
	c, fake, _ := setup(t)
	fake.responses["login"] = map[string]any{"token": "tok"}
	fake.responses["find_products"] = map[string]any{}

	ok, err := c.Login(context.Background(), market.Credentials{Email: "a@b.c", Password: "x"})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.FindProducts(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"login", "find_products", "logout"}, fake.calls)
	assert.Equal(t, "Bearer tok", fake.auth[1])
}

func TestClient_LoginRejected(t *testing.T) {
	c, fake, _ := setup(t)
	fake.responses["login"] = map[string]any{}

	ok, err := c.Login(context.Background(), market.Credentials{Email: "a@b.c", Password: "x"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_ContextCancelled(t *testing.T) {
	c, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.FindProducts(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
